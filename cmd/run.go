// File: cmd/run.go
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trishajanath/altx-test-agent/api/schemas"
	"github.com/trishajanath/altx-test-agent/internal/agent"
	"github.com/trishajanath/altx-test-agent/internal/bridge"
	"github.com/trishajanath/altx-test-agent/internal/llmclient"
	"github.com/trishajanath/altx-test-agent/internal/observability"
)

func newRunCmd() *cobra.Command {
	var (
		appName    string
		planFile   string
		outputFile string
	)

	runCmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Run the visual test agent against a target URL",
		Long: `Launches a headless browser session against the target URL, plans a
set of test cases (AI-proposed, or supplied via --plan), executes them, and
prints the resulting JSON report.

The exit code reflects execution completion only: a run whose report says
"failed" still exits zero as long as the report was produced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			targetURL := args[0]

			name := appName
			if name == "" {
				name = targetURL
			}

			var plan []schemas.TestCase
			if planFile != "" {
				data, err := os.ReadFile(planFile)
				if err != nil {
					return fmt.Errorf("failed to read plan file: %w", err)
				}
				if err := json.Unmarshal(data, &plan); err != nil {
					return fmt.Errorf("failed to parse plan file: %w", err)
				}
				logger.Info("Loaded caller-supplied plan",
					zap.String("file", planFile), zap.Int("cases", len(plan)))
			}

			var llm schemas.LLMClient
			if cfg.Agent.LLM.APIKey != "" || cfg.Agent.LLM.Endpoint != "" {
				client, err := llmclient.New(cfg.Agent.LLM, logger)
				if err != nil {
					return fmt.Errorf("failed to initialize LLM client: %w", err)
				}
				llm = client
			} else {
				logger.Warn("No LLM configured; running with the fallback plan and degraded verdicts")
			}

			runner := agent.NewRunner(cfg, llm, logger)

			pool := bridge.New(cfg.Bridge, logger)
			defer pool.Stop()

			fut, err := pool.Submit(ctx, func(runCtx context.Context) *schemas.TestReport {
				return runner.Run(runCtx, agent.RunRequest{
					AppName: name,
					URL:     targetURL,
					Plan:    plan,
				})
			})
			if err != nil {
				return fmt.Errorf("failed to queue run: %w", err)
			}

			rep, err := fut.Wait(ctx)
			if err != nil {
				return fmt.Errorf("run abandoned: %w", err)
			}

			data, err := rep.ToJSON()
			if err != nil {
				return fmt.Errorf("failed to serialize report: %w", err)
			}

			if outputFile != "" {
				if err := os.WriteFile(outputFile, data, 0o644); err != nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
				logger.Info("Report written", zap.String("file", outputFile))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			}

			logger.Info("Run complete",
				zap.String("overall_status", string(rep.OverallStatus)))
			return nil
		},
	}

	runCmd.Flags().StringVar(&appName, "app-name", "", "Human-readable name of the application under test")
	runCmd.Flags().StringVar(&planFile, "plan", "", "Path to a JSON file of test cases, replacing AI planning")
	runCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the JSON report to a file instead of stdout")

	return runCmd
}
