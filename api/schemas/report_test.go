package schemas

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func caseWithSteps(name string, statuses ...StepStatus) TestCase {
	tc := TestCase{Name: name}
	for i, st := range statuses {
		tc.Steps = append(tc.Steps, TestStep{
			StepNumber: i + 1,
			Action:     ActionVerify,
			Status:     st,
			DurationMS: 10,
		})
	}
	return tc
}

func TestCaseStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []StepStatus
		want     StepStatus
	}{
		{"all passed", []StepStatus{StatusPassed, StatusPassed}, StatusPassed},
		{"warning does not fail the case", []StepStatus{StatusPassed, StatusWarning}, StatusPassed},
		{"any failed step fails the case", []StepStatus{StatusPassed, StatusFailed, StatusPassed}, StatusFailed},
		{"no steps", nil, StatusPassed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := caseWithSteps("c", tt.statuses...)
			assert.Equal(t, tt.want, tc.Status())
		})
	}
}

func TestReportCounts(t *testing.T) {
	rep := &TestReport{TestCases: []TestCase{
		caseWithSteps("a", StatusPassed),
		caseWithSteps("b", StatusPassed, StatusWarning),
		caseWithSteps("c", StatusFailed),
	}}

	total, passed, failed, warnings := rep.Counts()
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, passed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, warnings)
}

func TestDeriveOverallStatus(t *testing.T) {
	mk := func(passed, failed int) *TestReport {
		rep := &TestReport{}
		for i := 0; i < passed; i++ {
			rep.TestCases = append(rep.TestCases, caseWithSteps("p", StatusPassed))
		}
		for i := 0; i < failed; i++ {
			rep.TestCases = append(rep.TestCases, caseWithSteps("f", StatusFailed))
		}
		return rep
	}

	assert.Equal(t, RunPassed, mk(3, 0).DeriveOverallStatus())
	assert.Equal(t, RunPassed, mk(0, 0).DeriveOverallStatus())
	assert.Equal(t, RunWarning, mk(2, 1).DeriveOverallStatus())
	assert.Equal(t, RunWarning, mk(2, 2).DeriveOverallStatus())
	assert.Equal(t, RunFailed, mk(1, 2).DeriveOverallStatus())
	assert.Equal(t, RunFailed, mk(0, 1).DeriveOverallStatus())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0.0s", FormatDuration(0))
	assert.Equal(t, "42.3s", FormatDuration(42300*time.Millisecond))
	assert.Equal(t, "1m 03.5s", FormatDuration(63500*time.Millisecond))
	assert.Equal(t, "2m 30.0s", FormatDuration(150*time.Second))
	assert.Equal(t, "0.0s", FormatDuration(-time.Second))
}

func TestReportToJSONShape(t *testing.T) {
	rep := &TestReport{
		AppName:              "demo",
		AppURL:               "https://example.com",
		TotalDurationSeconds: 12.5,
		OverallStatus:        RunWarning,
		AISummary:            "mostly fine",
		Suggestions:          []string{"fix footer CSS"},
		TestCases: []TestCase{
			{
				Name: "Login",
				Steps: []TestStep{
					{StepNumber: 1, Action: ActionClick, Description: "press Login", Status: StatusPassed, DurationMS: 120},
					{StepNumber: 2, Action: ActionVerify, Description: "dashboard", Status: StatusWarning, AIObservation: "slow render"},
				},
			},
		},
	}

	data, err := rep.ToJSON()
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "demo", out["app_name"])
	assert.Equal(t, "warning", out["overall_status"])
	assert.Equal(t, "12.5s", out["total_duration"])
	assert.Equal(t, float64(1), out["total_tests"])
	assert.Equal(t, float64(1), out["passed_tests"])
	assert.Equal(t, float64(0), out["failed_tests"])
	assert.Equal(t, float64(1), out["warning_tests"])

	// Suggestions are duplicated under "recommendations" for older consumers.
	assert.Equal(t, out["suggestions"], out["recommendations"])
	// IssuesFound was nil but serializes as an empty list, never null.
	assert.Equal(t, []interface{}{}, out["issues_found"])

	cases := out["test_cases"].([]interface{})
	require.Len(t, cases, 1)
	c := cases[0].(map[string]interface{})
	assert.Equal(t, true, c["passed"])
	steps := c["steps"].([]interface{})
	require.Len(t, steps, 2)
	warnStep := steps[1].(map[string]interface{})
	// A warning step still counts as success on the wire.
	assert.Equal(t, true, warnStep["success"])
	assert.Equal(t, "slow render", warnStep["details"])

	// Raw screenshot bytes never leak into the JSON document.
	assert.NotContains(t, string(data), "screenshot_before")
}

func TestKnownAction(t *testing.T) {
	for _, a := range []StepAction{ActionClick, ActionType, ActionScroll, ActionVerify, ActionWait} {
		assert.True(t, KnownAction(a))
	}
	assert.False(t, KnownAction(StepAction("hover")))
}
