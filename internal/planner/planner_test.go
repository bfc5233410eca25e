package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/trishajanath/altx-test-agent/api/schemas"
	"github.com/trishajanath/altx-test-agent/internal/mocks"
	"github.com/trishajanath/altx-test-agent/internal/vision"
)

var screenshot = []byte{0x89, 0x50, 0x4e, 0x47}

func newPlanner(t *testing.T, client *mocks.MockLLMClient) *Planner {
	t.Helper()
	return New(vision.NewAnalyzer(client, zaptest.NewLogger(t)), zaptest.NewLogger(t))
}

const goodPlan = `[
  {"name": "Login flow", "description": "Exercise the login form", "steps": [
    {"action": "type", "description": "type 'demo@example.com' into 'email field'"},
    {"action": "click", "description": "the sign in button"},
    {"action": "verify", "description": "dashboard is visible"}
  ]},
  {"name": "Navigation", "description": "Check the nav links", "steps": [
    {"action": "click", "description": "the about link"},
    {"action": "verify", "description": "about page renders"}
  ]}
]`

func TestPlan_AcceptsModelPlan(t *testing.T) {
	client := new(mocks.MockLLMClient)
	client.On("Generate", mock.Anything, mock.Anything).Return(goodPlan, nil)

	cases := newPlanner(t, client).Plan(context.Background(), "Demo Shop", screenshot)
	require.Len(t, cases, 2)
	assert.Equal(t, "Login flow", cases[0].Name)
	require.Len(t, cases[0].Steps, 3)

	// Steps must come back numbered and in the skipped state.
	for _, c := range cases {
		for i, s := range c.Steps {
			assert.Equal(t, i+1, s.StepNumber)
			assert.Equal(t, schemas.StatusSkipped, s.Status)
		}
	}
}

func TestPlan_FenceWrappedPlan(t *testing.T) {
	client := new(mocks.MockLLMClient)
	client.On("Generate", mock.Anything, mock.Anything).Return("```json\n"+goodPlan+"\n```", nil)

	cases := newPlanner(t, client).Plan(context.Background(), "Demo Shop", screenshot)
	assert.Len(t, cases, 2)
}

// Non-JSON content during planning must fall back to the default case.
func TestPlan_GarbageFallsBack(t *testing.T) {
	client := new(mocks.MockLLMClient)
	client.On("Generate", mock.Anything, mock.Anything).Return("I'd love to help you test this page!", nil)

	cases := newPlanner(t, client).Plan(context.Background(), "Demo Shop", screenshot)
	require.Len(t, cases, 1)
	require.Len(t, cases[0].Steps, 2)
	assert.Equal(t, schemas.ActionVerify, cases[0].Steps[0].Action)
	assert.Equal(t, schemas.ActionScroll, cases[0].Steps[1].Action)
}

func TestPlan_CapabilityErrorFallsBack(t *testing.T) {
	client := new(mocks.MockLLMClient)
	client.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("timeout"))

	cases := newPlanner(t, client).Plan(context.Background(), "Demo Shop", screenshot)
	require.Len(t, cases, 1)
	assert.Equal(t, "Basic page check", cases[0].Name)
}

func TestPlan_EmptyPlanFallsBack(t *testing.T) {
	client := new(mocks.MockLLMClient)
	client.On("Generate", mock.Anything, mock.Anything).Return(`[{"name": "", "steps": []}]`, nil)

	cases := newPlanner(t, client).Plan(context.Background(), "Demo Shop", screenshot)
	require.Len(t, cases, 1)
	assert.Equal(t, "Basic page check", cases[0].Name)
}

func TestNormalize(t *testing.T) {
	in := []schemas.TestCase{
		{
			Name: "mixed",
			Steps: []schemas.TestStep{
				{Action: schemas.ActionClick, Description: "a button"},
				{Action: "hover", Description: "the menu"},
			},
		},
		{Name: "", Steps: []schemas.TestStep{{Action: schemas.ActionWait, Description: "pause"}}},
		{Name: "empty steps"},
	}

	out := Normalize(in)
	require.Len(t, out, 1, "nameless and empty cases are dropped")
	require.Len(t, out[0].Steps, 2)

	assert.Equal(t, schemas.ActionClick, out[0].Steps[0].Action)
	assert.Equal(t, 1, out[0].Steps[0].StepNumber)

	// Unknown actions are coerced to verify with a note, never rejected.
	assert.Equal(t, schemas.ActionVerify, out[0].Steps[1].Action)
	assert.Contains(t, out[0].Steps[1].AIObservation, "hover")
	assert.Equal(t, 2, out[0].Steps[1].StepNumber)
}

func TestFallbackPlanShape(t *testing.T) {
	cases := FallbackPlan()
	require.Len(t, cases, 1)
	require.Len(t, cases[0].Steps, 2)
	assert.Equal(t, schemas.StatusSkipped, cases[0].Steps[0].Status)
}
