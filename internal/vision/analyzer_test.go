package vision

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
)

var fakePNG = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a}

func TestAnalyzePage_StructuredResult(t *testing.T) {
	client := new(mocks.MockLLMClient)
	client.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return len(req.ImagePNG) > 0
	})).Return(`{
		"page_type": "login",
		"elements": [{"type": "button", "text": "Sign in", "clickable": true}],
		"suggested_actions": ["click the sign in button"],
		"observations": "A centered login form.",
		"potential_issues": [],
		"overall_quality": "good"
	}`, nil)

	a := NewAnalyzer(client, zaptest.NewLogger(t))
	analysis, err := a.AnalyzePage(context.Background(), fakePNG, "")
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.Equal(t, "login", analysis.PageType)
	require.Len(t, analysis.Elements, 1)
	assert.True(t, analysis.Elements[0].Clickable)
	assert.Empty(t, analysis.PotentialIssues)
}

func TestAnalyzePage_TransportErrorFailsTheCall(t *testing.T) {
	client := new(mocks.MockLLMClient)
	client.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("connection refused"))

	a := NewAnalyzer(client, zaptest.NewLogger(t))
	analysis, err := a.AnalyzePage(context.Background(), fakePNG, "check the header")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable), "a transport failure is a call error, not a degraded judgement")
	assert.Nil(t, analysis)
}

func TestAnalyzePage_UnavailableOnNonJSON(t *testing.T) {
	client := new(mocks.MockLLMClient)
	client.On("Generate", mock.Anything, mock.Anything).Return("The page looks fine to me!", nil)

	a := NewAnalyzer(client, zaptest.NewLogger(t))
	_, err := a.AnalyzePage(context.Background(), fakePNG, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAnalyzePage_EmptyScreenshot(t *testing.T) {
	client := new(mocks.MockLLMClient)
	a := NewAnalyzer(client, zaptest.NewLogger(t))

	_, err := a.AnalyzePage(context.Background(), nil, "")
	assert.ErrorIs(t, err, ErrUnavailable)
	client.AssertNotCalled(t, "Generate")
}

func TestProposeLocator(t *testing.T) {
	t.Run("fenced selector", func(t *testing.T) {
		client := new(mocks.MockLLMClient)
		client.On("Generate", mock.Anything, mock.Anything).
			Return("```json\n{\"selector\": \"#login-btn\"}\n```", nil)

		a := NewAnalyzer(client, zaptest.NewLogger(t))
		sel, ok := a.ProposeLocator(context.Background(), "<button id='login-btn'>Go</button>", "the login button")
		require.True(t, ok)
		assert.Equal(t, "#login-btn", sel)
	})

	t.Run("empty selector rejected", func(t *testing.T) {
		client := new(mocks.MockLLMClient)
		client.On("Generate", mock.Anything, mock.Anything).Return(`{"selector": "  "}`, nil)

		a := NewAnalyzer(client, zaptest.NewLogger(t))
		_, ok := a.ProposeLocator(context.Background(), "<div/>", "anything")
		assert.False(t, ok)
	})
}

func TestSummarize(t *testing.T) {
	t.Run("parsed summary", func(t *testing.T) {
		client := new(mocks.MockLLMClient)
		client.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
			return len(req.ImagePNG) == 0
		})).Return(`{"summary": "All flows worked.", "issues": [], "suggestions": ["add aria labels"]}`, nil)

		a := NewAnalyzer(client, zaptest.NewLogger(t))
		s, ok := a.Summarize(context.Background(), "1/1 passed", nil)
		require.True(t, ok)
		assert.Equal(t, "All flows worked.", s.Summary)
		assert.Equal(t, []string{"add aria labels"}, s.Suggestions)
	})

	t.Run("unavailable on empty summary", func(t *testing.T) {
		client := new(mocks.MockLLMClient)
		client.On("Generate", mock.Anything, mock.Anything).Return(`{"summary": ""}`, nil)

		a := NewAnalyzer(client, zaptest.NewLogger(t))
		_, ok := a.Summarize(context.Background(), "digest", []string{"TypeError: x is undefined"})
		assert.False(t, ok)
	})
}
