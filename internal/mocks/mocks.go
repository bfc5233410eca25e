// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/trishajanath/altx-test-agent/api/schemas"
)

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

// Generate provides a mock function for LLM calls.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// -- Browser Driver Mock --

// MockBrowserDriver mocks the schemas.BrowserDriver interface.
type MockBrowserDriver struct {
	mock.Mock
}

var _ schemas.BrowserDriver = (*MockBrowserDriver)(nil)

func (m *MockBrowserDriver) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockBrowserDriver) Navigate(ctx context.Context, url string, timeout time.Duration) bool {
	return m.Called(ctx, url, timeout).Bool(0)
}

func (m *MockBrowserDriver) Screenshot(ctx context.Context, label string) ([]byte, error) {
	args := m.Called(ctx, label)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockBrowserDriver) Click(ctx context.Context, loc schemas.Locator, timeout time.Duration) bool {
	return m.Called(ctx, loc, timeout).Bool(0)
}

func (m *MockBrowserDriver) Type(ctx context.Context, loc schemas.Locator, text string) bool {
	return m.Called(ctx, loc, text).Bool(0)
}

func (m *MockBrowserDriver) Scroll(ctx context.Context, dir schemas.ScrollDirection, amountPx int) bool {
	return m.Called(ctx, dir, amountPx).Bool(0)
}

func (m *MockBrowserDriver) Probe(ctx context.Context, loc schemas.Locator) bool {
	return m.Called(ctx, loc).Bool(0)
}

func (m *MockBrowserDriver) HTML(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockBrowserDriver) ConsoleErrors() []string {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

func (m *MockBrowserDriver) Screenshots() []schemas.ScreenshotRecord {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]schemas.ScreenshotRecord)
}

func (m *MockBrowserDriver) Close() {
	m.Called()
}
