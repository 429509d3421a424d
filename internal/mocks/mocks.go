// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
	"github.com/xkilldash9x/ledger-cli/internal/config"
)

// -- Config Mock --

// MockConfig mocks config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

func (m *MockConfig) Logger() config.LoggerConfig {
	return m.Called().Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	return m.Called().Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Storefront() config.StorefrontConfig {
	return m.Called().Get(0).(config.StorefrontConfig)
}

func (m *MockConfig) Auth() config.AuthConfig {
	return m.Called().Get(0).(config.AuthConfig)
}

func (m *MockConfig) Session() config.SessionConfig {
	return m.Called().Get(0).(config.SessionConfig)
}

func (m *MockConfig) Collector() config.CollectorConfig {
	return m.Called().Get(0).(config.CollectorConfig)
}

func (m *MockConfig) Exporter() config.ExporterConfig {
	return m.Called().Get(0).(config.ExporterConfig)
}

func (m *MockConfig) Timeouts() config.TimeoutsConfig {
	return m.Called().Get(0).(config.TimeoutsConfig)
}

// -- Browser Mocks --

// MockBrowser mocks schemas.Browser.
type MockBrowser struct {
	mock.Mock
}

var _ schemas.Browser = (*MockBrowser)(nil)

func (m *MockBrowser) NewPage(ctx context.Context, state *schemas.StorageState) (schemas.Page, error) {
	args := m.Called(ctx, state)
	var page schemas.Page
	if p := args.Get(0); p != nil {
		page = p.(schemas.Page)
	}
	return page, args.Error(1)
}

func (m *MockBrowser) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockPage mocks schemas.Page.
type MockPage struct {
	mock.Mock
}

var _ schemas.Page = (*MockPage)(nil)

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockPage) URL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) WaitForNavigation(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) WaitForLoad(ctx context.Context, timeout time.Duration) error {
	return m.Called(ctx, timeout).Error(0)
}

func (m *MockPage) Content(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Click(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *MockPage) EmulatePrintMedia(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockPage) PrintToPDF(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	var data []byte
	if d := args.Get(0); d != nil {
		data = d.([]byte)
	}
	return data, args.Error(1)
}

func (m *MockPage) StorageState(ctx context.Context) (*schemas.StorageState, error) {
	args := m.Called(ctx)
	var state *schemas.StorageState
	if s := args.Get(0); s != nil {
		state = s.(*schemas.StorageState)
	}
	return state, args.Error(1)
}

func (m *MockPage) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
