package testing

import "time"

// Logger Constants
const (
	// TestLoggerLevelDebug is the debug log level used in most tests
	TestLoggerLevelDebug = "debug"
	// TestLoggerLevelDisabled completely disables logging in tests
	TestLoggerLevelDisabled = "disabled"
)

// Endpoint Constants
// Identity endpoints used as request targets across test suites.
const (
	TestAuthority       = "https://login.example.com/common"
	TestTokenEndpoint   = "https://login.example.com/common/oauth2/v2.0/token"
	TestDiscoveryURL    = "https://login.example.com/common/discovery/instance"
	TestClientID        = "00000000-0000-0000-0000-000000000001"
	TestClientRequestID = "test-correlation-id"
)

// Content Types
const (
	TestFormContentType = "application/x-www-form-urlencoded"
	TestJSONContentType = "application/json"
)

// OpenTelemetry Constants
const (
	TestServiceName = "test-service"
)

// Time Duration Constants
const (
	// TestShortDelay is a short delay for goroutine synchronization (100ms)
	TestShortDelay = 100 * time.Millisecond
	// TestEventuallyTimeout is the timeout for require.Eventually assertions (500ms)
	TestEventuallyTimeout = 500 * time.Millisecond
	// TestEventuallyTick is the polling interval for require.Eventually (50ms)
	TestEventuallyTick = 50 * time.Millisecond
)
