package errors

// ErrorCategory groups errors by the part of the system that raised them.
// Adapters map categories to exit codes and HTTP statuses.
type ErrorCategory string

const (
	// User input and configuration.
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"

	// Broker and listener failures.
	CategoryNetwork ErrorCategory = "network"

	// Deck pipeline stages, in the order a source passes through them.
	CategoryDiscovery  ErrorCategory = "discovery"
	CategoryConversion ErrorCategory = "conversion"
	CategoryInjection  ErrorCategory = "injection"
	CategoryManifest   ErrorCategory = "manifest"
	CategoryFileSystem ErrorCategory = "filesystem"

	// Navigation sync messages that fail validation.
	CategoryProtocol ErrorCategory = "protocol"

	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// buildCategories abort or degrade a build pass.
var buildCategories = map[ErrorCategory]bool{
	CategoryDiscovery:  true,
	CategoryConversion: true,
	CategoryInjection:  true,
	CategoryManifest:   true,
	CategoryFileSystem: true,
}

// ErrorSeverity is how far an error propagates.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // stops the command
	SeverityError   ErrorSeverity = "error"   // fails one operation
	SeverityWarning ErrorSeverity = "warning" // degraded, work continues
	SeverityInfo    ErrorSeverity = "info"
)

// RetryStrategy tells callers whether repeating the operation can help.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"
	RetryBackoff    RetryStrategy = "backoff"
	RetryUserAction RetryStrategy = "user"
)

// ErrorContext carries structured key/value details such as the source
// path or slide id an error refers to.
type ErrorContext map[string]any

// Set stores value under key, allocating the map when needed.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext, 1)
	}
	c[key] = value
	return c
}

// GetString returns the string stored under key.
func (c ErrorContext) GetString(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

func (c ErrorContext) clone() ErrorContext {
	out := make(ErrorContext, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	return out
}
