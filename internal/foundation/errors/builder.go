package errors

// ErrorBuilder assembles a ClassifiedError step by step:
//
//	err := errors.WrapError(cause, errors.CategoryConversion, "renderer failed").
//		WithContext("source", path).
//		Build()
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts a builder for an error without an underlying cause.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return WrapError(nil, category, message)
}

// WrapError starts a builder whose error unwraps to cause.
func WrapError(cause error, category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{err: ClassifiedError{
		category: category,
		severity: SeverityError,
		retry:    RetryNever,
		message:  message,
		cause:    cause,
	}}
}

func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.err.severity = severity
	return b
}

func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.err.retry = strategy
	return b
}

func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.context = b.err.context.Set(key, value)
	return b
}

func (b *ErrorBuilder) Fatal() *ErrorBuilder { return b.WithSeverity(SeverityFatal) }
func (b *ErrorBuilder) Warning() *ErrorBuilder { return b.WithSeverity(SeverityWarning) }
func (b *ErrorBuilder) Info() *ErrorBuilder { return b.WithSeverity(SeverityInfo) }
func (b *ErrorBuilder) Retryable() *ErrorBuilder { return b.WithRetry(RetryBackoff) }

// Build returns the finished error. The builder may be reused afterwards
// without affecting errors it already produced.
func (b *ErrorBuilder) Build() *ClassifiedError {
	out := b.err
	out.context = b.err.context.clone()
	return &out
}

// ConfigError reports an unusable configuration file or flag combination.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal().WithRetry(RetryUserAction)
}

func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).Fatal().WithRetry(RetryUserAction)
}

func NotFoundError(message string) *ErrorBuilder {
	return NewError(CategoryNotFound, message)
}

// NetworkError reports broker or listener trouble; usually transient.
func NetworkError(message string) *ErrorBuilder {
	return NewError(CategoryNetwork, message).Retryable()
}

// DiscoveryError reports an unreadable sources directory. Build passes treat
// it as an empty source set.
func DiscoveryError(message string) *ErrorBuilder {
	return NewError(CategoryDiscovery, message).Warning()
}

// ConversionError reports a renderer failure for one source.
func ConversionError(message string) *ErrorBuilder {
	return NewError(CategoryConversion, message).Retryable()
}

func InjectionError(message string) *ErrorBuilder {
	return NewError(CategoryInjection, message)
}

// ManifestError reports a catalog that could not be read or written.
func ManifestError(message string) *ErrorBuilder {
	return NewError(CategoryManifest, message).Fatal()
}

func FileSystemError(message string) *ErrorBuilder {
	return NewError(CategoryFileSystem, message).Retryable()
}

// ProtocolError reports a malformed navigation message. Receivers drop such
// messages, so the severity is informational.
func ProtocolError(message string) *ErrorBuilder {
	return NewError(CategoryProtocol, message).Info()
}

func RuntimeError(message string) *ErrorBuilder {
	return NewError(CategoryRuntime, message).Fatal()
}

func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).Fatal()
}
