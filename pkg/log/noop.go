package log

// NoopLogger drops every event. Sessions, registries and the bot runner
// fall back to it when no logger is configured, so library users get a
// silent session by default.
type NoopLogger struct{}

// NewNoopLogger returns the logger used when none is configured.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

func (NoopLogger) Debug(string, ...Field) {}
func (NoopLogger) Info(string, ...Field)  {}
func (NoopLogger) Warn(string, ...Field)  {}
func (NoopLogger) Error(string, ...Field) {}
