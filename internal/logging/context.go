package logging

import "context"

type contextKey int

const (
	jobIDKey contextKey = iota
	loggerKey
)

// WithJobIDCtx returns a context carrying a query job id.
func WithJobIDCtx(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromCtx returns the job id stored in ctx, or "".
func JobIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey).(string)
	return id
}

// WithLoggerCtx returns a context carrying l.
func WithLoggerCtx(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromCtx returns the context's logger, falling back to the global one, tagged
// with the context's job id if it has one.
func FromCtx(ctx context.Context) *Logger {
	l, ok := ctx.Value(loggerKey).(*Logger)
	if !ok || l == nil {
		l = Global()
	}
	if id := JobIDFromCtx(ctx); id != "" {
		l = l.WithJobID(id)
	}
	return l
}
