package envutil

import "context"

type envContextKey string

// WithEnvOverride returns a context in which readers see value for key
// instead of whatever the process environment holds. Overrides are mostly
// useful in tests, where t.Setenv would prevent t.Parallel.
func WithEnvOverride(ctx context.Context, key string, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, envContextKey(key), value)
}

func getEnvOverride(ctx context.Context, key string) (string, bool) {
	if ctx == nil {
		return "", false
	}

	val, ok := ctx.Value(envContextKey(key)).(string)

	return val, ok
}
