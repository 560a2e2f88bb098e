package param

import (
	"context"
	"os"
)

// EnvFetcher reads secrets from environment variables, e.g. OPENAI_API_KEY.
type EnvFetcher struct{}

func (EnvFetcher) Fetch(_ context.Context, name string) (string, error) {
	return os.Getenv(name), nil
}
