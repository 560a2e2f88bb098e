package param

import "context"

// Fetcher resolves a named secret, such as a bootstrap API key.
type Fetcher interface {
	Fetch(context.Context, string) (string, error)
}
