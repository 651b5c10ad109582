package gemini

import (
	"context"
	"net/http"
)

// Provider is the one thing the relay needs from a generative API: send a
// prompt, get text back.
type Provider interface {
	// Generate sends prompt and returns the text to print.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Doer performs an HTTP round trip. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

var _ Provider = (*Client)(nil)
