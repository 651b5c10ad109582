// Package gemini is a minimal client for the Gemini generateContent endpoint.
// It sends one prompt per call and pulls the first candidate's text out of the
// reply, falling back to the raw body when the reply is not shaped as expected.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// DefaultEndpoint is the gemini-pro generateContent URL, without the key.
const DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent"

const textPath = "candidates.0.content.parts.0.text"

// Request is the generateContent request body.
type Request struct {
	Contents []Content `json:"contents"`
}

// Content is one turn of the conversation.
type Content struct {
	Parts []Part `json:"parts"`
}

// Part is a single text part of a Content.
type Part struct {
	Text string `json:"text"`
}

// NewRequest wraps prompt as a single-part, single-content request.
func NewRequest(prompt string) Request {
	return Request{Contents: []Content{{Parts: []Part{{Text: prompt}}}}}
}

// TransportError covers everything that can go wrong between building the
// request and having a JSON body in hand.
type TransportError struct {
	Op         string
	StatusCode int
	Status     string
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		s := fmt.Sprintf("HTTP Error %d: %s", e.StatusCode, e.Status)
		if e.Message != "" {
			s += " (" + e.Message + ")"
		}
		return s
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Option configures a Client.
type Option func(*Client)

// WithEndpoint points the client at another generateContent URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithDoer replaces the HTTP client.
func WithDoer(d Doer) Option {
	return func(c *Client) { c.doer = d }
}

// Client implements Provider for Gemini.
type Client struct {
	apiKey   string
	endpoint string
	doer     Doer
}

// New creates a new Gemini client that authenticates with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		doer:     &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate makes exactly one request. There are no retries.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	logger := zerolog.Ctx(ctx)

	target, err := c.requestURL()
	if err != nil {
		return "", &TransportError{Op: "build request", Err: err}
	}
	body, err := json.Marshal(NewRequest(prompt))
	if err != nil {
		return "", &TransportError{Op: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", &TransportError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	logger.Debug().
		Str("endpoint", c.endpoint).
		Int("prompt_bytes", len(prompt)).
		Msg("sending prompt")

	start := time.Now()
	resp, err := c.doer.Do(req)
	if err != nil {
		// *url.Error would print the full URL, key included.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return "", &TransportError{Op: "gemini request", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Op: "read response", Err: err}
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Int("body_bytes", len(raw)).
		Dur("elapsed", time.Since(start)).
		Msg("response received")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &TransportError{
			Op:         "gemini request",
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Message:    gjson.GetBytes(raw, "error.message").String(),
		}
	}
	if !gjson.ValidBytes(raw) {
		return "", &TransportError{Op: "decode response", Err: fmt.Errorf("invalid JSON body (%d bytes)", len(raw))}
	}

	text, ok := ExtractText(raw)
	if !ok {
		logger.Debug().Msg("no candidate text in response, printing raw body")
	}
	return text, nil
}

// ExtractText returns candidates[0].content.parts[0].text when it is present
// and a string. Otherwise it returns the body unchanged and false.
func ExtractText(body []byte) (string, bool) {
	r := gjson.GetBytes(body, textPath)
	if r.Type != gjson.String {
		return string(body), false
	}
	return r.Str, true
}

func (c *Client) requestURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
