// Package relay runs one geminicli invocation: resolve the configuration,
// ask for confirmation, send the prompt, print the answer.
//
// Every outcome, failures included, ends up as a line on the output writer.
// Run also returns the outcome as an error so callers can tell them apart.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/forge-ai/geminicli/internal/config"
	"github.com/forge-ai/geminicli/internal/gemini"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Destination describes where the prompt goes; it is shown when confirming.
	Destination = "GeminiCLI will send your prompt to Gemini."

	abortedMsg  = "Aborted."
	noAPIKeyMsg = "Gemini API key not provided. Use --api-key or set " + config.APIKeyEnv + "."
)

// ErrAborted is returned when the user does not confirm.
var ErrAborted = errors.New("aborted by user")

// ProviderFunc builds the provider once the API key is known.
type ProviderFunc func(apiKey string) gemini.Provider

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the base logger. The default is the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

// Relay runs the resolve, confirm, send, print sequence for one invocation.
type Relay struct {
	out      io.Writer
	confirm  ConfirmFunc
	provider ProviderFunc
	logger   zerolog.Logger
}

// New creates a new Relay that writes every outcome to out.
func New(out io.Writer, confirm ConfirmFunc, provider ProviderFunc, opts ...Option) *Relay {
	r := &Relay{
		out:      out,
		confirm:  confirm,
		provider: provider,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run handles one invocation. args excludes the program name. The provider is
// only built and called after the configuration resolves and the user
// confirms, and then exactly once.
func (r *Relay) Run(ctx context.Context, args []string, env config.Env) error {
	cfg, err := config.Resolve(args, env)
	if err != nil {
		r.reportConfig(err)
		return err
	}

	logger := r.logger.With().Str("request_id", uuid.NewString()).Logger()
	if cfg.Verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}
	ctx = logger.WithContext(ctx)

	ok, err := r.confirm(ctx, Destination)
	if err != nil {
		logger.Debug().Err(err).Msg("confirmation failed")
		fmt.Fprintln(r.out, abortedMsg)
		return fmt.Errorf("%w: %w", ErrAborted, err)
	}
	if !ok {
		fmt.Fprintln(r.out, abortedMsg)
		return ErrAborted
	}
	logger.Debug().Msg("prompt confirmed")

	text, err := r.provider(cfg.APIKey).Generate(ctx, cfg.Prompt)
	if err != nil {
		logger.Debug().Err(err).Msg("request failed")
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return err
	}
	fmt.Fprintln(r.out, text)
	return nil
}

func (r *Relay) reportConfig(err error) {
	var usage *config.UsageError
	switch {
	case errors.Is(err, config.ErrNoPrompt):
		fmt.Fprintln(r.out, config.Usage)
	case errors.Is(err, config.ErrNoAPIKey):
		fmt.Fprintln(r.out, noAPIKeyMsg)
	case errors.As(err, &usage):
		fmt.Fprintf(r.out, "Error: %s\n", usage.Msg)
	default:
		fmt.Fprintf(r.out, "Error: %v\n", err)
	}
}
