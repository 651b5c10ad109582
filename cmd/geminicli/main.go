// geminicli sends a single prompt to the Gemini generateContent API, after an
// interactive confirmation, and prints the reply.
//
//	geminicli "<prompt>" [--api-key KEY] [-v]
//
// The key falls back to GEMINI_API_KEY, read from the environment or a .env
// file in the working directory. Results and messages go to stdout, logs to
// stderr. The exit status is 0 on every path, including errors.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/forge-ai/geminicli/internal/config"
	"github.com/forge-ai/geminicli/internal/gemini"
	"github.com/forge-ai/geminicli/internal/relay"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(zerolog.WarnLevel)

	env := config.LoadEnv(".env")
	if env["DEBUG"] == "1" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(env, func(apiKey string) gemini.Provider {
		return gemini.New(apiKey)
	})
	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Debug().Err(err).Msg("invocation ended early")
	}
}

// newRootCmd hands the raw arguments to the relay, which does its own flag
// parsing so that a dangling --api-key is reported the same way everywhere.
func newRootCmd(env config.Env, provider relay.ProviderFunc) *cobra.Command {
	return &cobra.Command{
		Use:   `geminicli "<prompt>" [--api-key KEY] [-v]`,
		Short: "Send a prompt to Gemini and print the reply",
		Long: `Send a prompt to Gemini and print the reply.

The API key comes from --api-key or, failing that, GEMINI_API_KEY.
You are asked to confirm before anything is sent.`,
		DisableFlagParsing: true,
		SilenceErrors:      true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			r := relay.New(out, relay.TerminalConfirm(cmd.InOrStdin(), out), provider)
			return r.Run(cmd.Context(), args, env)
		},
	}
}
