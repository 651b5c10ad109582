// Package config turns the raw command line and the environment into the
// settings for a single invocation.
package config

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

const (
	APIKeyEnv = "GEMINI_API_KEY"

	Usage = `Usage: geminicli "<prompt>" [--api-key KEY]`

	apiKeyFlag  = "api-key"
	verboseFlag = "verbose"
)

var (
	// ErrNoPrompt means there is nothing to send. Callers print Usage.
	ErrNoPrompt = errors.New("no prompt given")
	// ErrNoAPIKey means neither --api-key nor GEMINI_API_KEY produced a key.
	ErrNoAPIKey = errors.New("gemini api key not provided")
	// ErrAPIKeyValue is returned when --api-key is the last argument.
	ErrAPIKeyValue = &UsageError{Msg: "--api-key requires a value"}
)

// UsageError is a malformed command line.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// InvocationConfig is everything one run needs. It is not modified after
// Resolve returns it.
type InvocationConfig struct {
	Prompt  string
	APIKey  string
	Verbose bool
}

// Env is an explicit environment mapping, so resolution never reads the
// process environment on its own.
type Env map[string]string

// Environ builds an Env from "KEY=value" pairs as returned by os.Environ.
func Environ(pairs []string) Env {
	env := make(Env, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

// LoadEnv returns the process environment layered over the given dotenv
// files. Earlier files win over later ones and the process environment wins
// over all of them, matching godotenv.Load. Missing files are skipped.
func LoadEnv(files ...string) Env {
	env := Env{}
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Warn().Err(err).Str("file", f).Msg("ignoring unreadable dotenv file")
			}
			continue
		}
		for k, v := range vals {
			if _, ok := env[k]; !ok {
				env[k] = v
			}
		}
	}
	for k, v := range Environ(os.Environ()) {
		env[k] = v
	}
	return env
}

// Resolve parses args (without the program name) and resolves the API key,
// preferring --api-key over GEMINI_API_KEY. Only --api-key, -v/--verbose and
// -h/--help are flags; every other argument, dashes or not, is positional.
func Resolve(args []string, env Env) (InvocationConfig, error) {
	flagArgs, positional, dangling := splitArgs(args)
	if dangling {
		return InvocationConfig{}, ErrAPIKeyValue
	}

	flags := pflag.NewFlagSet("geminicli", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	apiKey := flags.String(apiKeyFlag, "", "Gemini API key (default $"+APIKeyEnv+")")
	verbose := flags.BoolP(verboseFlag, "v", false, "log request details to stderr")

	if err := flags.Parse(flagArgs); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return InvocationConfig{}, ErrNoPrompt
		}
		return InvocationConfig{}, &UsageError{Msg: err.Error()}
	}
	if len(positional) == 0 {
		return InvocationConfig{}, ErrNoPrompt
	}

	cfg := InvocationConfig{
		Prompt:  positional[0],
		APIKey:  *apiKey,
		Verbose: *verbose,
	}
	if cfg.APIKey == "" {
		cfg.APIKey = env[APIKeyEnv]
	}
	if cfg.APIKey == "" {
		return InvocationConfig{}, ErrNoAPIKey
	}
	return cfg, nil
}

// splitArgs separates the recognized flags from positionals so that prompts
// like "-5 plus 3?" never reach the flag parser. dangling is set when
// --api-key is the last argument.
func splitArgs(args []string) (flagArgs, positional []string, dangling bool) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			return flagArgs, append(positional, args[i+1:]...), false
		case a == "--"+apiKeyFlag:
			if i == len(args)-1 {
				return nil, nil, true
			}
			flagArgs = append(flagArgs, a, args[i+1])
			i++
		case strings.HasPrefix(a, "--"+apiKeyFlag+"="),
			strings.HasPrefix(a, "--"+verboseFlag+"="),
			a == "--"+verboseFlag, a == "-v", a == "--help", a == "-h":
			flagArgs = append(flagArgs, a)
		default:
			positional = append(positional, a)
		}
	}
	return flagArgs, positional, false
}
