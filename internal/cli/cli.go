package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/eventhost/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// pathList collects a repeatable -config flag.
type pathList []string

func (p *pathList) String() string { return strings.Join(*p, ",") }

func (p *pathList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("eventhost", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
eventhost - an in-process, name-addressed event host.

Usage:
  eventhost [options] [CONFIG_PATH...]

Arguments:
  CONFIG_PATH
    A .hcl, .yaml or .yml file, or a directory containing them.

Options:
`)
		flagSet.PrintDefaults()
	}

	var configs pathList
	flagSet.Var(&configs, "config", "Config file or directory. May be repeated.")
	dotenvFlag := flagSet.String("env-file", ".env", "Optional dotenv file loaded before reading EVENTHOST_* variables.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	httpPortFlag := flagSet.Int("http-port", 0, "Port for the HTTP ingress server. 0 disables it. Overrides the configured value when given.")
	timeoutFlag := flagSet.Duration("callback-timeout", 0, "Maximum time to await one callback's asynchronous result. 0 waits forever. Overrides the configured value when given.")
	consoleFlag := flagSet.Bool("console", false, "Start an interactive console for triggering events.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	paths := append([]string(configs), flagSet.Args()...)
	if len(paths) == 0 {
		slog.Debug("No config path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "" && logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	cfg := app.Config{
		ConfigPaths: paths,
		DotenvPath:  *dotenvFlag,
		LogLevel:    logLevel,
		LogFormat:   logFormat,
		Console:     *consoleFlag,
	}
	// Only flags the user actually passed override the configuration.
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http-port":
			cfg.HTTPPort = httpPortFlag
		case "callback-timeout":
			cfg.CallbackTimeout = timeoutFlag
		}
	})
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
