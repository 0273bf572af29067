package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kirillkom/cropguard/internal/bootstrap"
	"github.com/kirillkom/cropguard/internal/config"
	"github.com/kirillkom/cropguard/internal/observability/logging"
)

const usage = `usage: cropguard [-api URL] [-cookie C] [-log-level L] <command> [flags]

commands:
  detect <image> [-out dir]     run one detection and optionally save the report
  history [-limit n]            list recent detections
  dashboard                     show totals, distribution and recent history
  add-crop -type T [-location L] [-planted YYYY-MM-DD]
  export -out file.xlsx         write the dashboard workbook
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], config.Load(), os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, cfg config.Config, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("cropguard", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	apiURL := global.String("api", cfg.CropAPIURL, "backend base URL")
	cookie := global.String("cookie", cfg.CropAPICookie, "cookie header forwarded to the backend")
	logLevel := global.String("log-level", "warn", "log level for diagnostics on stderr")
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	if global.NArg() == 0 {
		global.Usage()
		return errUsage
	}
	cfg.CropAPIURL = *apiURL
	cfg.CropAPICookie = *cookie
	cfg.LogLevel = *logLevel

	name, rest := global.Arg(0), global.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q (want one of: %s)\n\n", name, strings.Join(commandNames(), ", "))
		global.Usage()
		return errUsage
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := cmd.flags(fs)
	if err := fs.Parse(rest); err != nil {
		return errUsage
	}
	if err := opts.validate(fs.Args()); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
		return errUsage
	}
	opts.configure(&cfg)

	logger := logging.New(stderr, "cropguard-cli", cfg.LogLevel)
	app, err := bootstrap.NewWithLogger(ctx, cfg, "cropguard-cli", logger)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	return opts.run(ctx, app, stdout)
}
