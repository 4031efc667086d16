package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/walkabout/scorecard/pkg/config"
	"github.com/walkabout/scorecard/pkg/logger"
	"github.com/walkabout/scorecard/pkg/media"
	"github.com/walkabout/scorecard/pkg/metrics"
	"github.com/walkabout/scorecard/pkg/providers"
	"github.com/walkabout/scorecard/pkg/scorecard"
	"github.com/walkabout/scorecard/pkg/server"
	"github.com/walkabout/scorecard/pkg/spinner"
)

var version = "dev"

const shutdownTimeout = 15 * time.Second

type cliArgs struct {
	paths       []string
	format      bool
	noAnimation bool
	single      bool
	help        bool
	addr        string
}

func main() {
	code := run(os.Args[1:], os.Stdout, os.Stderr)
	logger.Sync()
	os.Exit(code)
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "serve":
			return runServe(args[1:], stdout, stderr)
		case "version":
			fmt.Fprintf(stdout, "scorecard %s\n", version)
			return 0
		}
	}

	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		printUsage(stderr)
		return 1
	}
	if opts.help {
		printUsage(stdout)
		return 0
	}
	if err := scorecard.ValidateCount(len(opts.paths), opts.single); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		printUsage(stderr)
		return 1
	}

	parser, err := newParser(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	units, err := parser.LoadImages(opts.paths)
	if err != nil {
		fmt.Fprintln(stderr, describe(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spin := spinner.New(stderr, !opts.noAnimation && isTerminal(stderr))
	spin.Start("Parsing scorecards...")
	result, err := parser.Parse(ctx, units, opts.single)
	if err != nil {
		spin.Fail("Error parsing scorecards")
		fmt.Fprintln(stderr, describe(err))
		return 1
	}
	spin.Succeed("Scorecards parsed successfully!")

	fmt.Fprintf(stdout, "%s\n", scorecard.Render(result.JSON, opts.format))
	return 0
}

func runServe(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args)
	if err == nil && len(opts.paths) > 0 {
		err = fmt.Errorf("%w: serve takes no image paths", scorecard.ErrUsage)
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		printUsage(stderr)
		return 1
	}
	if opts.help {
		printUsage(stdout)
		return 0
	}

	cfg, err := loadConfig(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	parser, err := parserFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	addr := cfg.Addr
	if opts.addr != "" {
		addr = opts.addr
	}
	fmt.Fprintf(stdout, "scorecard API listening on %s\n", addr)
	logger.InfoCF("main", "Scorecard API listening", logger.Fields{"addr": addr})
	if err := server.Serve(server.New(parser, addr), shutdownTimeout); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig reads the configuration and points the logger at logOut.
func loadConfig(logOut io.Writer) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logOut, cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newParser(logOut io.Writer) (*scorecard.Parser, error) {
	cfg, err := loadConfig(logOut)
	if err != nil {
		return nil, err
	}
	return parserFromConfig(cfg)
}

func parserFromConfig(cfg *config.Config) (*scorecard.Parser, error) {
	provider, model, err := providers.CreateProvider(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Credentials(cfg.Provider).APIKey == "" {
		logger.WarnCF("main", "No API key configured", logger.Fields{"provider": cfg.Provider})
	}
	fields := logger.Fields{"provider": cfg.Provider, "model": model}
	if fb, ok := provider.(*providers.FallbackProvider); ok {
		fields["fallback_provider"] = cfg.FallbackProvider
		fields["fallback_model"] = fb.FallbackModel()
	}
	logger.DebugCF("main", "Provider ready", fields)
	return scorecard.NewParser(provider, scorecard.Options{
		Model:       model,
		MaxTokens:   cfg.MaxTokens,
		JPEGQuality: cfg.JPEGQuality,
		Tracker:     metrics.NewTracker(cfg.MetricsFile),
	}), nil
}

// parseArgs accepts flags before, between and after image paths. Everything
// after "--" is a path.
func parseArgs(args []string) (cliArgs, error) {
	var opts cliArgs
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			opts.paths = append(opts.paths, args[i+1:]...)
			break
		}
		if arg == "-" || !strings.HasPrefix(arg, "-") {
			opts.paths = append(opts.paths, arg)
			continue
		}

		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "-f", "--format":
			opts.format = true
		case "-n", "--no-animation":
			opts.noAnimation = true
		case "-s", "--single":
			opts.single = true
		case "-h", "--help":
			opts.help = true
		case "--addr":
			if !hasValue {
				if i+1 >= len(args) {
					return opts, fmt.Errorf("%w: --addr needs a value", scorecard.ErrUsage)
				}
				i++
				value = args[i]
			}
			opts.addr = value
			continue
		default:
			return opts, fmt.Errorf("%w: unknown flag %s", scorecard.ErrUsage, name)
		}
		if hasValue {
			return opts, fmt.Errorf("%w: %s takes no value", scorecard.ErrUsage, name)
		}
	}
	return opts, nil
}

// describe turns a pipeline error into the diagnostic printed on stderr.
func describe(err error) string {
	switch {
	case errors.Is(err, media.ErrFileNotFound), errors.Is(err, media.ErrUnsupportedFormat):
		return "Error processing images: " + unwrapOp(err).Error()
	case errors.Is(err, scorecard.ErrAPICall), errors.Is(err, scorecard.ErrResponseParse):
		return "Error details: " + err.Error()
	case errors.Is(err, context.Canceled):
		return "Interrupted"
	default:
		return "An error occurred: " + err.Error()
	}
}

func unwrapOp(err error) error {
	var op *scorecard.OpError
	if errors.As(err, &op) {
		return op.Err
	}
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && spinner.IsTerminal(f)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `scorecard - turn Walkabout mini golf scorecard photos into JSON

Usage:
  scorecard <path_to_scorecard_image1> [path_to_scorecard_image2 ...] [options]
  scorecard serve [--addr :8080]
  scorecard version

You must provide at least 1 and at most 5 image paths (exactly 1 with --single).
An image file named "serve" or "version" must come after "--", as in: scorecard -- serve
Supported formats: .jpg .jpeg .png .gif

Options:
  -f, --format        Format the output JSON
  -n, --no-animation  Disable the loading animation
  -s, --single        Parse one scorecard and print it without a filename key
  -h, --help          Show help

Environment:
  ANTHROPIC_API_KEY, OPENAI_API_KEY, SCORECARD_PROVIDER, SCORECARD_MODEL,
  SCORECARD_MAX_TOKENS, SCORECARD_JPEG_QUALITY, SCORECARD_LOG_LEVEL,
  SCORECARD_CONFIG (YAML file). A .env file in the working directory is read first.
`)
}
