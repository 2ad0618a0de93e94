// gemcheck is the GemPlay API QA harness: it runs built-in suites and
// declarative scenarios against a live backend and reports pass/fail.
//
// Usage:
//
//	gemcheck run [suite...]       Run built-in suites (default: all)
//	gemcheck test [path]          Run declarative scenarios (file or directory)
//	gemcheck list                 List built-in suites
//	gemcheck preflight            Check connectivity and admin login
//	gemcheck history [n|run-id]   Show recent runs from the history database
//	gemcheck history suite/check  Show one check's results across runs
//	gemcheck version              Print the gemcheck version
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

	"github.com/sirupsen/logrus"

	"github.com/gemplay-qa/gemcheck/internal/client"
	"github.com/gemplay-qa/gemcheck/internal/config"
	"github.com/gemplay-qa/gemcheck/internal/console"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// Exit codes.
const (
	exitOK      = 0
	exitFailed  = 1
	exitHarness = 2
)

// options are the global flags accepted before or after the command.
type options struct {
	configPath  string
	reportPath  string
	junitPath   string
	historyPath string
	verbose     bool
	failFast    bool
	noPreflight bool
}

// commands that need a loaded config.
var configCommands = map[string]bool{
	"run":       true,
	"test":      true,
	"preflight": true,
	"history":   true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches one invocation and returns the process exit code.
func run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	cmd, args, opts, err := parseArgs(argv)
	if err != nil {
		fmt.Fprintf(stderr, "gemcheck: %v\n\n", err)
		printUsage(stderr)
		return exitHarness
	}

	switch cmd {
	case "", "help", "--help", "-h":
		printUsage(stdout)
		if cmd == "" {
			return exitHarness
		}
		return exitOK
	case "version", "--version":
		fmt.Fprintf(stdout, "gemcheck version %s\n", version)
		return exitOK
	case "list":
		cmdList(stdout)
		return exitOK
	}

	if !configCommands[cmd] {
		fmt.Fprintf(stderr, "gemcheck: unknown command %q\n\n", cmd)
		printUsage(stderr)
		return exitHarness
	}

	a, err := newApp(opts, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "gemcheck: %v\n", err)
		return exitHarness
	}

	var code int
	switch cmd {
	case "run":
		code, err = a.cmdRun(ctx, args)
	case "test":
		code, err = a.cmdTest(ctx, args)
	case "preflight":
		code, err = a.cmdPreflight(ctx)
	case "history":
		code, err = a.cmdHistory(ctx, args)
	}

	if err != nil {
		fmt.Fprintf(stderr, "gemcheck: %v\n", err)
		return exitHarness
	}
	return code
}

// parseArgs separates global flags from the subcommand and its arguments.
func parseArgs(raw []string) (command string, args []string, opts options, err error) {
	valueFlags := map[string]*string{
		"--config":  &opts.configPath,
		"--report":  &opts.reportPath,
		"--junit":   &opts.junitPath,
		"--history": &opts.historyPath,
	}

	var filtered []string
	for i := 0; i < len(raw); i++ {
		arg := raw[i]
		name, value, hasValue := strings.Cut(arg, "=")
		if dst, ok := valueFlags[name]; ok {
			if !hasValue {
				if i+1 >= len(raw) {
					return "", nil, opts, fmt.Errorf("flag %s needs a value", name)
				}
				value = raw[i+1]
				i++
			}
			*dst = value
			continue
		}

		switch arg {
		case "--verbose":
			opts.verbose = true
		case "--fail-fast":
			opts.failFast = true
		case "--no-preflight":
			opts.noPreflight = true
		case "--help", "-h", "--version":
			filtered = append(filtered, arg)
		default:
			if strings.HasPrefix(arg, "--") {
				return "", nil, opts, fmt.Errorf("unknown flag %s", arg)
			}
			filtered = append(filtered, arg)
		}
	}

	if len(filtered) == 0 {
		return "", nil, opts, nil
	}
	return filtered[0], filtered[1:], opts, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `gemcheck: GemPlay API QA harness %s

Usage:
  gemcheck [options] <command> [arguments]

Commands:
  run [suite...]        Run built-in suites (default: all; tag:<name> selects by tag)
  test [path]           Run declarative scenarios from a file or directory (default: ./scenarios/)
  list                  List built-in suites
  preflight             Check connectivity and admin login
  history [n|run-id]    Show the last n runs (default 20) or one run's records
  history suite/check   Show one check's latest results across runs
  version               Print the gemcheck version

Options:
  --config <path>       Path to config (default: ./gemcheck.yaml)
  --verbose             Log every request and response
  --fail-fast           Stop at the first failed check
  --no-preflight        Skip the connectivity check before run and test
  --report <file>       Write a JSON report
  --junit <file>        Write a JUnit XML report
  --history <file>      Record the run in a SQLite history database

Environment:
  GEMCHECK_CONFIG            Override default config path
  GEMCHECK_BASE_URL          API base URL, e.g. http://localhost:8000/api/v1
  GEMCHECK_ADMIN_EMAIL       Admin account for admin-only suites
  GEMCHECK_ADMIN_PASSWORD
  GEMCHECK_TIMEOUT           Per-request timeout ("30s" or seconds)
  GEMCHECK_HISTORY           History database path

Exit codes:
  0  all checks passed
  1  at least one check failed
  2  configuration or harness error
`, version)
}

// app carries what every config-backed command needs.
type app struct {
	opts       options
	configPath string
	cfg        *config.Config
	log        *logrus.Logger
	printer    *console.Printer
	stdout     io.Writer
}

func newApp(opts options, stdout, stderr io.Writer) (*app, error) {
	configPath := config.ResolvePath(opts.configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if opts.verbose {
		cfg.Verbose = true
	}
	if opts.historyPath != "" {
		cfg.History = opts.historyPath
	}

	return &app{
		opts:       opts,
		configPath: configPath,
		cfg:        cfg,
		log:        newLogger(stderr, cfg.Verbose),
		printer:    console.New(stdout, cfg.Color),
		stdout:     stdout,
	}, nil
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.InfoLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func (a *app) newClient() *client.Client {
	return client.New(a.cfg.BaseURL, client.WithTimeout(a.cfg.Timeout), client.WithLogger(a.log))
}

// errPreflight is returned when the backend is unreachable or the admin
// login fails before a run.
var errPreflight = errors.New("preflight failed")
