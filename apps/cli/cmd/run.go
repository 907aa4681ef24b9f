package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/reqcheck/packages/core/config"
	"github.com/abdul-hamid-achik/reqcheck/packages/core/env"
	"github.com/abdul-hamid-achik/reqcheck/packages/core/runner"
	"github.com/abdul-hamid-achik/reqcheck/packages/core/suite"
	"github.com/abdul-hamid-achik/reqcheck/packages/output"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [suite.yaml|directory...]",
	Short: "Run API test suites",
	Long: `Run declarative API test suites. Without arguments the built-in
reqres.in suite is run.

Examples:
  reqcheck run
  reqcheck run --base-url http://localhost:3000/api --api-key local
  reqcheck run suites/ --tags smoke --parallel
  reqcheck run users.yaml --name "*User" -o junit --output-file report.xml
  reqcheck run users.yaml --var userId=3 --var name=neo
  reqcheck run --strict-token -vv`,
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	baseURLFlag      string
	apiKeyFlag       string
	apiKeyHeaderFlag string
	contentTypeFlag  string
	headerFlags      []string
	varFlags         []string
	configFlag       string
	envFileFlag      string
	nameFlag         string
	tagsFlag         string
	verboseFlag      int // 0=off, 1=-v, 2=-vv
	quietFlag        bool
	noColorFlag      bool
	outputFlag       string
	outputFileFlag   string
	parallelFlag     bool
	sequentialFlag   bool
	autoIsolateFlag  bool
	concurrencyFlag  int
	rateFlag         float64
	timeoutFlag      string
	bailFlag         bool
	insecureFlag     bool
	proxyFlag        string
	strictTokenFlag  bool
	tokenFlag        string
	watchFlag        bool
)

func init() {
	f := runCmd.Flags()

	// Target flags
	f.StringVar(&baseURLFlag, "base-url", getEnvString("REQCHECK_BASE_URL", ""), "API base URL (env: REQCHECK_BASE_URL)")
	f.StringVar(&apiKeyFlag, "api-key", getEnvString("REQCHECK_API_KEY", ""), "API key sent with every request (env: REQCHECK_API_KEY)")
	f.StringVar(&apiKeyHeaderFlag, "api-key-header", getEnvString("REQCHECK_API_KEY_HEADER", ""), "Header carrying the API key (default x-api-key) (env: REQCHECK_API_KEY_HEADER)")
	f.StringVar(&contentTypeFlag, "content-type", getEnvString("REQCHECK_CONTENT_TYPE", ""), "Content-Type for request bodies (env: REQCHECK_CONTENT_TYPE)")
	f.StringArrayVarP(&headerFlags, "header", "H", getEnvList("REQCHECK_HEADERS"), "Default header as key=value, repeatable (env: REQCHECK_HEADERS, comma-separated)")
	f.StringArrayVar(&varFlags, "var", getEnvList("REQCHECK_VARS"), "Template variable as key=value, overrides suite and config variables, repeatable (env: REQCHECK_VARS, comma-separated)")
	f.StringVar(&configFlag, "config", getEnvString("REQCHECK_CONFIG", ""), "Path to config file (env: REQCHECK_CONFIG)")
	f.StringVar(&envFileFlag, "env-file", getEnvString("REQCHECK_ENV_FILE", ""), "Path to .env file loaded before the config (env: REQCHECK_ENV_FILE)")

	// Selection flags
	f.StringVarP(&nameFlag, "name", "n", getEnvString("REQCHECK_NAME", ""), "Run only cases matching name pattern (env: REQCHECK_NAME)")
	f.StringVarP(&tagsFlag, "tags", "t", getEnvString("REQCHECK_TAGS", ""), "Run only cases with any of these tags (comma-separated) (env: REQCHECK_TAGS)")

	// Output flags
	f.CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v for failed request logs, -vv for all)")
	f.BoolVarP(&quietFlag, "quiet", "q", getEnvBool("REQCHECK_QUIET", false), "Suppress console output, only the exit code reports the result (env: REQCHECK_QUIET)")
	f.BoolVar(&noColorFlag, "no-color", getEnvBool("REQCHECK_NO_COLOR", false), "Disable colored output (env: REQCHECK_NO_COLOR)")
	f.StringVarP(&outputFlag, "output", "o", getEnvString("REQCHECK_OUTPUT", "console"), "Output format: "+strings.Join(output.Formats, ", ")+" (env: REQCHECK_OUTPUT)")
	f.StringVar(&outputFileFlag, "output-file", getEnvString("REQCHECK_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: REQCHECK_OUTPUT_FILE)")

	// Execution flags
	f.BoolVarP(&parallelFlag, "parallel", "p", getEnvBool("REQCHECK_PARALLEL", false), "Run cases concurrently (env: REQCHECK_PARALLEL)")
	f.BoolVar(&sequentialFlag, "sequential", getEnvBool("REQCHECK_SEQUENTIAL", false), "Force sequential execution, overrides --parallel (env: REQCHECK_SEQUENTIAL)")
	f.BoolVar(&autoIsolateFlag, "auto-isolate", getEnvBool("REQCHECK_AUTO_ISOLATE", false), "Run reads concurrently, then writes one by one (env: REQCHECK_AUTO_ISOLATE)")
	f.IntVar(&concurrencyFlag, "concurrency", getEnvInt("REQCHECK_CONCURRENCY", 0), "Number of concurrent requests in parallel mode (default 5) (env: REQCHECK_CONCURRENCY)")
	f.Float64Var(&rateFlag, "rate", getEnvFloat("REQCHECK_RATE", 0), "Maximum requests per second, 0 for unlimited (env: REQCHECK_RATE)")
	f.StringVar(&timeoutFlag, "timeout", getEnvString("REQCHECK_TIMEOUT", ""), "Request timeout, e.g. 10s (default 30s) (env: REQCHECK_TIMEOUT)")
	f.BoolVar(&bailFlag, "bail", getEnvBool("REQCHECK_BAIL", false), "Stop on first failure (env: REQCHECK_BAIL)")
	f.BoolVarP(&watchFlag, "watch", "w", false, "Watch suite files and re-run on change")

	// Network flags
	f.BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("REQCHECK_INSECURE", false), "Disable TLS certificate validation (env: REQCHECK_INSECURE)")
	f.StringVar(&proxyFlag, "proxy", getEnvString("REQCHECK_PROXY", ""), "Proxy URL for HTTP requests (env: REQCHECK_PROXY)")

	// Token flags
	f.BoolVar(&strictTokenFlag, "strict-token", getEnvBool("REQCHECK_STRICT_TOKEN", false), "Compare the login token against an exact value (env: REQCHECK_STRICT_TOKEN)")
	f.StringVar(&tokenFlag, "token", getEnvString("REQCHECK_TOKEN", ""), "Expected token for --strict-token (env: REQCHECK_TOKEN)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvList(key string) []string {
	return splitList(os.Getenv(key))
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}

// parseHeaders turns key=value (or key: value) pairs into a map.
func parseHeaders(pairs []string) (map[string]string, error) {
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, err := splitPair("header", pair)
		if err != nil {
			return nil, err
		}
		headers[key] = value
	}
	return headers, nil
}

// parseVars turns key=value pairs into template variables.
func parseVars(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, err := splitPair("variable", pair)
		if err != nil {
			return nil, err
		}
		vars[key] = value
	}
	return vars, nil
}

func splitPair(kind, pair string) (string, string, error) {
	key, value, ok := strings.Cut(pair, "=")
	if !ok {
		key, value, ok = strings.Cut(pair, ":")
	}
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid %s %q, expected key=value", kind, pair)
	}
	return key, strings.TrimSpace(value), nil
}

// flagBool returns a pointer when the flag was given on the command line or
// through its environment variable, nil otherwise.
func flagBool(cmd *cobra.Command, name, envKey string, value bool) *bool {
	if cmd.Flags().Changed(name) || os.Getenv(envKey) != "" {
		return config.BoolPtr(value)
	}
	return nil
}

// flagConfig collects the settings given as flags so they can be merged on
// top of the config file.
func flagConfig(cmd *cobra.Command) (*config.Config, error) {
	headers, err := parseHeaders(headerFlags)
	if err != nil {
		return nil, err
	}

	var timeout time.Duration
	if timeoutFlag != "" {
		timeout, err = time.ParseDuration(timeoutFlag)
		if err != nil || timeout <= 0 {
			return nil, fmt.Errorf("invalid timeout value %q (use format like 30s, 1m, 500ms)", timeoutFlag)
		}
	}
	if concurrencyFlag < 0 {
		return nil, fmt.Errorf("invalid concurrency %d", concurrencyFlag)
	}
	if rateFlag < 0 {
		return nil, fmt.Errorf("invalid rate %v", rateFlag)
	}

	cfg := &config.Config{
		BaseURL:      baseURLFlag,
		APIKey:       apiKeyFlag,
		APIKeyHeader: apiKeyHeaderFlag,
		ContentType:  contentTypeFlag,
		Headers:      headers,
		Timeout:      timeout,
		Concurrency:  concurrencyFlag,
		RateLimit:    rateFlag,
		Proxy:        proxyFlag,
		Parallel:     flagBool(cmd, "parallel", "REQCHECK_PARALLEL", parallelFlag),
		Sequential:   flagBool(cmd, "sequential", "REQCHECK_SEQUENTIAL", sequentialFlag),
		AutoIsolate:  flagBool(cmd, "auto-isolate", "REQCHECK_AUTO_ISOLATE", autoIsolateFlag),
		Bail:         flagBool(cmd, "bail", "REQCHECK_BAIL", bailFlag),
		NoColor:      flagBool(cmd, "no-color", "REQCHECK_NO_COLOR", noColorFlag),
		Insecure:     flagBool(cmd, "insecure", "REQCHECK_INSECURE", insecureFlag),
		Token: config.Token{
			Strict: flagBool(cmd, "strict-token", "REQCHECK_STRICT_TOKEN", strictTokenFlag),
			Value:  tokenFlag,
		},
	}
	if verboseFlag > 0 {
		cfg.Verbose = config.BoolPtr(true)
	}
	return cfg, nil
}

// varEnvPrefix marks process environment variables that become template
// variables, e.g. REQCHECK_VAR_userId=2 feeds {{userId}}.
const varEnvPrefix = "REQCHECK_VAR_"

// loadSettings resolves the effective configuration: defaults, then the
// config file, then flags. REQCHECK_VAR_* variables sit below the config
// file's variables.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	if envFileFlag != "" {
		if _, err := env.ExportDotEnv(envFileFlag); err != nil {
			return nil, withExitCode(ExitConfigError, fmt.Errorf("loading env file: %w", err))
		}
	}

	fileConfig, err := config.LoadConfig(configFlag, warn)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	if vars := env.LoadSystemEnv(varEnvPrefix); len(vars) > 0 {
		for k, v := range fileConfig.Variables {
			vars[k] = v
		}
		fileConfig.Variables = vars
	}

	overrides, err := flagConfig(cmd)
	if err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}
	return fileConfig.Merge(overrides), nil
}

// loadSuites parses every suite named by args, or returns the built-in
// suite when args is empty.
func loadSuites(args []string) ([]*suite.Suite, error) {
	if len(args) == 0 {
		return []*suite.Suite{suite.Reqres()}, nil
	}

	files, err := collectFiles(args)
	if err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		return nil, withExitCode(ExitUsageError, fmt.Errorf("no suite files found"))
	}

	suites := make([]*suite.Suite, 0, len(files))
	var errs []error
	for _, file := range files {
		s, err := suite.Load(file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		suites = append(suites, s)
	}
	if len(errs) > 0 {
		return nil, withExitCode(ExitParseError, errors.Join(errs...))
	}
	return suites, nil
}

func runnerConfig(cfg *config.Config, overrides map[string]any) *runner.Config {
	return &runner.Config{
		Timeout:        cfg.Timeout,
		FollowRedirect: cfg.GetFollowRedirects(),
		Insecure:       cfg.GetInsecure(),
		Proxy:          cfg.Proxy,
		Parallel:       cfg.GetParallel(),
		Sequential:     cfg.GetSequential(),
		AutoIsolate:    cfg.GetAutoIsolate(),
		Concurrency:    cfg.Concurrency,
		RateLimit:      cfg.RateLimit,
		Bail:           cfg.GetBail(),
		NameFilter:     nameFlag,
		TagsFilter:     splitList(tagsFlag),
		Variables:      cfg.Variables,
		VarOverrides:   overrides,
		RedactHeaders:  []string{cfg.APIKeyHeader, "Authorization"},
		Warn:           warn,
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	spec, err := runner.Configure(cfg.BaseURL, cfg.DefaultHeaders(), cfg.ContentType)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	overrides, err := parseVars(varFlags)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	suites, err := loadSuites(args)
	if err != nil {
		return err
	}

	var outWriter io.Writer = cmd.OutOrStdout()
	if outputFileFlag != "" {
		file, err := os.Create(outputFileFlag)
		if err != nil {
			return withExitCode(ExitConfigError, fmt.Errorf("cannot create output file: %w", err))
		}
		defer file.Close()
		outWriter = file
	} else if quietFlag {
		outWriter = io.Discard
	}

	verbosity := verboseFlag
	if verbosity == 0 && cfg.GetVerbose() {
		verbosity = 1
	}
	newFormatter := func() (output.Formatter, error) {
		f, err := output.New(outputFlag, output.Options{
			Writer:    outWriter,
			Verbosity: verbosity,
			NoColor:   cfg.GetNoColor() || outputFileFlag != "",
		})
		if err != nil {
			return nil, withExitCode(ExitUsageError, err)
		}
		return f, nil
	}

	formatter, err := newFormatter()
	if err != nil {
		return err
	}
	if _, console := formatter.(*output.ConsoleFormatter); console {
		formatter.FormatHeader(version)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.NewRunner(runnerConfig(cfg, overrides))
	policy := cfg.TokenPolicy()

	runAll := func(suites []*suite.Suite, formatter output.Formatter) error {
		start := time.Now()
		failed := 0
		var executed, reached bool
		for _, s := range suites {
			rr := r.Run(ctx, spec, s.WithTokenPolicy(policy))
			formatter.FormatResult(rr)
			failed += rr.Failed
			if len(rr.Results) > rr.Skipped {
				executed = true
				reached = reached || !rr.AllTransportFailures()
			}
			if cfg.GetBail() && !rr.Success() {
				break
			}
		}

		if flushable, ok := formatter.(output.Flushable); ok {
			if err := flushable.Flush(time.Since(start)); err != nil {
				return fmt.Errorf("error writing output: %w", err)
			}
		}

		switch {
		case failed == 0:
			return nil
		case executed && !reached:
			return withExitCode(ExitNetworkError, fmt.Errorf("%w: no case reached %s", errTestsFailed, spec.BaseURL()))
		default:
			return withExitCode(ExitTestFailure, errTestsFailed)
		}
	}

	result := runAll(suites, formatter)
	if !watchFlag {
		return result
	}

	if len(args) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("--watch needs at least one suite file"))
	}
	return watch(ctx, cmd, args, func() {
		suites, err := loadSuites(args)
		if err != nil {
			formatter.FormatError(err)
			return
		}
		// Buffered formatters keep state, so every run gets a fresh one.
		f, err := newFormatter()
		if err != nil {
			formatter.FormatError(err)
			return
		}
		if err := runAll(suites, f); err != nil && !errors.Is(err, errTestsFailed) {
			formatter.FormatError(err)
		}
	})
}

// watch re-runs rerun whenever a suite file below args changes, until ctx
// is cancelled.
func watch(ctx context.Context, cmd *cobra.Command, args []string, rerun func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			arg = filepath.Dir(arg)
		}
		_ = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && !watchedDirs[path] {
				if err := watcher.Add(path); err != nil {
					warn("failed to watch %s: %v", path, err)
				}
				watchedDirs[path] = true
			}
			return nil
		})
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var debounce *time.Timer
	trigger := make(chan string, 1)
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) || !isSuiteFile(event.Name) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			name := event.Name
			debounce = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case trigger <- name:
				default:
				}
			})

		case name := <-trigger:
			fmt.Fprintf(cmd.ErrOrStderr(), "\nFile changed: %s\nRe-running...\n", name)
			rerun()
			fmt.Fprintf(cmd.ErrOrStderr(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			warn("watcher error: %v", err)
		}
	}
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isSuiteFile(path) && !isConfigFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

func isSuiteFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func isConfigFile(path string) bool {
	base := filepath.Base(path)
	for _, name := range config.ConfigFilenames {
		if base == name {
			return true
		}
	}
	return false
}
