package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/apicase/packages/core/config"
	"github.com/abdul-hamid-achik/apicase/packages/core/env"
	"github.com/abdul-hamid-achik/apicase/packages/core/parser"
	"github.com/abdul-hamid-achik/apicase/packages/core/runner"
	"github.com/abdul-hamid-achik/apicase/packages/history"
	"github.com/abdul-hamid-achik/apicase/packages/metrics"
	"github.com/abdul-hamid-achik/apicase/packages/notify"
	"github.com/abdul-hamid-achik/apicase/packages/output"
	"github.com/abdul-hamid-achik/apicase/packages/stats"
	"github.com/abdul-hamid-achik/apicase/packages/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run API test cases from apicase files",
	Long: `Run the test cases defined in .apicase or .tc files. Every case of a
file is sent concurrently; files run one after another.

Examples:
  apicase run api.apicase
  apicase run ./tests/ --name "get*"
  apicase run api.apicase -o junit --output-file report.xml
  apicase run api.apicase --env-file .env --history
  apicase run ./tests/ --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond

	// defaultHistoryFlag is the value --history takes when given without a path
	defaultHistoryFlag = "default"

	telemetryShutdownTimeout = 5 * time.Second
)

var (
	envFileFlag    string
	configFlag     string
	nameFlag       string
	verboseFlag    bool
	noColorFlag    bool
	timeoutFlag    string
	dryRunFlag     bool
	outputFlag     string
	outputFileFlag string
	watchFlag      bool
	proxyFlag      string
	insecureFlag   bool
	historyFlag    string

	metricsFlag       string
	metricsFileFlag   string
	metricsPortFlag   int
	datadogAPIKeyFlag string
	datadogSiteFlag   string
	datadogTagsFlag   string

	notifyFlag       string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string
)

func init() {
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("APICASE_ENV_FILE", ""), "Path to .env file for variable interpolation (env: APICASE_ENV_FILE)")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("APICASE_CONFIG", ""), "Path to config file (env: APICASE_CONFIG)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only test cases matching name pattern (* wildcards)")

	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", getEnvBool("APICASE_VERBOSE", false), "Print method, URL, status and duration of every case (env: APICASE_VERBOSE)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("APICASE_NO_COLOR", false), "Disable colored output (env: APICASE_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("APICASE_OUTPUT", ""), "Output format: console, json, junit, tap, xlsx (env: APICASE_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("APICASE_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: APICASE_OUTPUT_FILE)")

	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("APICASE_TIMEOUT", ""), "Request timeout, e.g. 30s or 1m (default from config, 30s) (env: APICASE_TIMEOUT)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Parse and show what would run without sending requests")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run tests")
	runCmd.Flags().StringVar(&historyFlag, "history", getEnvString("APICASE_HISTORY", ""), "Record the run in a SQLite history database; without a value uses ~/.apicase/history.db (env: APICASE_HISTORY)")
	runCmd.Flags().Lookup("history").NoOptDefVal = defaultHistoryFlag

	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("APICASE_PROXY", ""), "Proxy URL for HTTP requests (env: APICASE_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("APICASE_INSECURE", false), "Disable SSL certificate validation (env: APICASE_INSECURE)")

	runCmd.Flags().StringVar(&metricsFlag, "metrics", getEnvString("APICASE_METRICS", ""), "Metrics export: prometheus, datadog, json, comma-separated (env: APICASE_METRICS)")
	runCmd.Flags().StringVar(&metricsFileFlag, "metrics-file", getEnvString("APICASE_METRICS_FILE", ""), "File for json metrics (default: stdout) (env: APICASE_METRICS_FILE)")
	runCmd.Flags().IntVar(&metricsPortFlag, "metrics-port", getEnvInt("APICASE_METRICS_PORT", 0), "Serve Prometheus metrics on this port instead of printing them (env: APICASE_METRICS_PORT)")
	runCmd.Flags().StringVar(&datadogAPIKeyFlag, "datadog-api-key", getEnvString("DD_API_KEY", ""), "DataDog API key (env: DD_API_KEY)")
	runCmd.Flags().StringVar(&datadogSiteFlag, "datadog-site", getEnvString("DD_SITE", "datadoghq.com"), "DataDog site (env: DD_SITE)")
	runCmd.Flags().StringVar(&datadogTagsFlag, "datadog-tags", getEnvString("DD_TAGS", ""), "Comma-separated DataDog tags (env: DD_TAGS)")

	runCmd.Flags().StringVar(&notifyFlag, "notify", getEnvString("APICASE_NOTIFY", ""), "Notification service: slack, teams, comma-separated (env: APICASE_NOTIFY)")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("APICASE_NOTIFY_ON", "failure"), "When to notify: always, failure, success, recovery (env: APICASE_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
	runCmd.Flags().StringVar(&teamsWebhookFlag, "teams-webhook", getEnvString("TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: TEAMS_WEBHOOK)")

	_ = runCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return outputFormats, cobra.ShellCompDirectiveNoFileComp
	})
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
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// Formatter is implemented by every output format.
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
	Flush(totalDuration time.Duration) error
}

// runSettings is the merged view of config file, environment and flags.
type runSettings struct {
	runner     runner.Config
	output     string
	outputFile string
	verbose    bool
	noColor    bool
	history    string
	telemetry  telemetry.Config
}

func resolveSettings(fileConfig *config.Config) (*runSettings, error) {
	s := &runSettings{
		output:     strings.ToLower(firstNonEmpty(outputFlag, fileConfig.Output, config.DefaultOutput)),
		outputFile: outputFileFlag,
		verbose:    verboseFlag || fileConfig.GetVerbose(),
		noColor:    noColorFlag || fileConfig.GetNoColor(),
		history:    firstNonEmpty(historyFlag, fileConfig.History),
	}
	if s.history == defaultHistoryFlag {
		s.history = history.DefaultPath()
	}

	timeout := fileConfig.GetTimeout()
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, exitf(ExitUsageError, "invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err)
		}
		timeout = d
	}

	vars, err := env.LoadVariables(fileConfig.Variables, firstNonEmpty(envFileFlag, fileConfig.EnvFile))
	if err != nil {
		return nil, exitf(ExitConfigError, "loading env file: %w", err)
	}

	s.runner = runner.Config{
		Timeout:        timeout,
		FollowRedirect: fileConfig.GetFollowRedirects(),
		MaxRedirects:   fileConfig.MaxRedirects,
		Insecure:       insecureFlag || !fileConfig.GetValidateSSL(),
		Proxy:          firstNonEmpty(proxyFlag, fileConfig.Proxy),
		Headers:        fileConfig.Headers,
		Variables:      vars,
		NameFilter:     nameFlag,
	}

	s.telemetry = telemetry.ConfigFromEnv(os.Getenv)
	if fileConfig.Telemetry != nil {
		s.telemetry = s.telemetry.Merge(telemetry.Config{
			Endpoint:    fileConfig.Telemetry.Endpoint,
			Insecure:    fileConfig.GetTelemetryInsecure(),
			ServiceName: fileConfig.Telemetry.ServiceName,
			Headers:     fileConfig.Telemetry.Headers,
		})
	}
	s.telemetry.Version = version

	return s, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func newFormatter(format string, w io.Writer, s *runSettings, collector *stats.Collector) (Formatter, error) {
	switch format {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w), output.JSONWithCollector(collector)), nil
	case "junit":
		return output.NewJUnitFormatter(output.JUnitWithWriter(w)), nil
	case "tap":
		return output.NewTAPFormatter(output.TAPWithWriter(w)), nil
	case "xlsx":
		if s.outputFile == "" {
			return nil, exitf(ExitUsageError, "xlsx output requires --output-file")
		}
		return output.NewXLSXFormatter(output.XLSXWithWriter(w), output.XLSXWithCollector(collector)), nil
	case "console":
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(s.verbose),
			output.WithNoColor(s.noColor),
			output.WithCollector(collector),
		), nil
	default:
		return nil, exitf(ExitUsageError, "unknown output format %q (use console, json, junit, tap or xlsx)", format)
	}
}

// session is the state shared by every pass of one run command; watch mode
// reuses it so stats are reset and notifications can report recoveries.
type session struct {
	runner   *runner.Runner
	settings *runSettings
	stats    *stats.Collector
	metrics  *metrics.Collector
	notifier *notify.Manager
}

// outcome totals one pass over every file.
type outcome struct {
	runs             []*runner.RunResult
	passed           int
	failed           int
	skipped          int
	statusMismatches int
	requestErrors    int
	parseErrors      int
	duration         time.Duration
}

func (o *outcome) add(result *runner.RunResult) {
	o.runs = append(o.runs, result)
	o.passed += result.Passed
	o.failed += result.Failed
	o.skipped += result.Skipped
	o.statusMismatches += result.StatusMismatches
	o.requestErrors += result.RequestErrors
}

// err turns the outcome into the command's exit status.
func (o *outcome) err() error {
	switch {
	case o.parseErrors > 0:
		return withExitCode(ExitParseError, nil)
	case o.failed > 0 && o.statusMismatches == 0:
		return withExitCode(ExitNetworkError, nil)
	case o.failed > 0:
		return withExitCode(ExitTestFailure, nil)
	default:
		return nil
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		return exitf(ExitUsageError, "no .apicase or .tc files found")
	}

	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return exitf(ExitConfigError, "loading config: %w", err)
	}

	s, err := resolveSettings(fileConfig)
	if err != nil {
		return err
	}

	if dryRunFlag {
		return dryRun(cmd, files, s)
	}

	notifier, err := newNotifier()
	if err != nil {
		return err
	}
	metricsCollector, err := newMetricsCollector(cmd)
	if err != nil {
		return err
	}
	if metricsCollector != nil {
		defer func() {
			if err := metricsCollector.Close(); err != nil {
				warn("metrics: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instrumenter, err := telemetry.New(s.telemetry)
	if err != nil {
		return exitf(ExitConfigError, "setting up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := instrumenter.Shutdown(shutdownCtx); err != nil {
			warn("telemetry shutdown: %v", err)
		}
	}()

	sess := &session{
		runner: runner.NewRunner(&s.runner,
			runner.WithInstrumenter(instrumenter),
			runner.WithWarnFunc(warn),
		),
		settings: s,
		stats:    stats.NewCollector(),
		metrics:  metricsCollector,
		notifier: notifier,
	}

	result, err := runOnce(ctx, cmd, files, sess)
	if err != nil {
		return err
	}

	if !watchFlag {
		return result.err()
	}

	return watch(ctx, cmd, args, files, sess)
}

func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}

// runOnce runs every file in order and writes one report.
func runOnce(ctx context.Context, cmd *cobra.Command, files []string, sess *session) (*outcome, error) {
	s := sess.settings
	w := cmd.OutOrStdout()
	if s.outputFile != "" {
		f, err := os.Create(s.outputFile)
		if err != nil {
			return nil, exitf(ExitConfigError, "cannot create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	sess.stats.Reset()
	if sess.metrics != nil {
		sess.metrics.Reset()
	}

	formatter, err := newFormatter(s.output, w, s, sess.stats)
	if err != nil {
		return nil, err
	}
	formatter.FormatHeader(version)

	startedAt := time.Now()
	result := &outcome{}
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}

		parsed, err := parser.ParseFile(file)
		if err != nil {
			formatter.FormatError(err)
			result.parseErrors++
			continue
		}

		run := sess.runner.RunParsed(ctx, parsed)
		result.add(run)
		sess.stats.RecordRun(run)
		if sess.metrics != nil {
			sess.metrics.RecordRun(run)
		}
		formatter.FormatResult(run)
	}
	result.duration = time.Since(startedAt)

	if err := formatter.Flush(result.duration); err != nil {
		return nil, fmt.Errorf("error writing output: %w", err)
	}

	if s.history != "" && len(result.runs) > 0 {
		if err := saveHistory(ctx, cmd, s.history, startedAt, result); err != nil {
			warn("history: %v", err)
		}
	}

	if sess.metrics != nil {
		if err := sess.metrics.Flush(sess.stats.Summary()); err != nil {
			warn("metrics: %v", err)
		}
	}

	if sess.notifier != nil {
		summary := notify.NewRunSummary(len(files), result.runs, result.duration)
		if err := sess.notifier.Notify(summary); err != nil {
			warn("failed to send notification: %v", err)
		}
	}

	return result, nil
}

func saveHistory(ctx context.Context, cmd *cobra.Command, path string, startedAt time.Time, result *outcome) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.SaveRun(ctx, startedAt, result.duration, result.runs)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Saved run %s to %s\n", id, path)
	return nil
}

func dryRun(cmd *cobra.Command, files []string, s *runSettings) error {
	out := cmd.OutOrStdout()
	resolver := env.NewResolver()
	resolver.SetVariables(s.runner.Variables)

	var failed bool
	for _, file := range files {
		parsed, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			failed = true
			continue
		}

		var selected []*parser.TestCase
		for _, tc := range parsed.Cases {
			if runner.Selected(tc, s.runner.NameFilter) {
				selected = append(selected, tc)
			}
		}

		fmt.Fprintf(out, "Would run: %s (%d cases)\n", file, len(selected))
		for _, tc := range selected {
			fmt.Fprintf(out, "  %s %s -> %d  %s\n", tc.Method, tc.URL, tc.StatusCode, tc.Name)

			missing := resolver.Unresolved(tc.URL)
			for _, k := range tc.Headers.Keys() {
				missing = append(missing, resolver.Unresolved(tc.Headers[k])...)
			}
			if len(missing) > 0 {
				fmt.Fprintf(out, "    unresolved: %s\n", strings.Join(missing, ", "))
			}
		}
	}
	if failed {
		return withExitCode(ExitParseError, nil)
	}
	return nil
}

func watch(ctx context.Context, cmd *cobra.Command, args, files []string, sess *session) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				warn("failed to watch %s: %v", dir, err)
			}
			watchedDirs[dir] = true
		}
	}

	// Also watch the original args if they're directories
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() && !watchedDirs[path] {
					_ = watcher.Add(path)
					watchedDirs[path] = true
				}
				return nil
			})
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	changed := make(chan string, 1)
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) || !isTestFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case changed <- name:
				default:
				}
			})

		case name := <-changed:
			fmt.Fprintf(cmd.ErrOrStderr(), "\nFile changed: %s\nRe-running tests...\n\n", name)

			// New files may have appeared in watched directories.
			if latest, err := collectFiles(args); err == nil {
				files = latest
			}
			if _, err := runOnce(ctx, cmd, files, sess); err != nil {
				warn("%v", err)
			}

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

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && isTestFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if isTestFile(arg) {
			files = append(files, arg)
		}
	}

	return files, nil
}

func isTestFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".apicase" || ext == ".tc"
}
