package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/mergekeeper/internal/cfg"
	"github.com/simplesurance/mergekeeper/internal/logfields"
)

const appName = "mergekeeper"

const (
	cmdBranchMerge = "branch-merge"
	cmdPRSweep     = "pr-sweep"
	cmdServe       = "serve"
)

var logger *zap.Logger

// Version is set via a ldflag on compilation
var Version = "unknown"

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught , terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

type arguments struct {
	Verbose     *bool
	ConfigFile  *string
	EnvFile     *string
	ShowVersion *bool
	Command     string
}

var args arguments

const (
	defConfigFile = "/etc/mergekeeper/config.toml"
	defEnvFile    = ".env"
)

func mustParseCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ConfigFile: pflag.StringP(
			"cfg-file",
			"c",
			defConfigFile,
			"path to the mergekeeper configuration file",
		),
		EnvFile: pflag.String(
			"env-file",
			defEnvFile,
			"path to a file containing environment variables, it is ignored if it does not exist",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
	}

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]... COMMAND\n", appName)
		fmt.Fprintf(os.Stderr, "Merge inactive branches and stale pull requests on GitHub.\n")
		fmt.Fprintf(os.Stderr, "\nCommands:\n")
		fmt.Fprintf(os.Stderr, "  %-14s merge inactive default branches into main\n", cmdBranchMerge)
		fmt.Fprintf(os.Stderr, "  %-14s evaluate the pull requests of all watched issues\n", cmdPRSweep)
		fmt.Fprintf(os.Stderr, "  %-14s receive GitHub webhook events and evaluate pull requests\n", cmdServe)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *args.ShowVersion {
		return
	}

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}

	args.Command = pflag.Arg(0)

	if !isCommand(args.Command) {
		fmt.Fprintf(os.Stderr, "ERROR: unknown command %q\n", args.Command)
		pflag.Usage()
		os.Exit(2)
	}
}

func isCommand(name string) bool {
	switch name {
	case cmdBranchMerge, cmdPRSweep, cmdServe:
		return true
	default:
		return false
	}
}

func mustLoadEnvFile() {
	err := godotenv.Load(*args.EnvFile)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return
	}

	exitOnErr(fmt.Sprintf("could not load environment file: %s", *args.EnvFile), err)
}

// loadCfg reads the configuration file at path and applies the environment
// variables to it.
// If the file does not exist and required is false, the configuration is
// created from the defaults and the environment only.
func loadCfg(path string, required bool, lookupEnv func(string) (string, bool)) (*cfg.Config, error) {
	var reader io.Reader

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		reader = file

	case !required && errors.Is(err, os.ErrNotExist):
		reader = strings.NewReader("")

	default:
		return nil, fmt.Errorf("could not open configuration file: %w", err)
	}

	config, err := cfg.Load(reader)
	if err != nil {
		return nil, fmt.Errorf("could not load configuration file %s: %w", path, err)
	}

	if err := config.ApplyEnv(lookupEnv); err != nil {
		return nil, fmt.Errorf("could not apply environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	// the default file is optional, all settings can be passed via
	// environment variables
	required := pflag.CommandLine.Changed("cfg-file")

	config, err := loadCfg(*args.ConfigFile, required, os.LookupEnv)
	exitOnErr("loading configuration failed", err)

	return config
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.LevelKey = "loglevel"
	encCfg.TimeKey = config.LogTimeKey
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	return encCfg
}

func newLogger(config *cfg.Config, level zapcore.Level) (*zap.Logger, error) {
	encCfg := zapEncoderConfig(config)

	switch config.LogFormat {
	case "logfmt":
		return zap.New(zapcore.NewCore(zaplogfmt.NewEncoder(encCfg), os.Stdout, level)), nil

	case "console", "json":
		zapCfg := zap.NewProductionConfig()
		zapCfg.Sampling = nil
		zapCfg.EncoderConfig = encCfg
		zapCfg.OutputPaths = []string{"stdout"}
		zapCfg.Encoding = config.LogFormat
		zapCfg.Level = zap.NewAtomicLevelAt(level)

		return zapCfg.Build()

	default:
		return nil, fmt.Errorf("unsupported log_format: %q", config.LogFormat)
	}
}

// mustInitLogger replaces the global zap logger, the log level is debug if
// --verbose was passed.
func mustInitLogger(config *cfg.Config) {
	level := zapcore.DebugLevel
	if !*args.Verbose {
		err := level.Set(config.LogLevel)
		exitOnErr(fmt.Sprintf("invalid log_level %q", config.LogLevel), err)
	}

	l, err := newLogger(config, level)
	exitOnErr("could not initialize logger", err)

	zap.ReplaceGlobals(l)
	logger = l.Named("main")

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

func logCfg(config *cfg.Config) {
	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("command", args.Command),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("github_webhook_endpoint", config.HTTPGithubWebhookEndpoint),
		zap.String("github_webhook_secret", hide(config.GithubWebHookSecret)),
		zap.String("github_api_token", hide(config.GithubAPIToken)),
		zap.Int64("github_app_id", config.GithubAppID),
		zap.String("github_app_private_key", hide(config.GithubAppPrivateKey)),
		zap.String("redis_addr", config.Redis.Addr),
		zap.String("redis_namespace", config.Redis.Namespace),
		zap.Int("rate_limit_max_per_window", config.RateLimit.MaxPerWindow),
		zap.String("rate_limit_window", config.RateLimit.Window),
		zap.String("organizations", strings.Join(config.BranchMerge.Organizations, ",")),
		zap.Int("inactivity_days", config.BranchMerge.InactivityDays),
		zap.String("control_repository", config.PullRequestMerge.ControlRepository),
		zap.String("step_summary_file", config.StepSummaryFile),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
	)
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	mustLoadEnvFile()
	config := mustParseCfg()
	mustInitLogger(config)
	logCfg(config)

	ctx, cancelFn := context.WithCancel(context.Background())
	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
		cancelFn()
	})

	var exitCode int

	switch args.Command {
	case cmdBranchMerge:
		exitCode = runBranchMerge(ctx, config)
	case cmdPRSweep:
		exitCode = runPRSweep(ctx, config)
	case cmdServe:
		runServe(config)
	}

	goodbye.Exit(context.Background(), exitCode)
}
