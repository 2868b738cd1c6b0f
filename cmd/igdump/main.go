// Command igdump dumps the accounts an Instagram user follows, with every
// account's profile, into a SQLite/Postgres table or a JSON array on stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/igdump/pkg/cache"
	"github.com/Sternrassler/igdump/pkg/client"
	"github.com/Sternrassler/igdump/pkg/dump"
	"github.com/Sternrassler/igdump/pkg/endpoint"
	"github.com/Sternrassler/igdump/pkg/enrich"
	"github.com/Sternrassler/igdump/pkg/logging"
	"github.com/Sternrassler/igdump/pkg/metrics"
	"github.com/Sternrassler/igdump/pkg/pagination"
	"github.com/Sternrassler/igdump/pkg/sink"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	commandUse              = "igdump"
	commandShortDescription = "Dump the accounts an Instagram user follows"
	envPrefix               = "IGDUMP"
	dotEnvFile              = ".env"

	flagSessionID      = "session-id"
	flagUserID         = "user-id"
	flagUserName       = "user-name"
	flagThreads        = "threads"
	flagLogLevel       = "log-level"
	flagLogPretty      = "log-pretty"
	flagSerial         = "serial"
	flagOutput         = "output"
	flagDBDriver       = "db-driver"
	flagDBDSN          = "db-dsn"
	flagTable          = "table"
	flagVerify         = "verify"
	flagRequestTimeout = "request-timeout"
	flagDedup          = "dedup"
	flagRedisAddr      = "redis-addr"
	flagCacheTTL       = "cache-ttl"
	flagMetricsFile    = "metrics-file"
	flagBaseURL        = "base-url"

	defaultCacheTTL = 6 * time.Hour
)

// Variables named without the IGDUMP_ prefix.
var explicitEnv = map[string]string{
	flagSessionID: "IG_SESSION_ID",
	flagUserID:    "IG_USER_ID",
	flagUserName:  "IG_USER_NAME",
}

func main() {
	if err := loadDotEnv(dotEnvFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandUse, err)
		stop()
		os.Exit(1)
	}
}

// loadDotEnv loads path into the environment if it exists. Variables already
// set win.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// options is the validated command configuration.
type options struct {
	Credential     endpoint.Credential
	UserName       string
	Threads        int
	Serial         bool
	Output         sink.Kind
	DBDriver       string
	DBDSN          string
	Table          string
	Verify         bool
	RequestTimeout time.Duration
	Dedup          bool
	RedisAddr      string
	CacheTTL       time.Duration
	MetricsFile    string
	LogLevel       string
	LogPretty      bool
	BaseURL        string
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	command := &cobra.Command{
		Use:           commandUse,
		Short:         commandShortDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := loadOptions(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := command.Flags()
	flags.StringP(flagSessionID, "s", "", "Instagram sessionid cookie (env IG_SESSION_ID)")
	flags.Int64P(flagUserID, "i", 0, "Instagram ds_user_id of the session owner (env IG_USER_ID)")
	flags.StringP(flagUserName, "n", "", "Username whose following list is dumped (env IG_USER_NAME)")
	flags.IntP(flagThreads, "t", runtime.NumCPU(), "Maximum concurrent requests, 0 for one per item (env IGDUMP_NUM_THREADS)")
	flags.StringP(flagLogLevel, "l", string(logging.LevelInfo), "Log level: debug, info, warn, error")
	flags.Bool(flagLogPretty, false, "Human-readable console logs instead of JSON")
	flags.Bool(flagSerial, false, "Issue every request one at a time")
	flags.String(flagOutput, string(sink.KindTable), "Output: table or stream")
	flags.String(flagDBDriver, sink.DriverSQLite, "Table driver: sqlite3 or postgres")
	flags.String(flagDBDSN, sink.DefaultDSN, "Table data source (sqlite file path or postgres DSN)")
	flags.String(flagTable, sink.DefaultTable, "Table name")
	flags.Bool(flagVerify, false, "Read the table back after writing and compare row counts")
	flags.Duration(flagRequestTimeout, 0, "Per-request timeout, 0 disables")
	flags.Bool(flagDedup, false, "Drop repeated accounts before profile lookups")
	flags.String(flagRedisAddr, "", "Redis address for the profile cache, empty disables")
	flags.Duration(flagCacheTTL, defaultCacheTTL, "Profile cache entry lifetime")
	flags.String(flagMetricsFile, "", "Write Prometheus metrics to this textfile at exit")
	flags.String(flagBaseURL, "", "Override the API scheme and host")
	_ = flags.MarkHidden(flagBaseURL)

	bindFlags(command, v)

	return command
}

// bindFlags makes every flag readable through v with an environment fallback:
// IGDUMP_<FLAG_NAME> unless the flag has a documented name of its own.
func bindFlags(command *cobra.Command, v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, name := range []string{
		flagSessionID, flagUserID, flagUserName, flagThreads, flagLogLevel,
		flagLogPretty, flagSerial, flagOutput, flagDBDriver, flagDBDSN,
		flagTable, flagVerify, flagRequestTimeout, flagDedup, flagRedisAddr,
		flagCacheTTL, flagMetricsFile, flagBaseURL,
	} {
		cobra.CheckErr(v.BindPFlag(name, command.Flags().Lookup(name)))
		if env, ok := explicitEnv[name]; ok {
			cobra.CheckErr(v.BindEnv(name, env))
		}
	}
	cobra.CheckErr(v.BindEnv(flagThreads, envPrefix+"_NUM_THREADS"))
}

// loadOptions reads and validates the configuration. It runs before any
// network access.
func loadOptions(v *viper.Viper) (options, error) {
	opts := options{
		UserName:    strings.TrimSpace(v.GetString(flagUserName)),
		Serial:      v.GetBool(flagSerial),
		DBDriver:    v.GetString(flagDBDriver),
		DBDSN:       v.GetString(flagDBDSN),
		Table:       v.GetString(flagTable),
		Verify:      v.GetBool(flagVerify),
		Dedup:       v.GetBool(flagDedup),
		RedisAddr:   v.GetString(flagRedisAddr),
		MetricsFile: v.GetString(flagMetricsFile),
		LogLevel:    v.GetString(flagLogLevel),
		LogPretty:   v.GetBool(flagLogPretty),
		BaseURL:     v.GetString(flagBaseURL),
	}

	opts.Credential.SessionID = strings.TrimSpace(v.GetString(flagSessionID))
	if opts.Credential.SessionID == "" {
		return options{}, fmt.Errorf("session id is required (--%s or IG_SESSION_ID)", flagSessionID)
	}

	rawUserID := strings.TrimSpace(v.GetString(flagUserID))
	if rawUserID == "" || rawUserID == "0" {
		return options{}, fmt.Errorf("user id is required (--%s or IG_USER_ID)", flagUserID)
	}
	userID, err := strconv.ParseInt(rawUserID, 10, 64)
	if err != nil || userID <= 0 {
		return options{}, fmt.Errorf("user id must be a positive integer (got %q)", rawUserID)
	}
	opts.Credential.UserID = userID

	if opts.UserName == "" {
		return options{}, fmt.Errorf("user name is required (--%s or IG_USER_NAME)", flagUserName)
	}

	rawThreads := strings.TrimSpace(v.GetString(flagThreads))
	threads, err := strconv.Atoi(rawThreads)
	if err != nil || threads < 0 {
		return options{}, fmt.Errorf("threads must be a non-negative integer (got %q)", rawThreads)
	}
	opts.Threads = threads

	if opts.Output, err = sink.ParseKind(v.GetString(flagOutput)); err != nil {
		return options{}, err
	}

	if err := logging.ValidateLevel(opts.LogLevel); err != nil {
		return options{}, err
	}

	if opts.RequestTimeout, err = parseDuration(v, flagRequestTimeout); err != nil {
		return options{}, err
	}
	if opts.CacheTTL, err = parseDuration(v, flagCacheTTL); err != nil {
		return options{}, err
	}

	return opts, nil
}

func parseDuration(v *viper.Viper, name string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(name))
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration (got %q)", name, raw)
	}
	return d, nil
}

// run performs one dump with validated options. Results go to stdout for the
// stream sink; logs go to stderr.
func run(ctx context.Context, opts options, stdout, stderr io.Writer) (err error) {
	logger, _ := logging.Setup(logging.Config{
		Level:  logging.LogLevel(opts.LogLevel),
		Pretty: opts.LogPretty,
		Output: stderr,
	})

	if opts.MetricsFile != "" {
		defer func() {
			if werr := metrics.WriteTextfile(opts.MetricsFile); werr != nil {
				logger.Warn().Err(werr).Str("path", opts.MetricsFile).Msg("Failed to write metrics")
			}
		}()
	}

	mode := pagination.ModeParallel
	if opts.Serial {
		mode = pagination.ModeSerial
	}

	logger.Info().
		Str("subject", opts.UserName).
		Str("credential", opts.Credential.String()).
		Str("mode", string(mode)).
		Int("threads", opts.Threads).
		Str("output", string(opts.Output)).
		Msg("Starting dump")

	cfg := client.DefaultConfig(opts.Credential)
	cfg.BaseURL = opts.BaseURL
	cfg.RequestTimeout = opts.RequestTimeout
	igClient, err := client.New(cfg)
	if err != nil {
		return fail(logger, fmt.Errorf("create client: %w", err))
	}

	var profiles enrich.ProfileGetter = igClient
	if opts.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fail(logger, fmt.Errorf("connect to redis at %s: %w", opts.RedisAddr, err))
		}
		manager := cache.NewManager(rdb, opts.CacheTTL)
		profiles = cache.NewProfileGetter(igClient, manager)
		logger.Info().Str("addr", opts.RedisAddr).Dur("ttl", manager.TTL()).Msg("Profile cache enabled")
	}

	out, verify, closeSink, err := openSink(opts, stdout)
	if err != nil {
		return fail(logger, err)
	}
	defer closeSink()

	dumper, err := dump.New(igClient, profiles, out, dump.Config{
		Username:    opts.UserName,
		Mode:        mode,
		Concurrency: opts.Threads,
		PageSize:    pagination.DefaultPageSize,
		Dedup:       opts.Dedup,
	})
	if err != nil {
		return fail(logger, err)
	}

	report, err := dumper.Run(ctx)
	if err != nil {
		return fail(logger, err)
	}

	if opts.Verify && verify != nil {
		if err := verify(ctx, report.Written); err != nil {
			return fail(logger, err)
		}
	}

	logger.Info().
		Int64("subject_id", report.Subject.ID).
		Int("written", report.Written).
		Dur("duration", report.Duration).
		Msg("Done")
	return nil
}

// openSink builds the configured sink. verify is nil for the stream sink. The
// table sink connects only when the dump has profiles to write.
func openSink(opts options, stdout io.Writer) (sink.Sink, func(context.Context, int) error, func(), error) {
	if opts.Output == sink.KindStream {
		return sink.NewStreamSink(stdout), nil, func() {}, nil
	}

	table, err := sink.NewLazyTableSink(opts.DBDriver, opts.DBDSN, opts.Table)
	if err != nil {
		return nil, nil, nil, err
	}

	verify := func(ctx context.Context, want int) error {
		rows, err := sink.ReadTable(ctx, table.DB(), table.Table())
		if err != nil {
			return err
		}
		if len(rows) != want {
			return &sink.StorageError{Op: "verify", Err: fmt.Errorf("table has %d rows, wrote %d", len(rows), want)}
		}
		return nil
	}

	return table, verify, func() { table.Close() }, nil
}

func fail(logger zerolog.Logger, err error) error {
	event := logger.Error().Err(err)
	if class := client.Classify(err); class != "" {
		event = event.Str("error_class", string(class))
	}
	event.Msg("Dump failed")
	return err
}
