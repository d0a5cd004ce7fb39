// Taskdesk - multi-user task manager.
//
// This is the main entry point for the Taskdesk server. It serves the REST
// and WebSocket API, and also carries an out-of-band admin command:
//
//	taskdesk [--config path]                  run the server
//	taskdesk [--config path] promote <email>  grant the admin role
//	taskdesk --version                        print build information
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	_ "github.com/nerrad567/taskdesk/migrations"

	"github.com/nerrad567/taskdesk/internal/api"
	"github.com/nerrad567/taskdesk/internal/audit"
	"github.com/nerrad567/taskdesk/internal/auth"
	"github.com/nerrad567/taskdesk/internal/infrastructure/config"
	"github.com/nerrad567/taskdesk/internal/infrastructure/database"
	"github.com/nerrad567/taskdesk/internal/infrastructure/influxdb"
	"github.com/nerrad567/taskdesk/internal/infrastructure/logging"
	"github.com/nerrad567/taskdesk/internal/infrastructure/mqtt"
	"github.com/nerrad567/taskdesk/internal/task"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// errUsage marks command-line mistakes so main can exit with status 2.
var errUsage = errors.New("usage error")

func main() {
	// Cancel on Ctrl+C and SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	configPath  string
	showVersion bool
	command     string
	args        []string
}

// parseArgs parses flags and the optional subcommand.
func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options

	flagSet := pflag.NewFlagSet("taskdesk", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file (default: $TASKDESK_CONFIG or "+defaultConfigPath+")")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return options{}, err
		}
		return options{}, fmt.Errorf("%w: %w", errUsage, err)
	}

	rest := flagSet.Args()
	if len(rest) > 0 {
		opts.command = rest[0]
		opts.args = rest[1:]
	}

	switch opts.command {
	case "", "serve":
		if len(opts.args) > 0 {
			return options{}, fmt.Errorf("%w: unexpected argument %q", errUsage, opts.args[0])
		}
	case "promote":
		if len(opts.args) != 1 {
			return options{}, fmt.Errorf("%w: promote takes exactly one email address", errUsage)
		}
	default:
		return options{}, fmt.Errorf("%w: unknown command %q", errUsage, opts.command)
	}

	return opts, nil
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseArgs(args, os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if opts.showVersion {
		fmt.Fprintf(stdout, "taskdesk %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	cfg, configPath, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	for _, w := range cfg.Warnings() {
		log.Warn("configuration warning", "warning", w)
	}

	if opts.command == "promote" {
		return promote(ctx, cfg, opts.args[0], stdout)
	}

	log.Info("starting Taskdesk",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPath,
	)
	return serve(ctx, cfg, log)
}

// getConfigPath returns the configuration file path.
// Uses TASKDESK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TASKDESK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig loads the file named by flag, env or default. Only a missing
// default file falls back to built-in settings; an explicitly named file
// must exist.
func loadConfig(flagPath string) (*config.Config, string, error) {
	path := flagPath
	if path == "" {
		path = getConfigPath()
	}

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}

	explicit := flagPath != "" || os.Getenv("TASKDESK_CONFIG") != ""
	if !explicit && errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Default()
		if err != nil {
			return nil, "", err
		}
		return cfg, "(built-in defaults)", nil
	}
	return nil, "", err
}

// openDatabase opens and migrates the store.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // migration error takes precedence
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// promote grants the admin role to an existing account.
func promote(ctx context.Context, cfg *config.Config, email string, stdout io.Writer) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // short-lived CLI connection

	users := auth.NewUserRepository(db.DB)
	user, err := auth.Promote(ctx, users, email)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return fmt.Errorf("no account with email %q", auth.NormalizeEmail(email))
		}
		return fmt.Errorf("promoting %s: %w", email, err)
	}

	recorder := audit.NewRecorder(audit.NewSQLiteRepository(db.DB), "cli", logging.Discard().Logger)
	recCtx, stop := context.WithCancel(ctx)
	recorder.Start(recCtx)
	recorder.Record(audit.ActionRoleChange, audit.EntityUser, user.ID, "", map[string]any{
		"to": auth.RoleAdmin,
	})
	stop()
	recorder.Wait()

	fmt.Fprintf(stdout, "%s is now an admin\n", user.Email)
	return nil
}

// serve runs the API server until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", cfg.Database.Path)

	users := auth.NewUserRepository(db.DB)
	tasks := task.NewSQLiteRepository(db.DB)

	hasher := auth.NewHasher(auth.HasherParams{
		Time:      cfg.Security.Password.Time,
		MemoryKiB: cfg.Security.Password.MemoryKiB,
		Threads:   cfg.Security.Password.Threads,
	})
	tokens, err := auth.NewTokenIssuer(cfg.Security.JWT.Secret, cfg.Security.JWT.TokenTTL())
	if err != nil {
		return fmt.Errorf("creating token issuer: %w", err)
	}
	authService, err := auth.NewService(users, hasher, tokens)
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}

	if _, err := auth.SeedAdmin(ctx, users, hasher, cfg.Admin.Email, cfg.Admin.Name, log.Logger); err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}

	mqttClient, err := connectMQTT(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if mqttClient != nil {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}
	}()

	influxClient, err := connectInfluxDB(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if influxClient != nil {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}
	}()

	// The recorder outlives the HTTP server so entries from draining
	// requests still land.
	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo, "api", log.With("component", "audit").Logger)
	recCtx, stopRecorder := context.WithCancel(context.Background())
	recorder.Start(recCtx)
	defer func() {
		stopRecorder()
		recorder.Wait()
	}()

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log.With("component", "api"),
		DB:       db,
		Users:    users,
		Tasks:    tasks,
		Auth:     authService,
		Resolver: auth.NewResolver(tokens, users),
		Audit:    auditRepo,
		Recorder: recorder,
		MQTT:     mqttClient,
		Influx:   influxClient,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// connectMQTT connects the optional event bus. A nil client means disabled.
func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT disabled")
		return nil, nil
	}

	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.With("component", "mqtt"))
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client, nil
}

// connectInfluxDB connects the optional telemetry sink. A nil client means
// disabled.
func connectInfluxDB(cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(cfg.InfluxDB)
	if err != nil {
		if errors.Is(err, influxdb.ErrDisabled) {
			log.Info("InfluxDB disabled")
			return nil, nil
		}
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
