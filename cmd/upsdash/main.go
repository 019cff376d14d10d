// upsdash - web dashboard backend for NUT managed UPS devices.
//
// The service polls upsd, caches device state and instant commands, and
// exposes them over a REST and WebSocket API. Privileged actions (instant
// commands, variable writes, forced shutdown) are relayed to upsd with the
// configured credentials and recorded in an SQLite audit trail.
//
// Usage:
//
//	upsdash                                  run the service
//	upsdash token -subject ops -role admin   mint an API bearer token
//	upsdash migrate status|down              inspect or roll back the audit schema
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/upsdash-core/internal/api"
	"github.com/nerrad567/upsdash-core/internal/audit"
	"github.com/nerrad567/upsdash-core/internal/auth"
	"github.com/nerrad567/upsdash-core/internal/infrastructure/config"
	"github.com/nerrad567/upsdash-core/internal/infrastructure/database"
	"github.com/nerrad567/upsdash-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/upsdash-core/internal/infrastructure/logging"
	"github.com/nerrad567/upsdash-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/upsdash-core/internal/nut"
	"github.com/nerrad567/upsdash-core/internal/ups"
	"github.com/nerrad567/upsdash-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// auditQueueSize bounds the actions waiting to be written to SQLite.
const auditQueueSize = 256

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch {
	case len(os.Args) > 1 && os.Args[1] == "token":
		err = runToken(os.Args[2:], os.Stdout)
	case len(os.Args) > 1 && os.Args[1] == "migrate":
		err = runMigrate(ctx, os.Args[2:], os.Stdout)
	default:
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting upsdash",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Audit trail
	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	journalMode, err := db.JournalMode(ctx)
	if err != nil {
		return err
	}
	log.Info("database connected", "path", db.Path(), "journal_mode", journalMode)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo, auditQueueSize)
	recorder.SetLogger(log.Component("audit"))

	// upsd
	creds := ups.Credentials{Username: cfg.Upsd.Username, Password: cfg.Upsd.Password}
	nutOpts := nut.Options{Timeout: cfg.Upsd.GetRequestTimeout()}
	if !creds.Configured() {
		log.Warn("upsd credentials not configured, running read-only")
	}

	store := ups.NewStore(cfg.Upsd.GetCommandsTTL())
	sessions := ups.NUTSessions(cfg.Upsd.Addr(), nutOpts)

	commands := ups.NewCommandCache(store, sessions, creds)
	commands.SetLogger(log.Component("commands"))

	dispatcher := ups.NewDispatcher(store, commands, sessions, creds)
	dispatcher.SetLogger(log.Component("dispatch"))
	dispatcher.AddObserver(recorder)

	poller := ups.NewPoller(store, ups.NUTReadSessions(cfg.Upsd.Addr(), nutOpts, creds), cfg.Upsd.GetPollInterval())
	poller.SetLogger(log.Component("poller"))

	checks := []namedCheck{{"database", db}}

	deps := api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Security:      cfg.Security,
		Upsd:          cfg.Upsd,
		Logger:        log,
		Store:         store,
		Commands:      commands,
		Dispatcher:    dispatcher,
		Audit:         auditRepo,
		AuditRecorder: recorder,
		DB:            db.DB,
		Version:       version,
	}

	// MQTT (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		publisher := mqtt.NewPublisher(mqttClient)
		publisher.SetLogger(log.Component("mqtt"))
		poller.AddObserver(publisher)
		dispatcher.AddObserver(publisher)
		deps.MQTT = mqttClient
		checks = append(checks, namedCheck{"mqtt", mqttClient})
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		poller.AddObserver(influxClient)
		deps.InfluxDB = influxClient
		checks = append(checks, namedCheck{"influxdb", influxClient})
	} else {
		log.Info("InfluxDB disabled")
	}

	srv, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	poller.AddObserver(srv.Hub())
	dispatcher.AddObserver(srv.Hub())

	// The recorder outlives the API server so actions accepted during
	// shutdown are still written.
	recCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
	defer stopRecorder()
	recDone := make(chan struct{})
	go func() {
		defer close(recDone)
		_ = recorder.Run(recCtx)
	}()

	if startErr := srv.Start(ctx); startErr != nil {
		stopRecorder()
		<-recDone
		return fmt.Errorf("starting API server: %w", startErr)
	}
	log.Info("API server started", "address", srv.Addr().String())

	checks = append(checks, namedCheck{"api", srv})
	if err := healthCheck(ctx, checks); err != nil {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
		stopRecorder()
		<-recDone
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poller.Run(gctx)
	})

	log.Info("initialisation complete, waiting for shutdown signal")
	<-gctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if closeErr := srv.Close(); closeErr != nil {
		log.Error("error closing API server", "error", closeErr)
	}
	runErr := g.Wait()

	stopRecorder()
	<-recDone
	if dropped := recorder.Dropped(); dropped > 0 {
		log.Warn("audit entries dropped", "count", dropped)
	}

	log.Info("upsdash stopped")
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// healthChecker is implemented by the database, the telemetry sinks and
// the API server.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

type namedCheck struct {
	name  string
	check healthChecker
}

// healthCheck runs every check in order and reports the first failure.
func healthCheck(ctx context.Context, checks []namedCheck) error {
	for _, c := range checks {
		if err := c.check.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

// runMigrate reports or rolls back audit schema migrations without
// starting the service.
func runMigrate(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 1 || (args[0] != "status" && args[0] != "down") {
		return errors.New("usage: upsdash migrate status|down")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-mostly command

	if args[0] == "down" {
		if err := db.MigrateDown(ctx, migrations.FS); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
	}

	applied, pending, err := db.GetMigrationStatus(ctx, migrations.FS)
	if err != nil {
		return err
	}
	for _, r := range applied {
		fmt.Fprintf(out, "applied  %s  %s\n", r.Version, r.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}

// runToken mints a bearer token signed with the configured JWT secret.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	subject := fs.String("subject", "", "token subject recorded in the audit trail")
	role := fs.String("role", string(auth.RoleOperator), "role granted: operator or admin")
	ttl := fs.Duration("ttl", 0, "token lifetime (default security.jwt.access_token_ttl minutes)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return errors.New("-subject is required")
	}

	r, err := auth.ParseRole(*role)
	if err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		return errors.New("security.jwt.secret is not configured")
	}

	lifetime := *ttl
	if lifetime == 0 {
		lifetime = time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
	}

	token, err := auth.GenerateToken(*subject, r, cfg.Security.JWT.Secret, lifetime)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}

// getConfigPath returns the configuration file path.
// Uses UPSDASH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("UPSDASH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
