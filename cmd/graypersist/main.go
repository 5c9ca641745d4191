// Gray Logic Persist - transactional persistence service
//
// This is the main entry point. At startup it opens the database, makes sure
// the schema version registry exists, compares every managed table's
// persisted version with the version the code declares, and reports each
// discrepancy to the log and, when enabled, to MQTT. It then serves the
// admin API until it receives a shutdown signal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-persist/internal/api"
	"github.com/nerrad567/gray-logic-persist/internal/audit"
	"github.com/nerrad567/gray-logic-persist/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-persist/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-persist/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-persist/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-persist/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-persist/internal/persistence"
	"github.com/nerrad567/gray-logic-persist/internal/schema"
	"github.com/nerrad567/gray-logic-persist/migrations"
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

// statsInterval is how often runner statistics are published.
const statsInterval = 30 * time.Second

// errSchemaProblems is returned when strict mode finds schema problems.
var errSchemaProblems = errors.New("schema problems found in strict mode")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Persist",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	db, err := database.Open(databaseConfig(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "driver", db.Driver())

	// Optional sinks first so the runner can observe from the first run.
	var influxSink *influxdb.Sink
	if cfg.InfluxDB.Enabled {
		influxSink, err = influxdb.Open(cfg.InfluxDB, log.Component("influxdb"))
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxSink.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	pool := persistence.NewPool(newOpener(cfg, db), log.Component("pool"))
	defer func() {
		if shutdownErr := pool.Shutdown(); shutdownErr != nil {
			log.Error("connections were still leased at shutdown", "error", shutdownErr)
		}
	}()

	opts := runnerOptions(cfg.Persistence.Retry, log.Component("runner"))
	if influxSink != nil {
		opts.Observer = influxSink
	}
	runner := persistence.NewRunner(pool, opts)

	plan, err := migrations.Plan()
	if err != nil {
		return fmt.Errorf("loading migration plan: %w", err)
	}
	registry := schema.NewRegistry(runner, db.Driver(), plan, log.Component("schema"))
	descriptors := plan.Descriptors()

	reporters := []schema.Reporter{schema.LogReporter{Logger: log.Component("schema")}}
	if mqttClient != nil && cfg.Schema.PublishReports {
		reporters = append(reporters, schema.PublishReporter{
			Publisher: mqttClient,
			Topic:     mqtt.Topics{}.SchemaStatus,
			Logger:    log,
		})
	}

	if err := bootstrapSchema(ctx, cfg.Schema, registry, descriptors, schema.Reporters(reporters...), log); err != nil {
		return err
	}

	if err := healthCheck(ctx, db, mqttClient, influxSink); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	if cfg.API.Enabled {
		server, err := api.New(api.Deps{
			Config:      cfg.API,
			Security:    cfg.Security,
			Logger:      log.Component("api"),
			Runner:      runner,
			Registry:    registry,
			Descriptors: descriptors,
			Audit:       audit.NewStore(runner, db.Driver()),
			DB:          db,
			Version:     version,
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
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	publishStatsUntilDone(ctx, runner, mqttClient, influxSink, statsInterval)

	log.Info("shutdown signal received, cleaning up")
	log.Info("Gray Logic Persist stopped", "runs", runner.Stats().Runs)
	return nil
}

// getConfigPath returns the configuration file path.
// GRAYPERSIST_CONFIG overrides the default.
func getConfigPath() string {
	if path := os.Getenv("GRAYPERSIST_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func databaseConfig(c config.DatabaseConfig) database.Config {
	return database.Config{
		Driver:          c.Driver,
		Path:            c.Path,
		DSN:             c.DSN,
		WALMode:         c.WALMode,
		BusyTimeout:     c.BusyTimeout,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

// newOpener selects how the pool obtains physical connections: leased from
// the managed database/sql pool, or dialled per lease.
func newOpener(cfg *config.Config, db *database.DB) persistence.Opener {
	if cfg.Persistence.Opener == config.OpenerDirect {
		return persistence.NewDirectOpener(db.Driver(), db.DSN())
	}
	return persistence.DBOpener{DB: db.DB}
}

func runnerOptions(retry config.RetryConfig, log persistence.Logger) persistence.Options {
	return persistence.Options{
		MaxAttempts: retry.MaxAttempts,
		Backoff:     retry.Backoff(),
		MaxBackoff:  retry.MaxBackoff(),
		Logger:      log,
	}
}

// bootstrapSchema ensures the registry exists, checks every declared table
// and optionally migrates. The registry itself never decides fatality; strict
// mode is applied here.
func bootstrapSchema(ctx context.Context, cfg config.SchemaConfig, registry *schema.Registry,
	descriptors []schema.Descriptor, reporter schema.Reporter, log *logging.Logger) error {
	created, err := registry.EnsureRegistryTable(ctx, descriptors)
	if err != nil {
		return fmt.Errorf("ensuring schema registry: %w", err)
	}
	if created {
		log.Warn("schema registry was just created; existing tables have no tracked history",
			"tables", len(descriptors))
	}

	collector := &schema.Collector{}
	registry.CheckAll(ctx, descriptors, schema.Reporters(collector, reporter))

	if cfg.AutoMigrate && len(collector.Problems()) > 0 {
		if err := registry.MigrateAll(ctx, descriptors); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
		log.Info("pending migrations applied")

		collector = &schema.Collector{}
		registry.CheckAll(ctx, descriptors, schema.Reporters(collector, reporter))
	}

	problems := collector.Problems()
	if len(problems) == 0 {
		log.Info("schema versions in sync", "tables", len(descriptors))
		return nil
	}
	if cfg.Strict {
		return fmt.Errorf("%w: %d problem(s)", errSchemaProblems, len(problems))
	}
	log.Warn("continuing with schema problems", "problems", len(problems))
	return nil
}

func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxSink *influxdb.Sink) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxSink != nil {
		if err := influxSink.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// publishStatsUntilDone publishes runner statistics to the enabled sinks
// every interval until ctx is done.
func publishStatsUntilDone(ctx context.Context, runner *persistence.Runner, mqttClient *mqtt.Client,
	influxSink *influxdb.Sink, interval time.Duration) {
	if mqttClient == nil && influxSink == nil {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, poolStats := runner.Stats(), runner.Pool().Stats()
			if mqttClient != nil {
				//nolint:errcheck // Best-effort; the broker may be reconnecting
				mqttClient.PublishJSON(mqtt.Topics{}.SystemStats(), map[string]any{
					"runner": stats,
					"pool":   poolStats,
				})
			}
			if influxSink != nil {
				influxSink.WriteRunnerStats(stats, poolStats)
			}
		}
	}
}
