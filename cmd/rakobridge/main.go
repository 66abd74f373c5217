// Rako Bridge Daemon
//
// This is the main entry point for the Rako bridge daemon. It connects
// a Rako lighting bridge to the Gray Logic platform over MQTT:
//   - Discovers lights and scenes from the bridge's room/channel setup
//   - Publishes entity state and accepts commands on platform topics
//   - Persists entity snapshots in SQLite across restarts
//   - Reports bridge health periodically
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-rako/migrations"

	"github.com/nerrad567/gray-logic-rako/internal/entity"
	"github.com/nerrad567/gray-logic-rako/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-rako/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-rako/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-rako/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-rako/internal/infrastructure/telemetry"
	"github.com/nerrad567/gray-logic-rako/internal/rako"
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

// discoveryHTTPTimeout bounds each request against the bridge's web
// server during discovery.
const discoveryHTTPTimeout = 10 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Rako bridge daemon",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Entity snapshot store
	store := entity.NewSQLiteStore(db.DB)

	// Resolve the bridge: configured address, or located on the LAN
	clientCfg, err := resolveBridge(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("resolving bridge: %w", err)
	}

	rakoClient, err := rako.NewBridgeClient(clientCfg)
	if err != nil {
		return fmt.Errorf("creating bridge client: %w", err)
	}
	log.Info("bridge client ready",
		"host", clientCfg.Host,
		"mac", clientCfg.MAC,
		"name", clientCfg.Name,
	)

	// Connect to MQTT broker. The last will flips the retained health
	// topic to offline if the daemon exits uncleanly.
	lwtTopic, lwtPayload, err := entity.HealthLWT(clientCfg.MAC)
	if err != nil {
		return fmt.Errorf("building health LWT: %w", err)
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT, mqtt.WithWill(lwtTopic, lwtPayload))
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
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

	// Set up MQTT logging callbacks
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *telemetry.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = telemetry.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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

		// Set up InfluxDB error callback
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Build entity adapters from the bridge's cache and room setup
	bridgeOpts := entity.BridgeOptions{
		Client:    rakoClient,
		MAC:       clientCfg.MAC,
		Name:      clientCfg.Name,
		Publisher: mqttClient,
		Logger:    log,
	}
	if influxClient != nil {
		bridgeOpts.Telemetry = influxClient
	}
	bridge, err := entity.NewBridge(bridgeOpts)
	if err != nil {
		return fmt.Errorf("creating entity bridge: %w", err)
	}

	session := &http.Client{Timeout: discoveryHTTPTimeout}
	discoveryStart := time.Now()
	lights, err := entity.SetupLights(ctx, bridge, session)
	if err != nil {
		return fmt.Errorf("setting up lights: %w", err)
	}
	scenes, err := entity.SetupScenes(ctx, bridge, session)
	if err != nil {
		return fmt.Errorf("setting up scenes: %w", err)
	}
	log.Info("entity setup complete",
		"lights", len(lights),
		"scenes", len(scenes),
	)
	if influxClient != nil {
		influxClient.DiscoveryPass(clientCfg.MAC, len(lights), len(scenes), time.Since(discoveryStart))
	}

	// Dispatch platform commands to the entities
	dispatcher, err := entity.NewDispatcher(bridge, &mqttEntityAdapter{client: mqttClient}, store)
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	if err := dispatcher.Register(ctx, lights, scenes); err != nil {
		return fmt.Errorf("registering entities: %w", err)
	}
	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("starting dispatcher: %w", err)
	}
	defer func() {
		log.Info("stopping dispatcher")
		dispatcher.Stop()
	}()
	log.Info("dispatcher started", "entities", dispatcher.EntityCount())

	// Periodic bridge health reporting
	reporter := entity.NewHealthReporter(entity.HealthReporterConfig{
		BridgeMAC: clientCfg.MAC,
		Version:   version,
		Publisher: mqttClient,
		Stats:     rakoClient,
		Logger:    log,
	})
	reporter.SetEntityCount(dispatcher.EntityCount())
	if err := reporter.PublishStarting(); err != nil {
		log.Warn("failed to publish starting status", "error", err)
	}
	reporter.Start(ctx)
	defer func() {
		log.Info("stopping health reporter")
		reporter.Stop()
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. Health reporter
	// 2. Dispatcher
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("Rako bridge daemon stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses RAKOBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("RAKOBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// resolveBridge builds the protocol client configuration. When no host
// is configured, the bridge is located on the LAN via mDNS with a UDP
// broadcast fallback; the located MAC and name fill in whatever the
// config leaves blank.
func resolveBridge(ctx context.Context, cfg *config.Config, log *logging.Logger) (rako.ClientConfig, error) {
	clientCfg := rako.ClientConfig{
		Host:     cfg.Bridge.Host,
		UDPPort:  cfg.Bridge.UDPPort,
		HTTPPort: cfg.Bridge.HTTPPort,
		MAC:      cfg.Bridge.MAC,
		Name:     cfg.Bridge.Name,
	}

	if clientCfg.Host == "" {
		log.Info("no bridge host configured, locating bridge",
			"timeout", cfg.GetLocateTimeout(),
		)
		located, err := rako.Locate(ctx, cfg.GetLocateTimeout())
		if err != nil {
			return rako.ClientConfig{}, fmt.Errorf("locating bridge: %w", err)
		}
		log.Info("bridge located",
			"host", located.Host,
			"mac", located.MAC,
			"name", located.Name,
		)
		clientCfg.Host = located.Host
		if clientCfg.MAC == "" {
			clientCfg.MAC = located.MAC
		}
		if clientCfg.Name == "" {
			clientCfg.Name = located.Name
		}
	}

	if clientCfg.MAC == "" {
		return rako.ClientConfig{}, fmt.Errorf("bridge MAC unknown: set bridge.mac or leave bridge.host empty for automatic location")
	}

	return clientCfg, nil
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *telemetry.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// mqttEntityAdapter adapts the infrastructure MQTT client to the entity
// dispatcher's PlatformClient interface. The difference is the
// Subscribe handler signature:
// - Infrastructure mqtt: func(topic string, payload []byte) error
// - Dispatcher expects:  func(topic string, payload []byte)
type mqttEntityAdapter struct {
	client *mqtt.Client
}

// Publish implements entity.PlatformClient.
func (a *mqttEntityAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements entity.PlatformClient.
func (a *mqttEntityAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	// Wrap the void handler; dispatcher handlers don't return errors
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}
