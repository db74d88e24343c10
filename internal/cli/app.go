package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/nanosynth/internal/api"
	"github.com/RMahshie/nanosynth/internal/api/handlers"
	"github.com/RMahshie/nanosynth/internal/config"
	"github.com/RMahshie/nanosynth/internal/console"
	"github.com/RMahshie/nanosynth/internal/observability"
	"github.com/RMahshie/nanosynth/internal/processing"
	"github.com/RMahshie/nanosynth/internal/pump"
	"github.com/RMahshie/nanosynth/internal/repository"
	"github.com/RMahshie/nanosynth/internal/repository/memory"
	"github.com/RMahshie/nanosynth/internal/repository/postgres"
	"github.com/RMahshie/nanosynth/internal/spectrometer"
	"github.com/RMahshie/nanosynth/internal/storage"
	"github.com/RMahshie/nanosynth/internal/synthesis"
	"github.com/RMahshie/nanosynth/internal/telemetry"
	"github.com/RMahshie/nanosynth/migrations"
)

// ErrUnsupportedBackend is returned for an unknown SPECTROMETER_BACKEND or PUMP_DRIVER
var ErrUnsupportedBackend = errors.New("unsupported backend")

// App holds the dependencies shared by the synthesis commands
type App struct {
	Config     *config.Config
	SessionID  string
	Console    *console.Console
	Repository repository.RunRepository
	Archive    storage.Archive
	Publisher  telemetry.Publisher
	Metrics    *observability.Metrics
	Processing processing.ProcessingService

	db *sql.DB
}

// NewApp wires the run ledger, archive, telemetry and metrics from cfg.
// Every optional collaborator is skipped when its address is not configured.
func NewApp(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*App, error) {
	app := &App{
		Config:    cfg,
		SessionID: uuid.New().String(),
		Console:   console.New(in, out),
		Metrics:   observability.NewMetrics(),
		Publisher: telemetry.NoopPublisher{},
	}

	if cfg.Database.URL != "" {
		db, err := openDatabase(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		app.db = db
		app.Repository = postgres.NewPostgresRunRepository(db)
	} else {
		log.Debug().Msg("DATABASE_URL not set, using in-memory run ledger")
		app.Repository = memory.NewRunRepository()
	}

	if cfg.AWS.S3Bucket != "" {
		s3cfg := storage.S3Config{
			Bucket:    cfg.AWS.S3Bucket,
			Endpoint:  cfg.AWS.S3Endpoint,
			Region:    cfg.AWS.Region,
			AccessKey: cfg.AWS.AccessKeyID,
			SecretKey: cfg.AWS.SecretAccessKey,
		}
		if s3cfg.Endpoint != "" {
			if err := storage.EnsureBucket(ctx, s3cfg); err != nil {
				app.Close()
				return nil, fmt.Errorf("failed to prepare archive bucket: %w", err)
			}
		}
		archive, err := storage.NewS3Archive(ctx, s3cfg)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to initialize archive: %w", err)
		}
		app.Archive = archive
	}

	if cfg.MQTT.Broker != "" {
		publisher, err := telemetry.NewMQTTPublisher(telemetry.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      1,
			Timeout:  5 * time.Second,
		})
		if err != nil {
			// Run events are observational; the session goes ahead without them.
			log.Warn().Err(err).Str("broker", cfg.MQTT.Broker).Msg("Failed to connect to MQTT broker")
		} else {
			app.Publisher = publisher
		}
	}

	opts := processing.Options{
		Repository: app.Repository,
		Archive:    app.Archive,
		Publisher:  app.Publisher,
		Observer:   app.Metrics,
		OutputDir:  cfg.Output.Dir,
	}
	if cfg.Output.PlotsEnabled {
		opts.Plotter = storage.NewPNGPlotter()
	}
	app.Processing = processing.NewProcessingService(opts)

	log.Info().Str("session_id", app.SessionID).Msg("Session started")
	return app, nil
}

func openDatabase(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return db, nil
}

// Close releases the database and the telemetry connection
func (a *App) Close() error {
	if a.Console != nil {
		a.Console.Close()
	}
	if a.Publisher != nil {
		a.Publisher.Close()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Backend returns the configured spectrometer backend
func (a *App) Backend() (spectrometer.Backend, error) {
	switch a.Config.Spectrometer.Backend {
	case "simulated":
		return spectrometer.NewSimulated(a.Config.Spectrometer.Pixels, time.Now().UnixNano()), nil
	default:
		return nil, fmt.Errorf("%w: spectrometer %q", ErrUnsupportedBackend, a.Config.Spectrometer.Backend)
	}
}

// OpenSpectrometer binds to the configured spectrometer, or asks the operator
// to pick one, and applies an operator-entered integration time.
func (a *App) OpenSpectrometer(ctx context.Context) (*spectrometer.Session, error) {
	backend, err := a.Backend()
	if err != nil {
		return nil, err
	}

	id := a.Config.Spectrometer.ID
	if id == "" {
		devices, err := backend.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list spectrometers: %w", err)
		}
		desc, err := a.Console.SelectDevice(ctx, devices)
		if err != nil {
			return nil, err
		}
		id = desc.SerialNumber
	}

	session, err := spectrometer.Open(ctx, backend, id, spectrometer.WithObserver(a.Metrics))
	if err != nil {
		return nil, err
	}

	micros, err := a.Console.IntegrationTime(ctx)
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	if err := session.SetIntegrationTime(micros); err != nil {
		_ = session.Close()
		return nil, err
	}
	return session, nil
}

// PumpOpener returns the opener for the configured pump driver
func (a *App) PumpOpener() (pump.Opener, error) {
	return pumpOpener(a.Config.Pumps)
}

// PumpOptions returns channel options that report every command to the metrics
func (a *App) PumpOptions() pump.Options {
	return pumpOptions(a.Config.Pumps, a.Metrics)
}

func pumpOpener(pc config.PumpConfig) (pump.Opener, error) {
	switch pc.Driver {
	case "", "serial":
		return pump.OpenSerial, nil
	case "simulated":
		return pump.OpenSimulated, nil
	default:
		return nil, fmt.Errorf("%w: pump driver %q", ErrUnsupportedBackend, pc.Driver)
	}
}

func pumpOptions(pc config.PumpConfig, observer pump.CommandObserver) pump.Options {
	opts := pump.DefaultOptions()
	if pc.BaudRate > 0 {
		opts.Port.BaudRate = pc.BaudRate
	}
	if pc.ReadTimeout > 0 {
		opts.Port.ReadTimeout = pc.ReadTimeout
	}
	if pc.SettleDelay > 0 {
		opts.SettleDelay = pc.SettleDelay
	}
	opts.Observer = observer
	return opts
}

// NewSequencer creates a sequencer that reports its state to the metrics
func (a *App) NewSequencer(session synthesis.Spectrometer, opts ...synthesis.Option) *synthesis.Sequencer {
	opts = append([]synthesis.Option{synthesis.WithStateObserver(a.Metrics)}, opts...)
	return synthesis.NewSequencer(a.SessionID, session, a.Console, a.Processing, opts...)
}

// ServeStatus starts the status API when STATUS_ADDR is set. The returned
// function stops it.
func (a *App) ServeStatus(status handlers.StatusSource) func() {
	if a.Config.Server.Addr == "" {
		return func() {}
	}
	router := api.NewRouter(api.Options{
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		Repository:     a.Repository,
		Archive:        a.Archive,
		Status:         status,
		Metrics:        a.Metrics.Handler(),
	})
	srv := api.NewServer(a.Config.Server.Addr, router)
	srv.Start()
	return func() {
		if err := srv.Shutdown(); err != nil {
			log.Warn().Err(err).Msg("Status API server forced to shutdown")
		}
	}
}
