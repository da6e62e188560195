// OT-honey boots a small wastewater treatment plant that does not exist:
// a simulated process model, an alarm annunciator and three protocol
// surfaces (HTTP SCADA, Modbus/TCP, SNMP) that together look like the
// unprotected OT core of a municipal plant. Every interaction with the
// outside world is written to the operations log.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/birising/OT-honey/internal/alarms"
	"github.com/birising/OT-honey/internal/api"
	"github.com/birising/OT-honey/internal/audit"
	"github.com/birising/OT-honey/internal/auth"
	"github.com/birising/OT-honey/internal/config"
	"github.com/birising/OT-honey/internal/gate"
	"github.com/birising/OT-honey/internal/notify"
	"github.com/birising/OT-honey/internal/observability/metrics"
	"github.com/birising/OT-honey/internal/plc"
	"github.com/birising/OT-honey/internal/scenario"
	"github.com/birising/OT-honey/internal/sim"
	"github.com/birising/OT-honey/internal/snmpd"
	"github.com/birising/OT-honey/internal/tags"
	"github.com/birising/OT-honey/internal/trend"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)

	seed := cfg.Seed
	if !cfg.Deterministic {
		seed = time.Now().UnixNano()
	}
	logger.Info().
		Str("facility", cfg.Facility).
		Bool("deterministic", cfg.Deterministic).
		Int64("seed", seed).
		Msg("starting plant")

	metrics.Init()

	registry, err := tags.NewRegistry(tags.Catalog(tags.DefaultCatalogSize, seed), time.Now())
	if err != nil {
		logger.Fatal().Err(err).Msg("tag registry")
	}
	model, err := sim.NewModel(registry, sim.DefaultParams(), seed)
	if err != nil {
		logger.Fatal().Err(err).Msg("process model")
	}

	catalogOpts := scenario.CatalogOptions{Registry: registry, KnownParam: sim.KnownParam}
	var defs []scenario.Definition
	if cfg.ScenariosFile != "" {
		defs, err = scenario.LoadCatalog(cfg.ScenariosFile, catalogOpts)
	} else {
		defs, err = scenario.BuiltinCatalog(catalogOpts)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("scenario catalog")
	}
	scenarios, err := scenario.NewManager(registry, defs, scenario.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("scenario manager")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Alarm fan-out: the SSE stream is always on, outbound channels only
	// when configured.
	stream := notify.NewSSEBroker()
	notifiers := []alarms.Notifier{stream}
	var channels []notify.Channel
	if cfg.WebhookURL != "" {
		ch, err := notify.NewWebhookChannel(cfg.WebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("alarm webhook")
		}
		channels = append(channels, ch)
	}
	if cfg.MQTTBroker != "" {
		ch, err := notify.NewMQTTChannel(cfg.MQTTBroker, cfg.MQTTTopic, cfg.MQTTClientID)
		if err != nil {
			logger.Fatal().Err(err).Msg("alarm mqtt")
		}
		if err := ch.Connect(); err != nil {
			logger.Warn().Err(err).Str("broker", cfg.MQTTBroker).Msg("mqtt connect failed, retrying in background")
		}
		defer ch.Close()
		channels = append(channels, ch)
	}
	if len(channels) > 0 {
		dispatcher := notify.NewDispatcher(cfg.Facility, channels, notify.WithLogger(logger))
		notifiers = append(notifiers, dispatcher)
		go dispatcher.Run(ctx)
	}

	annunciator, err := alarms.NewEngine(alarms.Schedule(),
		alarms.WithNotifier(notify.NewMulti(notifiers...)))
	if err != nil {
		logger.Fatal().Err(err).Msg("alarm engine")
	}
	trends, err := trend.NewBuffer(trend.Tracked(), trend.DefaultCapacity)
	if err != nil {
		logger.Fatal().Err(err).Msg("trend buffer")
	}
	writes, err := gate.New(registry)
	if err != nil {
		logger.Fatal().Err(err).Msg("write gate")
	}
	engine, err := sim.NewEngine(registry, model, scenarios, annunciator, trends,
		sim.WithInterval(cfg.TickInterval),
		sim.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("simulation engine")
	}

	opsLog, closeOpsLog := openOpsLog(cfg, logger)
	defer closeOpsLog()

	if cfg.JWTSecret == "" {
		logger.Warn().Msg("no JWT secret set, research endpoints are open")
	}
	httpd, err := api.NewServer(api.Deps{
		Registry:  registry,
		Gate:      writes,
		Engine:    engine,
		Alarms:    annunciator,
		Scenarios: scenarios,
		Trends:    trends,
		Stream:    stream,
		Guard:     auth.NewGuard(cfg.JWTSecret),
		Audit:     opsLog,
		Facility:  cfg.Facility,
		Logger:    logger.With().Str("component", "http").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("http server")
	}
	controller, err := plc.NewServer(plc.Deps{
		Registry: registry,
		Gate:     writes,
		Audit:    opsLog,
		Logger:   logger.With().Str("component", "modbus").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("modbus server")
	}
	agent, err := snmpd.NewServer(snmpd.Deps{
		Registry: registry,
		Alarms:   annunciator,
		Audit:    opsLog,
		Logger:   logger.With().Str("component", "snmp").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("snmp agent")
	}

	components := []struct {
		name string
		run  func(context.Context) error
	}{
		{"engine", engine.Run},
		{"http", func(ctx context.Context) error { return httpd.Run(ctx, cfg.HTTPAddr) }},
		{"modbus", func(ctx context.Context) error { return controller.Run(ctx, cfg.ModbusAddr) }},
		{"snmp", func(ctx context.Context) error { return agent.Run(ctx, cfg.SNMPAddr) }},
	}
	errCh := make(chan error, len(components))
	for _, c := range components {
		go func() {
			err := c.run(ctx)
			if err != nil {
				logger.Error().Err(err).Str("component", c.name).Msg("component stopped")
			}
			errCh <- err
		}()
	}

	returned := 0
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case <-errCh:
		// One surface died; take the whole plant down rather than limp
		// along with a partial protocol footprint.
		returned++
		stop()
	}

	deadline := time.After(shutdownGrace)
wait:
	for returned < len(components) {
		select {
		case <-errCh:
			returned++
		case <-deadline:
			logger.Warn().Msg("shutdown grace period expired")
			break wait
		}
	}
	logger.Info().Msg("plant stopped")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Int("pid", os.Getpid()).
		Logger()
}

// openOpsLog wires the operations log sink: append-only JSONL at the
// configured path, stdout when none is set.
func openOpsLog(cfg config.Config, logger zerolog.Logger) (audit.Logger, func()) {
	if cfg.AuditLog == "" {
		return audit.NewRecorder(os.Stdout), func() {}
	}
	w, err := audit.Open(cfg.AuditLog)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.AuditLog).Msg("operations log")
	}
	return audit.NewRecorder(w), func() { _ = w.Close() }
}
