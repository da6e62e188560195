// Package api is the HTTP face of the plant: the operator endpoints the
// HMI uses, the research controls behind the optional guard, and the
// ops surfaces (metrics, exports, alarm stream).
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/birising/OT-honey/internal/alarms"
	"github.com/birising/OT-honey/internal/audit"
	"github.com/birising/OT-honey/internal/auth"
	"github.com/birising/OT-honey/internal/gate"
	"github.com/birising/OT-honey/internal/notify"
	"github.com/birising/OT-honey/internal/scenario"
	"github.com/birising/OT-honey/internal/sim"
	"github.com/birising/OT-honey/internal/tags"
	"github.com/birising/OT-honey/internal/trend"
)

const (
	serviceName     = "WWTP Control System API"
	defaultFacility = "WWTP Nove Mesto nad Metuji (NMM-CZ-01)"
	plantOperator   = "Vodohospodarska spolecnost Vychodni Cechy, a.s."
	plantCapacity   = "4.5k EO"
	serviceVersion  = "3.0.0"

	shutdownTimeout = 5 * time.Second
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Deps carries everything the server serves from. Registry, Gate,
// Engine, Alarms, Scenarios and Trends are required; the rest may be
// nil and the matching surface degrades gracefully.
type Deps struct {
	Registry  *tags.Registry
	Gate      *gate.Gate
	Engine    *sim.Engine
	Alarms    *alarms.Engine
	Scenarios *scenario.Manager
	Trends    *trend.Buffer

	Stream *notify.SSEBroker
	Guard  *auth.Guard
	Audit  audit.Logger

	Facility string
	Clock    Clock
	Logger   zerolog.Logger
}

// Server handles the plant HTTP surface.
type Server struct {
	registry  *tags.Registry
	gate      *gate.Gate
	engine    *sim.Engine
	alarms    *alarms.Engine
	scenarios *scenario.Manager
	trends    *trend.Buffer

	stream *notify.SSEBroker
	guard  *auth.Guard
	audit  audit.Logger

	facility string
	clock    Clock
	log      zerolog.Logger
}

// NewServer validates the dependencies and builds the server.
func NewServer(deps Deps) (*Server, error) {
	if deps.Registry == nil {
		return nil, errors.New("api: registry is required")
	}
	if deps.Gate == nil {
		return nil, errors.New("api: write gate is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("api: engine is required")
	}
	if deps.Alarms == nil {
		return nil, errors.New("api: alarm engine is required")
	}
	if deps.Scenarios == nil {
		return nil, errors.New("api: scenario manager is required")
	}
	if deps.Trends == nil {
		return nil, errors.New("api: trend buffer is required")
	}

	s := &Server{
		registry:  deps.Registry,
		gate:      deps.Gate,
		engine:    deps.Engine,
		alarms:    deps.Alarms,
		scenarios: deps.Scenarios,
		trends:    deps.Trends,
		stream:    deps.Stream,
		guard:     deps.Guard,
		audit:     deps.Audit,
		facility:  deps.Facility,
		clock:     deps.Clock,
		log:       deps.Logger,
	}
	if s.guard == nil {
		s.guard = auth.NewGuard("")
	}
	if s.facility == "" {
		s.facility = defaultFacility
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	return s, nil
}

// Router builds the gin engine with every route attached.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.observe())

	router.GET("/", s.identity)
	router.GET("/health", s.health)
	router.GET("/metrics", metricsHandler())

	open := router.Group("/api")
	{
		open.GET("/snapshot", s.snapshot)
		open.GET("/alarms", s.activeAlarms)
		open.GET("/alarms/history", s.alarmHistory)
		open.GET("/alarms/stream", s.streamAlarms)
		open.POST("/alarm/acknowledge", s.acknowledgeAlarm)
		open.POST("/write", s.writeTag)
		open.GET("/trends", s.trendData)
		open.GET("/mode", s.getMode)
		open.POST("/mode", s.setMode)
		open.POST("/killswitch", s.killSwitch)
		open.GET("/scenarios", s.listScenarios)
	}

	// Research controls share the /api prefix but carry the guard. When
	// no secret is configured the guard passes everything through and
	// the whole surface stays open, like a plant with default creds.
	research := router.Group("/api")
	research.Use(s.auditDenied(), s.guard.RequireRole(auth.RoleAdmin))
	{
		research.POST("/scenario/start", s.startScenario)
		research.POST("/scenario/stop", s.stopScenario)
		research.POST("/reset", s.reset)
		research.GET("/export/trends.xlsx", s.exportTrends)
		research.GET("/export/report.pdf", s.exportReport)
	}

	return router
}

// Run serves until the context is cancelled, then shuts down cleanly.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{Addr: addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info().Str("addr", addr).Msg("http server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info().Msg("http server shutting down")
	return server.Shutdown(shutdownCtx)
}
