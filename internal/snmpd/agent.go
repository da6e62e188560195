// Package snmpd is the SNMP v2c face of the plant: the standard system
// group, a vendor subtree with cabinet diagnostics, and live process
// values under the enterprise arc. Read-only; every request packet is
// recorded with its source address.
package snmpd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/rs/zerolog"
	"github.com/slayercat/GoSNMPServer"

	"github.com/birising/OT-honey/internal/alarms"
	"github.com/birising/OT-honey/internal/audit"
	"github.com/birising/OT-honey/internal/observability/metrics"
	"github.com/birising/OT-honey/internal/tags"
)

// System group identity. The cabinet carries the nameplate of the
// Belokluky works whose RTU hardware was reused for this site, so the
// SNMP identity does not match the HTTP one.
const (
	sysDescr    = "ČOV Control System v2.1 - ČOV Belokluky (kapacita 4.5k EO)"
	sysObjectID = "1.3.6.1.4.1.9999.1.1"
	sysContact  = "provoz@vsch.cz"
	sysName     = "BEL-CZ-01"
	sysLocation = "Čistírna odpadních vod, Belokluky"
	sysServices = 72
)

// Vendor cabinet diagnostics, fixed values from the site survey.
const (
	cabinetTempC   = 28
	upsStatusOK    = 1
	cpuLoadPercent = 45
)

// communityRO is the site read community. The factory default stays
// accepted beside it; the integrator never removed it.
const communityRO = "public_ro"

var communities = []string{communityRO, "public"}

const (
	oidActiveAlarms = "1.3.6.1.4.1.9999.1.2.8.0"
	oidPlantMode    = "1.3.6.1.4.1.9999.1.2.9.0"
)

// processPoint exposes one live analog as a scaled SNMP integer.
type processPoint struct {
	oid   string
	tag   string
	scale float64
	doc   string
}

// processOIDs is the vendor process arc. The integer encodings carry
// the same fixed-point scales as the PLC register image.
var processOIDs = []processPoint{
	{"1.3.6.1.4.1.9999.1.2.1.0", tags.QIn, 10, "influentFlow"},
	{"1.3.6.1.4.1.9999.1.2.2.0", tags.QOut, 10, "effluentFlow"},
	{"1.3.6.1.4.1.9999.1.2.3.0", tags.DO301, 100, "aerationDO"},
	{"1.3.6.1.4.1.9999.1.2.4.0", tags.PH501, 100, "effluentPH"},
	{"1.3.6.1.4.1.9999.1.2.5.0", tags.TUR501, 100, "effluentTurbidity"},
	{"1.3.6.1.4.1.9999.1.2.6.0", tags.COD501, 10, "effluentCOD"},
	{"1.3.6.1.4.1.9999.1.2.7.0", tags.Tank501Level, 10, "chemicalTankLevel"},
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Deps carries the agent dependencies. Registry and Alarms are
// required; Audit may be nil when no operations log is wired.
type Deps struct {
	Registry *tags.Registry
	Alarms   *alarms.Engine

	Audit  audit.Logger
	Clock  Clock
	Logger zerolog.Logger
}

// Server answers SNMP reads from the plant registry.
type Server struct {
	registry *tags.Registry
	alarms   *alarms.Engine
	audit    audit.Logger
	clock    Clock
	log      zerolog.Logger

	started time.Time
	master  GoSNMPServer.MasterAgent
}

// NewServer validates the dependencies and builds the agent.
func NewServer(deps Deps) (*Server, error) {
	if deps.Registry == nil {
		return nil, errors.New("snmpd: registry is required")
	}
	if deps.Alarms == nil {
		return nil, errors.New("snmpd: alarm engine is required")
	}
	s := &Server{
		registry: deps.Registry,
		alarms:   deps.Alarms,
		audit:    deps.Audit,
		clock:    deps.Clock,
		log:      deps.Logger,
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	s.started = s.clock.Now()
	s.master = GoSNMPServer.MasterAgent{
		Logger: &agentLogger{log: s.log},
		SubAgents: []*GoSNMPServer.SubAgent{
			{
				CommunityIDs: communities,
				Logger:       &agentLogger{log: s.log},
				OIDs:         s.oidTable(),
			},
		},
	}
	if err := s.master.ReadyForWork(); err != nil {
		return nil, fmt.Errorf("snmpd: agent config: %w", err)
	}
	return s, nil
}

// Run answers SNMP requests on addr until the context is cancelled.
// One goroutine serves all requests; the agent is read-only and a
// lost packet costs a scanner one retry.
func (s *Server) Run(ctx context.Context, addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("snmpd: listen on %s: %w", addr, err)
	}
	s.log.Info().
		Str("addr", addr).
		Str("sys_name", sysName).
		Str("community", communityRO).
		Msg("snmp agent listening")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	buf := make([]byte, 4096)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("snmpd: read packet: %w", err)
		}
		s.serve(conn, peer, buf[:n])
	}
}

func (s *Server) serve(conn net.PacketConn, peer net.Addr, packet []byte) {
	metrics.IncProtocolRequest(metrics.ProtocolSNMP, "get")
	s.logQuery(peer, len(packet))
	out, err := s.master.ResponseForBuffer(packet)
	if err != nil || len(out) == 0 {
		s.log.Debug().Err(err).Str("client", peerHost(peer)).Msg("snmp packet dropped")
		return
	}
	if _, err := conn.WriteTo(out, peer); err != nil {
		s.log.Debug().Err(err).Str("client", peerHost(peer)).Msg("snmp response write failed")
	}
}

func (s *Server) oidTable() []*GoSNMPServer.PDUValueControlItem {
	table := []*GoSNMPServer.PDUValueControlItem{
		{OID: "1.3.6.1.2.1.1.1.0", Type: gosnmp.OctetString, OnGet: staticString(sysDescr), Document: "sysDescr"},
		{OID: "1.3.6.1.2.1.1.2.0", Type: gosnmp.ObjectIdentifier, OnGet: staticOID(sysObjectID), Document: "sysObjectID"},
		{OID: "1.3.6.1.2.1.1.3.0", Type: gosnmp.TimeTicks, OnGet: s.uptime, Document: "sysUpTime"},
		{OID: "1.3.6.1.2.1.1.4.0", Type: gosnmp.OctetString, OnGet: staticString(sysContact), Document: "sysContact"},
		{OID: "1.3.6.1.2.1.1.5.0", Type: gosnmp.OctetString, OnGet: staticString(sysName), Document: "sysName"},
		{OID: "1.3.6.1.2.1.1.6.0", Type: gosnmp.OctetString, OnGet: staticString(sysLocation), Document: "sysLocation"},
		{OID: "1.3.6.1.2.1.1.7.0", Type: gosnmp.Integer, OnGet: staticInt(sysServices), Document: "sysServices"},

		{OID: "1.3.6.1.4.1.9999.1.1.1.0", Type: gosnmp.Integer, OnGet: staticInt(cabinetTempC), Document: "cabinetTemperature"},
		{OID: "1.3.6.1.4.1.9999.1.1.2.0", Type: gosnmp.Integer, OnGet: staticInt(upsStatusOK), Document: "upsStatus"},
		{OID: "1.3.6.1.4.1.9999.1.1.3.0", Type: gosnmp.Integer, OnGet: staticInt(cpuLoadPercent), Document: "cpuLoad"},
	}
	for _, point := range processOIDs {
		table = append(table, &GoSNMPServer.PDUValueControlItem{
			OID:  point.oid,
			Type: gosnmp.Integer,
			OnGet: func() (interface{}, error) {
				return GoSNMPServer.Asn1IntegerWrap(s.scaledTag(point.tag, point.scale)), nil
			},
			Document: point.doc,
		})
	}
	table = append(table,
		&GoSNMPServer.PDUValueControlItem{
			OID:  oidActiveAlarms,
			Type: gosnmp.Integer,
			OnGet: func() (interface{}, error) {
				return GoSNMPServer.Asn1IntegerWrap(s.alarms.ActiveCount()), nil
			},
			Document: "activeAlarms",
		},
		&GoSNMPServer.PDUValueControlItem{
			OID:  oidPlantMode,
			Type: gosnmp.Integer,
			OnGet: func() (interface{}, error) {
				return GoSNMPServer.Asn1IntegerWrap(s.modeWord()), nil
			},
			Document: "plantMode",
		},
	)
	return table
}

func (s *Server) uptime() (interface{}, error) {
	elapsed := s.clock.Now().Sub(s.started)
	return GoSNMPServer.Asn1TimeTicksWrap(uint32(elapsed / (10 * time.Millisecond))), nil
}

func (s *Server) scaledTag(name string, scale float64) int {
	v, err := s.registry.Get(name)
	if err != nil {
		return 0
	}
	return int(math.Round(v.AsFloat() * scale))
}

func (s *Server) modeWord() int {
	v, err := s.registry.Get(tags.GlobalMode)
	if err != nil {
		return 0
	}
	return int(v.AsInt())
}

// logQuery records one request packet in the operations log.
func (s *Server) logQuery(peer net.Addr, size int) {
	if s.audit == nil {
		return
	}
	entry := audit.Entry{
		ID:     audit.NewID(),
		Source: audit.SourceSNMP,
		IP:     peerHost(peer),
		Action: audit.ActionProbe,
		Target: "get",
		Result: audit.ResultAccepted,
		Detail: fmt.Sprintf("%d bytes", size),
		At:     s.clock.Now().UTC(),
	}
	if err := s.audit.Log(context.Background(), entry); err != nil {
		s.log.Warn().Err(err).Msg("snmp audit write failed")
	}
}

func staticString(v string) func() (interface{}, error) {
	return func() (interface{}, error) {
		return GoSNMPServer.Asn1OctetStringWrap(v), nil
	}
}

func staticInt(v int) func() (interface{}, error) {
	return func() (interface{}, error) {
		return GoSNMPServer.Asn1IntegerWrap(v), nil
	}
}

func staticOID(v string) func() (interface{}, error) {
	return func() (interface{}, error) {
		return GoSNMPServer.Asn1ObjectIdentifierWrap(v), nil
	}
}

func peerHost(peer net.Addr) string {
	if peer == nil {
		return ""
	}
	if host, _, err := net.SplitHostPort(peer.String()); err == nil {
		return host
	}
	return peer.String()
}
