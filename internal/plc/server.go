// Package plc speaks Modbus TCP for the emulated PLC cabinet. It
// serves a register image computed from the live tag registry and
// pushes register writes through the write gate, so the fieldbus and
// the HTTP surface always tell the same story.
package plc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/rs/zerolog"
	"github.com/simonvetter/modbus"

	"github.com/birising/OT-honey/internal/audit"
	"github.com/birising/OT-honey/internal/gate"
	"github.com/birising/OT-honey/internal/observability/metrics"
	"github.com/birising/OT-honey/internal/tags"
)

// Nameplate of the cover PLC, logged at startup and quoted in the
// operations log so captures attribute traffic to a concrete device.
const (
	vendorName      = "AquaTech Control Systems s.r.o."
	productCode     = "ATC-PLC-2000"
	productName     = "WWTP PLC Controller"
	productRevision = "3.0.0"
)

const (
	unitID         = 1
	sessionTimeout = 60 * time.Second
	maxClients     = 16
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Deps carries the server dependencies. Registry and Gate are
// required; Audit may be nil when no operations log is wired.
type Deps struct {
	Registry *tags.Registry
	Gate     *gate.Gate

	Audit  audit.Logger
	Clock  Clock
	Logger zerolog.Logger
}

// Server answers Modbus requests from the plant registry.
type Server struct {
	registry *tags.Registry
	gate     *gate.Gate
	audit    audit.Logger
	clock    Clock
	log      zerolog.Logger
}

// NewServer validates the dependencies and builds the server.
func NewServer(deps Deps) (*Server, error) {
	if deps.Registry == nil {
		return nil, errors.New("plc: registry is required")
	}
	if deps.Gate == nil {
		return nil, errors.New("plc: write gate is required")
	}
	s := &Server{
		registry: deps.Registry,
		gate:     deps.Gate,
		audit:    deps.Audit,
		clock:    deps.Clock,
		log:      deps.Logger,
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	return s, nil
}

// Run serves Modbus TCP on addr until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        "tcp://" + addr,
		Timeout:    sessionTimeout,
		MaxClients: maxClients,
	}, s)
	if err != nil {
		return fmt.Errorf("plc: configure server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("plc: listen on %s: %w", addr, err)
	}
	s.log.Info().
		Str("addr", addr).
		Str("vendor", vendorName).
		Str("product", productCode).
		Str("revision", productRevision).
		Msg(productName + " listening")
	<-ctx.Done()
	return srv.Stop()
}

// HandleCoils serves FC 1/5/15 over the command coils.
func (s *Server) HandleCoils(req *modbus.CoilsRequest) ([]bool, error) {
	if req.UnitId != unitID {
		return nil, modbus.ErrIllegalFunction
	}
	if outOfImage(req.Addr, req.Quantity) {
		return nil, modbus.ErrIllegalDataAddress
	}
	if req.IsWrite {
		return s.writeCoils(req)
	}
	metrics.IncProtocolRequest(metrics.ProtocolModbus, "read_coils")
	s.logRead(req.ClientAddr, "coils", req.Addr, req.Quantity)
	res := make([]bool, req.Quantity)
	for i := range res {
		tag, ok := coilImage[req.Addr+uint16(i)]
		if !ok {
			continue
		}
		if v, err := s.registry.Get(tag); err == nil {
			res[i] = v.AsBool()
		}
	}
	return res, nil
}

// HandleDiscreteInputs serves FC 2 over the status bits.
func (s *Server) HandleDiscreteInputs(req *modbus.DiscreteInputsRequest) ([]bool, error) {
	if req.UnitId != unitID {
		return nil, modbus.ErrIllegalFunction
	}
	if outOfImage(req.Addr, req.Quantity) {
		return nil, modbus.ErrIllegalDataAddress
	}
	metrics.IncProtocolRequest(metrics.ProtocolModbus, "read_discrete")
	s.logRead(req.ClientAddr, "discrete", req.Addr, req.Quantity)
	res := make([]bool, req.Quantity)
	for i := range res {
		tag, ok := discreteImage[req.Addr+uint16(i)]
		if !ok {
			continue
		}
		if v, err := s.registry.Get(tag); err == nil {
			res[i] = v.AsBool()
		}
	}
	return res, nil
}

// HandleHoldingRegisters serves FC 3/6/16 over the analog block.
func (s *Server) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if req.UnitId != unitID {
		return nil, modbus.ErrIllegalFunction
	}
	if outOfImage(req.Addr, req.Quantity) {
		return nil, modbus.ErrIllegalDataAddress
	}
	if req.IsWrite {
		return s.writeHolding(req)
	}
	metrics.IncProtocolRequest(metrics.ProtocolModbus, "read_holding")
	s.logRead(req.ClientAddr, "holding", req.Addr, req.Quantity)
	return s.readHolding(req.Addr, req.Quantity), nil
}

// HandleInputRegisters serves FC 4. The integrator mirrored the
// holding block here so both addressing conventions see the plant.
func (s *Server) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	if req.UnitId != unitID {
		return nil, modbus.ErrIllegalFunction
	}
	if outOfImage(req.Addr, req.Quantity) {
		return nil, modbus.ErrIllegalDataAddress
	}
	metrics.IncProtocolRequest(metrics.ProtocolModbus, "read_input")
	s.logRead(req.ClientAddr, "input", req.Addr, req.Quantity)
	return s.readHolding(req.Addr, req.Quantity), nil
}

func (s *Server) readHolding(addr, quantity uint16) []uint16 {
	res := make([]uint16, quantity)
	for i := range res {
		point, ok := holdingImage[addr+uint16(i)]
		if !ok {
			continue
		}
		v, err := s.registry.Get(point.tag)
		if err != nil {
			continue
		}
		res[i] = packRegister(v.AsFloat(), point.scale)
	}
	return res
}

func (s *Server) writeCoils(req *modbus.CoilsRequest) ([]bool, error) {
	metrics.IncProtocolRequest(metrics.ProtocolModbus, "write_coils")
	res := make([]bool, req.Quantity)
	for i := 0; i < int(req.Quantity); i++ {
		addr := req.Addr + uint16(i)
		tag, ok := coilImage[addr]
		if !ok {
			metrics.IncTagWrite(metrics.WriteRejected)
			s.logWrite(req.ClientAddr, addr, "", fmt.Sprintf("%t", req.Args[i]), audit.ResultRejected, "coil not mapped")
			return nil, modbus.ErrIllegalDataAddress
		}
		value, err := s.gate.Write(tag, req.Args[i])
		if err != nil {
			metrics.IncTagWrite(metrics.WriteRejected)
			s.logWrite(req.ClientAddr, addr, tag, fmt.Sprintf("%t", req.Args[i]), audit.ResultRejected, err.Error())
			return nil, writeError(err)
		}
		metrics.IncTagWrite(metrics.WriteAccepted)
		s.logWrite(req.ClientAddr, addr, tag, value.String(), audit.ResultAccepted, "")
		res[i] = value.AsBool()
	}
	return res, nil
}

func (s *Server) writeHolding(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	metrics.IncProtocolRequest(metrics.ProtocolModbus, "write_holding")
	res := make([]uint16, req.Quantity)
	for i := 0; i < int(req.Quantity); i++ {
		addr := req.Addr + uint16(i)
		point, ok := holdingImage[addr]
		if !ok {
			metrics.IncTagWrite(metrics.WriteRejected)
			s.logWrite(req.ClientAddr, addr, "", fmt.Sprintf("%d", req.Args[i]), audit.ResultRejected, "register not mapped")
			return nil, modbus.ErrIllegalDataAddress
		}
		raw := float64(req.Args[i]) / point.scale
		value, err := s.gate.Write(point.tag, raw)
		if err != nil {
			metrics.IncTagWrite(metrics.WriteRejected)
			s.logWrite(req.ClientAddr, addr, point.tag, fmt.Sprintf("%g", raw), audit.ResultRejected, err.Error())
			return nil, writeError(err)
		}
		metrics.IncTagWrite(metrics.WriteAccepted)
		s.logWrite(req.ClientAddr, addr, point.tag, value.String(), audit.ResultAccepted, "")
		res[i] = packRegister(value.AsFloat(), point.scale)
	}
	return res, nil
}

// writeError maps gate failures onto Modbus exception codes. Registers
// outside the whitelist answer as read-only memory, values outside the
// engineering limits as illegal data.
func writeError(err error) error {
	switch {
	case errors.Is(err, gate.ErrNotWritable), errors.Is(err, tags.ErrNotFound):
		return modbus.ErrIllegalDataAddress
	case errors.Is(err, gate.ErrOutOfRange), errors.Is(err, tags.ErrTypeMismatch):
		return modbus.ErrIllegalDataValue
	default:
		return modbus.ErrServerDeviceFailure
	}
}

// packRegister converts an engineering value to its fixed-point word,
// saturating at the uint16 bounds.
func packRegister(v, scale float64) uint16 {
	scaled := math.Round(v * scale)
	if scaled < 0 {
		return 0
	}
	if scaled > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(scaled)
}

func outOfImage(addr, quantity uint16) bool {
	return int(addr)+int(quantity) > imageSize
}

// logWrite records a register write attempt in the operations log.
func (s *Server) logWrite(clientAddr string, addr uint16, tag, value, result, detail string) {
	if s.audit == nil {
		return
	}
	entry := audit.Entry{
		ID:     audit.NewID(),
		Source: audit.SourceModbus,
		IP:     clientIP(clientAddr),
		Action: audit.ActionTagWrite,
		Target: tag,
		Value:  value,
		Result: result,
		Detail: detail,
		At:     s.clock.Now().UTC(),
	}
	if entry.Target == "" {
		entry.Target = fmt.Sprintf("register %d", addr)
	} else if detail == "" {
		entry.Detail = fmt.Sprintf("register %d", addr)
	}
	if err := s.audit.Log(context.Background(), entry); err != nil {
		s.log.Warn().Err(err).Msg("modbus audit write failed")
	}
}

// logRead notes register scans at debug level. Reads are too frequent
// for the operations log; the metrics counter keeps the volume.
func (s *Server) logRead(clientAddr, block string, addr, quantity uint16) {
	s.log.Debug().
		Str("client", clientIP(clientAddr)).
		Str("block", block).
		Uint16("addr", addr).
		Uint16("quantity", quantity).
		Msg("modbus read")
}

func clientIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
