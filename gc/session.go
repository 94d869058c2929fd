//
// session.go
//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

// Package gc implements the garbler and evaluator engines of the
// semi-honest two-party garbled circuit protocol with mixed-modulus
// wires.
//
// The garbler sends, in order, its own input labels, the evaluator's
// input labels with oblivious transfer, one message per non-linear
// gate and constant, and finally the output decoding table. Linear
// gates are computed locally by both parties.
package gc

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mixgc/circuit"
	"github.com/markkurossi/mixgc/env"
	"github.com/markkurossi/mixgc/ot"
	"github.com/markkurossi/mixgc/p2p"
	"github.com/markkurossi/mixgc/wire"
)

// Conn defines the message channel between the garbler and the
// evaluator.
type Conn interface {
	ot.IO

	// SendLabel sends a 128-bit block.
	SendLabel(val ot.Label, data *ot.LabelData) error

	// ReceiveLabel receives a 128-bit block.
	ReceiveLabel(val *ot.Label, data *ot.LabelData) error
}

var (
	_ Conn = &p2p.Conn{}
)

// Engine defines the gate operations both parties implement. The
// garbler's labels are the zero labels of the wires and the
// evaluator's labels are the labels of the actual wire values.
type Engine interface {
	// Constant returns a label for the constant x of modulus q. Only
	// the garbler uses the value x.
	Constant(x, q uint16) (wire.Label, error)

	// Add returns a label for a+b.
	Add(a, b wire.Label) (wire.Label, error)

	// Sub returns a label for a-b.
	Sub(a, b wire.Label) (wire.Label, error)

	// Cmul returns a label for c·a.
	Cmul(a wire.Label, c uint16) (wire.Label, error)

	// Proj returns a label for tt[a] with modulus q.
	Proj(a wire.Label, q uint16, tt []uint16) (wire.Label, error)

	// Mul returns a label for a·b.
	Mul(a, b wire.Label) (wire.Label, error)

	// Output registers a as the next circuit output.
	Output(a wire.Label) error
}

// Stats holds session statistics.
type Stats struct {
	// Gates counts processed gates per operation.
	Gates circuit.Stats

	// Blocks counts gate message blocks per operation. The
	// decoding table blocks are counted for circuit.Output.
	Blocks circuit.Stats

	// Inputs counts the garbler's input labels.
	Inputs int

	// OTs counts the oblivious transfer instances.
	OTs int
}

func (stats Stats) String() string {
	return fmt.Sprintf("gates=%v blocks=%v inputs=%d ots=%d",
		stats.Gates, stats.Blocks, stats.Inputs, stats.OTs)
}

type session struct {
	cfg     *env.Config
	conn    Conn
	ot      ot.OT
	otInit  bool
	role    Kind
	err     error
	final   bool
	gate    uint64
	wires   []wire.Label
	outputs []wire.Label
	stats   Stats
	buf     ot.LabelData
}

func newSession(cfg *env.Config, conn Conn, oti ot.OT, role Kind) session {
	if cfg == nil {
		cfg = new(env.Config)
	}
	return session{
		cfg:  cfg,
		conn: conn,
		ot:   oti,
		role: role,
	}
}

// Stats returns the session statistics.
func (s *session) Stats() Stats {
	return s.stats
}

// Err returns the error that terminated the session or nil if the
// session has not failed.
func (s *session) Err() error {
	return s.err
}

// Debugf prints per-gate diagnostics if diagnostics are enabled.
func (s *session) Debugf(format string, a ...interface{}) {
	if !s.cfg.Diagnostics {
		return
	}
	fmt.Printf(format, a...)
}

func (s *session) verbosef(format string, a ...interface{}) {
	if !s.cfg.Verbose {
		return
	}
	fmt.Printf(format, a...)
}

func (s *session) fail(kind Kind, err error) error {
	e, ok := err.(*Error)
	if !ok {
		e = &Error{
			Kind: kind,
			Err:  err,
		}
	}
	if s.err == nil {
		s.err = e
	}
	return e
}

func (s *session) check() error {
	if s.err != nil {
		return &Error{
			Kind: KindOf(s.err),
			Err:  errors.Wrapf(ErrSessionFailed, "%v", s.err),
		}
	}
	return nil
}

func (s *session) checkGate() error {
	if err := s.check(); err != nil {
		return err
	}
	if s.final {
		return s.fail(s.role, ErrFinalized)
	}
	return nil
}

func (s *session) nextGate() uint64 {
	id := s.gate
	s.gate++
	return id
}

func (s *session) label(w circuit.Wire) (wire.Label, error) {
	if int(w) >= len(s.wires) || s.wires[w].Modulus() == 0 {
		return wire.Label{},
			s.fail(KindCircuit, errors.Wrapf(ErrUnknownWire, "%v", w))
	}
	return s.wires[w], nil
}

func (s *session) setLabel(w circuit.Wire, l wire.Label) {
	if int(w) >= len(s.wires) {
		n := make([]wire.Label, int(w)+1, 2*(int(w)+1))
		copy(n, s.wires)
		s.wires = n
	}
	s.wires[w] = l
}

func (s *session) sendBlock(op circuit.Operation, b ot.Label) error {
	if err := s.conn.SendLabel(b, &s.buf); err != nil {
		return s.fail(KindIO, err)
	}
	s.stats.Blocks[op]++
	return nil
}

func (s *session) receiveBlocks(op circuit.Operation, n int) (
	[]ot.Label, error) {

	result := make([]ot.Label, n)
	for i := 0; i < n; i++ {
		if err := s.conn.ReceiveLabel(&result[i], &s.buf); err != nil {
			return nil, s.fail(KindIO, err)
		}
	}
	s.stats.Blocks[op] += n
	return result, nil
}

func (s *session) flush() error {
	if err := s.conn.Flush(); err != nil {
		return s.fail(KindIO, err)
	}
	return nil
}

func (s *session) ioStats() p2p.IOStats {
	if c, ok := s.conn.(*p2p.Conn); ok {
		return c.Stats.Snapshot()
	}
	return p2p.NewIOStats()
}

// processGate runs the gate with the engine eng and records its
// output label.
func (s *session) processGate(eng Engine, gate circuit.Gate) error {
	if err := s.checkGate(); err != nil {
		return err
	}
	var out wire.Label
	var err error

	switch gate.Op {
	case circuit.Const:
		out, err = eng.Constant(gate.Value, gate.Mod)

	case circuit.Add, circuit.Sub, circuit.Mul:
		a, err := s.label(gate.Input0)
		if err != nil {
			return err
		}
		b, err := s.label(gate.Input1)
		if err != nil {
			return err
		}
		switch gate.Op {
		case circuit.Add:
			out, err = eng.Add(a, b)
		case circuit.Sub:
			out, err = eng.Sub(a, b)
		default:
			out, err = eng.Mul(a, b)
		}
		if err != nil {
			return err
		}

	case circuit.Cmul, circuit.Proj, circuit.Output:
		a, err := s.label(gate.Input0)
		if err != nil {
			return err
		}
		switch gate.Op {
		case circuit.Cmul:
			out, err = eng.Cmul(a, gate.Value)
		case circuit.Proj:
			out, err = eng.Proj(a, gate.Mod, gate.Table)
		default:
			s.Debugf("%s\n", gate)
			return eng.Output(a)
		}
		if err != nil {
			return err
		}

	default:
		return s.fail(KindCircuit,
			errors.Wrapf(circuit.ErrInvalidGate, "%v", gate.Op))
	}
	if err != nil {
		return err
	}
	s.setLabel(gate.Output, out)
	s.Debugf("%s\t%v\n", gate, out)
	return nil
}

func checkProj(qin, q uint16, tt []uint16) error {
	if err := wire.CheckModulus(q); err != nil {
		return err
	}
	if len(tt) != int(qin) {
		return errors.Wrapf(ErrTruthTable, "%d entries for modulus %d",
			len(tt), qin)
	}
	for _, v := range tt {
		if v >= q {
			return errors.Wrapf(ErrTruthTable, "value %d for modulus %d",
				v, q)
		}
	}
	return nil
}

func checkBinary(a, b wire.Label) error {
	if a.Modulus() != b.Modulus() {
		return errors.Wrapf(ErrModulusMismatch, "%d and %d",
			a.Modulus(), b.Modulus())
	}
	return nil
}

// add returns a+b for labels of equal moduli.
func add(a, b wire.Label) wire.Label {
	r, err := a.Plus(b)
	if err != nil {
		panic(err)
	}
	return r
}

// sub returns a-b for labels of equal moduli.
func sub(a, b wire.Label) wire.Label {
	r, err := a.Minus(b)
	if err != nil {
		panic(err)
	}
	return r
}

func addMod(a, b, q uint16) uint16 {
	return uint16((uint32(a) + uint32(b)) % uint32(q))
}

func mulMod(a, b, q uint16) uint16 {
	return uint16(uint32(a) * uint32(b) % uint32(q))
}

// gateTweak returns the hash tweak for the half j of the gate.
func gateTweak(gate, j uint64) ot.Label {
	return ot.Label{
		D0: j,
		D1: gate,
	}
}

// outputTweak returns the hash tweak for the value k of the output i.
func outputTweak(i int, k uint16) ot.Label {
	return ot.Label{
		D0: 1<<63 | uint64(k),
		D1: uint64(i),
	}
}
