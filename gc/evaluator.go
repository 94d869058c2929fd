//
// evaluator.go
//
// Copyright (c) 2019-2025 Markku Rossi
//
// All rights reserved.
//

package gc

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mixgc/circuit"
	"github.com/markkurossi/mixgc/env"
	"github.com/markkurossi/mixgc/ot"
	"github.com/markkurossi/mixgc/wire"
)

var (
	_ Engine = &Evaluator{}
)

// Evaluator implements the evaluator engine. An Evaluator evaluates
// one circuit and it must not be reused after it has decoded its
// outputs or returned an error.
type Evaluator struct {
	session
	decoding [][]ot.Label
}

// NewEvaluator creates a new evaluator session. The oti is used as
// the OT receiver for the evaluator's inputs.
func NewEvaluator(cfg *env.Config, conn Conn, oti ot.OT) (
	*Evaluator, error) {

	return &Evaluator{
		session: newSession(cfg, conn, oti, KindEvaluator),
	}, nil
}

func (e *Evaluator) receiveLabel(q uint16) (wire.Label, error) {
	var block ot.Label
	if err := e.conn.ReceiveLabel(&block, &e.buf); err != nil {
		return wire.Label{}, e.fail(KindIO, err)
	}
	return wire.FromBlock(block, q), nil
}

// ReceiveInput receives the label of the garbler's input wire w of
// modulus q.
func (e *Evaluator) ReceiveInput(w circuit.Wire, q uint16) (
	wire.Label, error) {

	if err := e.checkGate(); err != nil {
		return wire.Label{}, err
	}
	if err := wire.CheckModulus(q); err != nil {
		return wire.Label{}, e.fail(KindCircuit, err)
	}
	l, err := e.receiveLabel(q)
	if err != nil {
		return l, err
	}
	e.setLabel(w, l)
	e.stats.Inputs++
	return l, nil
}

// ReceiveInputs receives the labels of the garbler's inputs of the
// circuit.
func (e *Evaluator) ReceiveInputs(circ *circuit.Circuit) error {
	for i, q := range circ.GarblerInputs {
		if _, err := e.ReceiveInput(circuit.Wire(i), q); err != nil {
			return err
		}
	}
	return nil
}

// Receive obtains with oblivious transfer the label of the value v
// for the evaluator's input wire w of modulus q.
func (e *Evaluator) Receive(w circuit.Wire, q, v uint16) (
	wire.Label, error) {

	labels, err := e.ReceiveMany([]circuit.Wire{w}, []uint16{q},
		[]uint16{v})
	if err != nil {
		return wire.Label{}, err
	}
	return labels[0], nil
}

// ReceiveMany obtains with oblivious transfer the labels of the
// values for the evaluator's input wires. The transfers of all wires
// are batched into one OT run.
func (e *Evaluator) ReceiveMany(wires []circuit.Wire, moduli,
	values []uint16) ([]wire.Label, error) {

	if err := e.checkGate(); err != nil {
		return nil, err
	}
	if len(wires) != len(moduli) || len(wires) != len(values) {
		return nil, e.fail(KindCircuit,
			errors.Wrapf(ErrInputRange, "%d wires, %d moduli, %d values",
				len(wires), len(moduli), len(values)))
	}
	var flags []bool
	for i, q := range moduli {
		if err := wire.CheckModulus(q); err != nil {
			return nil, e.fail(KindCircuit, err)
		}
		if values[i] >= q {
			return nil, e.fail(KindCircuit,
				errors.Wrapf(ErrInputRange, "value %d for modulus %d",
					values[i], q))
		}
		for j := 0; j < numBits(q); j++ {
			flags = append(flags, values[i]&(1<<j) != 0)
		}
	}
	if len(flags) == 0 {
		return nil, nil
	}
	if e.ot == nil {
		return nil, e.fail(KindOT, errors.New("no OT receiver"))
	}
	if !e.otInit {
		if err := e.ot.InitReceiver(e.conn); err != nil {
			return nil, e.fail(KindOT, err)
		}
		e.otInit = true
	}
	blocks := make([]ot.Label, len(flags))
	if err := e.ot.Receive(flags, blocks); err != nil {
		return nil, e.fail(KindOT, err)
	}
	e.stats.OTs += len(flags)

	result := make([]wire.Label, len(wires))
	var idx int
	for i, q := range moduli {
		l := wire.Zero(q)
		var pow uint16 = 1
		for j := 0; j < numBits(q); j++ {
			l = add(l, wire.FromBlock(blocks[idx], q).Cmul(pow))
			pow = mulMod(pow, 2, q)
			idx++
		}
		e.setLabel(wires[i], l)
		result[i] = l
	}
	return result, nil
}

// Constant implements Engine.Constant. The evaluator receives the
// label of the constant from the garbler.
func (e *Evaluator) Constant(x, q uint16) (wire.Label, error) {
	if err := e.checkGate(); err != nil {
		return wire.Label{}, err
	}
	if err := wire.CheckModulus(q); err != nil {
		return wire.Label{}, e.fail(KindCircuit, err)
	}
	l, err := e.receiveLabel(q)
	if err != nil {
		return l, err
	}
	e.stats.Blocks[circuit.Const]++
	e.stats.Gates[circuit.Const]++
	return l, nil
}

// Add implements Engine.Add.
func (e *Evaluator) Add(a, b wire.Label) (wire.Label, error) {
	return e.linear(circuit.Add, a, b)
}

// Sub implements Engine.Sub.
func (e *Evaluator) Sub(a, b wire.Label) (wire.Label, error) {
	return e.linear(circuit.Sub, a, b)
}

func (e *Evaluator) linear(op circuit.Operation, a, b wire.Label) (
	wire.Label, error) {

	if err := e.checkGate(); err != nil {
		return wire.Label{}, err
	}
	if err := checkBinary(a, b); err != nil {
		return wire.Label{}, e.fail(KindCircuit, err)
	}
	e.stats.Gates[op]++
	if op == circuit.Add {
		return add(a, b), nil
	}
	return sub(a, b), nil
}

// Cmul implements Engine.Cmul.
func (e *Evaluator) Cmul(a wire.Label, c uint16) (wire.Label, error) {
	if err := e.checkGate(); err != nil {
		return wire.Label{}, err
	}
	e.stats.Gates[circuit.Cmul]++
	return a.Cmul(c), nil
}

// Proj implements Engine.Proj.
func (e *Evaluator) Proj(a wire.Label, q uint16, tt []uint16) (
	wire.Label, error) {

	if err := e.checkGate(); err != nil {
		return wire.Label{}, err
	}
	qin := a.Modulus()
	if qin == 0 {
		return wire.Label{}, e.fail(KindCircuit,
			errors.Wrap(ErrUnknownWire, "projection input"))
	}
	if err := checkProj(qin, q, tt); err != nil {
		return wire.Label{}, e.fail(KindCircuit, err)
	}
	tweak := gateTweak(e.nextGate(), 0)
	table, err := e.receiveBlocks(circuit.Proj, int(qin)-1)
	if err != nil {
		return wire.Label{}, err
	}
	e.stats.Gates[circuit.Proj]++

	color := a.Color()
	if color == 0 {
		return a.HashBack(tweak, q), nil
	}
	block := table[color-1]
	block.Xor(a.Hash(tweak))
	return wire.FromBlock(block, q), nil
}

// Mul implements Engine.Mul.
func (e *Evaluator) Mul(a, b wire.Label) (wire.Label, error) {
	if err := e.checkGate(); err != nil {
		return wire.Label{}, err
	}
	if err := checkBinary(a, b); err != nil {
		return wire.Label{}, e.fail(KindCircuit, err)
	}
	q := a.Modulus()
	if q == 0 {
		return wire.Label{}, e.fail(KindCircuit,
			errors.Wrap(ErrUnknownWire, "multiplication input"))
	}
	gate := e.nextGate()
	t0 := gateTweak(gate, 0)
	t1 := gateTweak(gate, 1)

	table, err := e.receiveBlocks(circuit.Mul, 2*(int(q)-1))
	if err != nil {
		return wire.Label{}, err
	}
	e.stats.Gates[circuit.Mul]++

	var l, r wire.Label

	ca := a.Color()
	if ca == 0 {
		l = a.HashBack(t0, q)
	} else {
		block := table[ca-1]
		block.Xor(a.Hash(t0))
		l = wire.FromBlock(block, q)
	}

	cb := b.Color()
	if cb == 0 {
		r = b.HashBack(t1, q)
	} else {
		block := table[int(q)-1+int(cb)-1]
		block.Xor(b.Hash(t1))
		r = wire.FromBlock(block, q)
	}

	return add(add(l, r), a.Cmul(cb)), nil
}

// Output implements Engine.Output.
func (e *Evaluator) Output(a wire.Label) error {
	if err := e.checkGate(); err != nil {
		return err
	}
	if a.Modulus() == 0 {
		return e.fail(KindCircuit, errors.Wrap(ErrUnknownWire, "output"))
	}
	e.outputs = append(e.outputs, a)
	e.stats.Gates[circuit.Output]++
	return nil
}

// ReceiveDecodingTable receives the output decoding table. No gate
// operations are accepted after it.
func (e *Evaluator) ReceiveDecodingTable() error {
	if err := e.checkGate(); err != nil {
		return err
	}
	n, err := e.conn.ReceiveUint32()
	if err != nil {
		return e.fail(KindIO, err)
	}
	if n != len(e.outputs) {
		return e.fail(KindEvaluator,
			errors.Wrapf(ErrProtocol, "got %d decoding entries, expected %d",
				n, len(e.outputs)))
	}
	decoding := make([][]ot.Label, len(e.outputs))
	for i, out := range e.outputs {
		decoding[i], err = e.receiveBlocks(circuit.Output, int(out.Modulus()))
		if err != nil {
			return err
		}
	}
	e.decoding = decoding
	e.final = true
	return nil
}

// DecodeOutput decodes the output idx. The decoding table must have
// been received.
func (e *Evaluator) DecodeOutput(idx int) (uint16, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	if e.decoding == nil {
		return 0, e.fail(KindCircuit, ErrNoDecodingTable)
	}
	if idx < 0 || idx >= len(e.outputs) {
		return 0, e.fail(KindCircuit,
			errors.Wrapf(ErrUnknownWire, "output %d", idx))
	}
	l := e.outputs[idx]
	for k := uint16(0); int(k) < len(e.decoding[idx]); k++ {
		if l.Hash(outputTweak(idx, k)).Equal(e.decoding[idx][k]) {
			return k, nil
		}
	}
	return 0, e.fail(KindCircuit,
		errors.Wrapf(ErrDecodeMiss, "output %d", idx))
}

// DecodeOutputs decodes all outputs in the order they were
// registered.
func (e *Evaluator) DecodeOutputs() ([]uint16, error) {
	result := make([]uint16, len(e.outputs))
	for i := range e.outputs {
		v, err := e.DecodeOutput(i)
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

// Reveal decodes the output idx and sends its value to the garbler.
func (e *Evaluator) Reveal(idx int) (uint16, error) {
	v, err := e.reveal(idx)
	if err != nil {
		return 0, err
	}
	return v, e.flush()
}

func (e *Evaluator) reveal(idx int) (uint16, error) {
	v, err := e.DecodeOutput(idx)
	if err != nil {
		return 0, err
	}
	if err := e.conn.SendUint32(int(v)); err != nil {
		return 0, e.fail(KindIO, err)
	}
	return v, nil
}

// RevealOutputs decodes all outputs and sends their values to the
// garbler.
func (e *Evaluator) RevealOutputs() ([]uint16, error) {
	result := make([]uint16, len(e.outputs))
	for i := range e.outputs {
		v, err := e.reveal(i)
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	if err := e.flush(); err != nil {
		return nil, err
	}
	return result, nil
}

// ProcessGate evaluates the gate. Non-linear gates and constants read
// their garbled tables from the garbler.
func (e *Evaluator) ProcessGate(gate circuit.Gate) error {
	return e.processGate(e, gate)
}

// Run runs the evaluator side of the protocol for the circuit with
// the evaluator's input values and returns the decoded outputs.
func (e *Evaluator) Run(circ *circuit.Circuit, inputs []uint16) (
	[]uint16, error) {

	timing := NewTiming()

	if _, err := circ.Moduli(); err != nil {
		return nil, e.fail(KindCircuit, err)
	}
	if len(inputs) != len(circ.EvaluatorInputs) {
		return nil, e.fail(KindCircuit, errors.Wrapf(ErrInputRange,
			"got %d inputs, expected %d",
			len(inputs), len(circ.EvaluatorInputs)))
	}
	e.verbosef(" - Circuit: %s\n", circ)

	ioStats := e.ioStats()
	e.verbosef(" - Receiving inputs...\n")
	if err := e.ReceiveInputs(circ); err != nil {
		return nil, err
	}
	xfer := e.ioStats().Sub(ioStats)
	timing.Sample("Inputs", []string{FileSize(xfer.Sum()).String()})

	ioStats = e.ioStats()
	var wires []circuit.Wire
	for i := range circ.EvaluatorInputs {
		wires = append(wires, circ.EvaluatorInputWire(i))
	}
	_, err := e.ReceiveMany(wires, circ.EvaluatorInputs, inputs)
	if err != nil {
		return nil, err
	}
	xfer = e.ioStats().Sub(ioStats)
	timing.Sample("OT", []string{FileSize(xfer.Sum()).String()})

	ioStats = e.ioStats()
	e.verbosef(" - Evaluating %d gates...\n", len(circ.Gates))
	for _, gate := range circ.Gates {
		if err := e.ProcessGate(gate); err != nil {
			return nil, err
		}
	}
	if err := e.ReceiveDecodingTable(); err != nil {
		return nil, err
	}
	var result []uint16
	if e.cfg.Reveal {
		result, err = e.RevealOutputs()
	} else {
		result, err = e.DecodeOutputs()
	}
	if err != nil {
		return nil, err
	}
	xfer = e.ioStats().Sub(ioStats)
	timing.Sample("Eval", []string{FileSize(xfer.Sum()).String()})

	if e.cfg.Verbose {
		fmt.Printf(" - Stats: %s\n", e.stats)
		timing.Print(e.ioStats())
	}
	return result, nil
}
