//
// garbler.go
//
// Copyright (c) 2019-2025 Markku Rossi
//
// All rights reserved.
//

package gc

import (
	"fmt"
	"io"
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mixgc/circuit"
	"github.com/markkurossi/mixgc/env"
	"github.com/markkurossi/mixgc/ot"
	"github.com/markkurossi/mixgc/wire"
)

var (
	_ Engine = &Garbler{}
)

// Garbler implements the garbler engine. A Garbler evaluates one
// circuit and it must not be reused after its outputs are finalized
// or after it has returned an error.
type Garbler struct {
	session
	rand     io.Reader
	deltas   map[uint16]wire.Label
	revealed []uint16
}

// NewGarbler creates a new garbler session. The session labels are
// drawn from a PRG seeded from the configuration's entropy source.
// The oti is used as the OT sender for the evaluator's inputs.
func NewGarbler(cfg *env.Config, conn Conn, oti ot.OT) (*Garbler, error) {
	g := &Garbler{
		session: newSession(cfg, conn, oti, KindGarbler),
		deltas:  make(map[uint16]wire.Label),
	}
	prg, err := g.cfg.NewSessionRand()
	if err != nil {
		return nil, &Error{
			Kind: KindGarbler,
			Err:  err,
		}
	}
	g.rand = prg
	return g, nil
}

// delta returns the global offset for the modulus q.
func (g *Garbler) delta(q uint16) (wire.Label, error) {
	d, ok := g.deltas[q]
	if ok {
		return d, nil
	}
	if err := wire.CheckModulus(q); err != nil {
		return d, g.fail(KindCircuit, err)
	}
	d, err := wire.Delta(g.rand, q)
	if err != nil {
		return d, g.fail(KindGarbler, err)
	}
	g.deltas[q] = d
	return d, nil
}

func (g *Garbler) randLabel(q uint16) (wire.Label, error) {
	l, err := wire.Rand(g.rand, q)
	if err != nil {
		return l, g.fail(KindGarbler, err)
	}
	return l, nil
}

func (g *Garbler) encode(zero wire.Label, v uint16) (wire.Label, error) {
	q := zero.Modulus()
	if v >= q {
		return wire.Label{}, g.fail(KindCircuit,
			errors.Wrapf(ErrInputRange, "value %d for modulus %d", v, q))
	}
	d, err := g.delta(q)
	if err != nil {
		return wire.Label{}, err
	}
	return add(zero, d.Cmul(v)), nil
}

// Encoding returns the label of the value v on the wire w. The
// function does not send anything to the evaluator.
func (g *Garbler) Encoding(w circuit.Wire, v uint16) (wire.Label, error) {
	if err := g.check(); err != nil {
		return wire.Label{}, err
	}
	zero, err := g.label(w)
	if err != nil {
		return zero, err
	}
	return g.encode(zero, v)
}

// EncodeInput encodes the garbler's input value v of modulus q for
// the wire w and sends its label to the evaluator. Encoding the same
// value on the same wire again returns the same label.
func (g *Garbler) EncodeInput(w circuit.Wire, q, v uint16) (
	wire.Label, error) {

	if err := g.checkGate(); err != nil {
		return wire.Label{}, err
	}
	var zero wire.Label
	if int(w) < len(g.wires) && g.wires[w].Modulus() != 0 {
		zero = g.wires[w]
		if zero.Modulus() != q {
			return wire.Label{}, g.fail(KindCircuit,
				errors.Wrapf(ErrModulusMismatch, "%v: modulus %d, got %d",
					w, zero.Modulus(), q))
		}
	} else {
		if err := wire.CheckModulus(q); err != nil {
			return wire.Label{}, g.fail(KindCircuit, err)
		}
		var err error
		zero, err = g.randLabel(q)
		if err != nil {
			return zero, err
		}
	}
	l, err := g.encode(zero, v)
	if err != nil {
		return l, err
	}
	g.setLabel(w, zero)

	if err := g.conn.SendLabel(l.Block(), &g.buf); err != nil {
		return l, g.fail(KindIO, err)
	}
	g.stats.Inputs++
	return l, nil
}

// EncodeInputs encodes and sends the garbler's inputs of the circuit.
func (g *Garbler) EncodeInputs(circ *circuit.Circuit, values []uint16) error {
	if len(values) != len(circ.GarblerInputs) {
		return g.fail(KindCircuit, errors.Wrapf(ErrInputRange,
			"got %d inputs, expected %d",
			len(values), len(circ.GarblerInputs)))
	}
	for i, q := range circ.GarblerInputs {
		_, err := g.EncodeInput(circuit.Wire(i), q, values[i])
		if err != nil {
			return err
		}
	}
	return g.flush()
}

// numBits returns the number of bits needed for values in [0, q).
func numBits(q uint16) int {
	return bits.Len16(q - 1)
}

// SendEvaluatorInputs delivers the labels of the evaluator's input
// wires with oblivious transfer. The garbler offers both labels of
// each input bit. A modulus q > 2 input is transferred as
// numBits(q) bits of which the evaluator combines the wire label.
func (g *Garbler) SendEvaluatorInputs(wires []circuit.Wire,
	moduli []uint16) error {

	if err := g.checkGate(); err != nil {
		return err
	}
	if len(wires) != len(moduli) {
		return g.fail(KindCircuit,
			errors.Wrapf(ErrInputRange, "%d wires for %d moduli",
				len(wires), len(moduli)))
	}
	var pairs []ot.Wire
	for i, w := range wires {
		q := moduli[i]
		d, err := g.delta(q)
		if err != nil {
			return err
		}
		zero := wire.Zero(q)
		var pow uint16 = 1
		for j := 0; j < numBits(q); j++ {
			z, err := g.randLabel(q)
			if err != nil {
				return err
			}
			pairs = append(pairs, ot.Wire{
				L0: z.Block(),
				L1: add(z, d).Block(),
			})
			zero = add(zero, z.Cmul(pow))
			pow = mulMod(pow, 2, q)
		}
		g.setLabel(w, zero)
	}
	if len(pairs) == 0 {
		return nil
	}
	if g.ot == nil {
		return g.fail(KindOT, errors.New("no OT sender"))
	}
	if !g.otInit {
		if err := g.ot.InitSender(g.conn); err != nil {
			return g.fail(KindOT, err)
		}
		g.otInit = true
	}
	if err := g.ot.Send(pairs); err != nil {
		return g.fail(KindOT, err)
	}
	g.stats.OTs += len(pairs)
	return nil
}

// Constant implements Engine.Constant. The garbler sends the label of
// the value x to the evaluator.
func (g *Garbler) Constant(x, q uint16) (wire.Label, error) {
	if err := g.checkGate(); err != nil {
		return wire.Label{}, err
	}
	if err := wire.CheckModulus(q); err != nil {
		return wire.Label{}, g.fail(KindCircuit, err)
	}
	zero, err := g.randLabel(q)
	if err != nil {
		return zero, err
	}
	l, err := g.encode(zero, x)
	if err != nil {
		return l, err
	}
	if err := g.sendBlock(circuit.Const, l.Block()); err != nil {
		return l, err
	}
	g.stats.Gates[circuit.Const]++
	return zero, nil
}

// Add implements Engine.Add.
func (g *Garbler) Add(a, b wire.Label) (wire.Label, error) {
	return g.linear(circuit.Add, a, b)
}

// Sub implements Engine.Sub.
func (g *Garbler) Sub(a, b wire.Label) (wire.Label, error) {
	return g.linear(circuit.Sub, a, b)
}

func (g *Garbler) linear(op circuit.Operation, a, b wire.Label) (
	wire.Label, error) {

	if err := g.checkGate(); err != nil {
		return wire.Label{}, err
	}
	if err := checkBinary(a, b); err != nil {
		return wire.Label{}, g.fail(KindCircuit, err)
	}
	g.stats.Gates[op]++
	if op == circuit.Add {
		return add(a, b), nil
	}
	return sub(a, b), nil
}

// Cmul implements Engine.Cmul.
func (g *Garbler) Cmul(a wire.Label, c uint16) (wire.Label, error) {
	if err := g.checkGate(); err != nil {
		return wire.Label{}, err
	}
	g.stats.Gates[circuit.Cmul]++
	return a.Cmul(c), nil
}

// Proj implements Engine.Proj. The garbled table has one row for each
// non-zero color of the input label.
func (g *Garbler) Proj(a wire.Label, q uint16, tt []uint16) (
	wire.Label, error) {

	if err := g.checkGate(); err != nil {
		return wire.Label{}, err
	}
	qin := a.Modulus()
	if err := checkProj(qin, q, tt); err != nil {
		return wire.Label{}, g.fail(KindCircuit, err)
	}
	din, err := g.delta(qin)
	if err != nil {
		return wire.Label{}, err
	}
	dout, err := g.delta(q)
	if err != nil {
		return wire.Label{}, err
	}
	tweak := gateTweak(g.nextGate(), 0)

	// The input value x0 has color 0 and its output label is
	// implicit.
	x0 := (qin - a.Color()) % qin
	c := sub(add(a, din.Cmul(x0)).HashBack(tweak, q), dout.Cmul(tt[x0]))

	table := make([]ot.Label, qin-1)
	ax := a
	for x := uint16(0); x < qin; x++ {
		if x > 0 {
			ax = add(ax, din)
		}
		color := ax.Color()
		if color == 0 {
			continue
		}
		row := ax.Hash(tweak)
		row.Xor(add(c, dout.Cmul(tt[x])).Block())
		table[color-1] = row
	}
	for _, row := range table {
		if err := g.sendBlock(circuit.Proj, row); err != nil {
			return wire.Label{}, err
		}
	}
	g.stats.Gates[circuit.Proj]++
	return c, nil
}

// Mul implements Engine.Mul with generalized half gates. The garbler
// half has q-1 rows keyed by a's color and the evaluator half has q-1
// rows keyed by b's color. The labels must have the same modulus.
func (g *Garbler) Mul(a, b wire.Label) (wire.Label, error) {
	if err := g.checkGate(); err != nil {
		return wire.Label{}, err
	}
	if err := checkBinary(a, b); err != nil {
		return wire.Label{}, g.fail(KindCircuit, err)
	}
	q := a.Modulus()
	d, err := g.delta(q)
	if err != nil {
		return wire.Label{}, err
	}
	gate := g.nextGate()
	t0 := gateTweak(gate, 0)
	t1 := gateTweak(gate, 1)

	// r is the permute value of b, known only to the garbler.
	r := b.Color()

	alpha := (q - a.Color()) % q
	x := add(add(a, d.Cmul(alpha)).HashBack(t0, q), d.Cmul(mulMod(alpha, r, q)))

	beta := (q - r) % q
	y := add(b, d.Cmul(beta)).HashBack(t1, q)

	table := make([]ot.Label, 2*(int(q)-1))

	av := a
	for v := uint16(0); v < q; v++ {
		if v > 0 {
			av = add(av, d)
		}
		color := av.Color()
		if color == 0 {
			continue
		}
		row := av.Hash(t0)
		row.Xor(sub(x, d.Cmul(mulMod(v, r, q))).Block())
		table[color-1] = row
	}
	bv := b
	for v := uint16(0); v < q; v++ {
		if v > 0 {
			bv = add(bv, d)
		}
		color := bv.Color()
		if color == 0 {
			continue
		}
		row := bv.Hash(t1)
		row.Xor(sub(y, a.Cmul(addMod(v, r, q))).Block())
		table[int(q)-1+int(color)-1] = row
	}
	for _, row := range table {
		if err := g.sendBlock(circuit.Mul, row); err != nil {
			return wire.Label{}, err
		}
	}
	g.stats.Gates[circuit.Mul]++
	return add(x, y), nil
}

// Output implements Engine.Output.
func (g *Garbler) Output(a wire.Label) error {
	if err := g.checkGate(); err != nil {
		return err
	}
	if a.Modulus() == 0 {
		return g.fail(KindCircuit, errors.Wrap(ErrUnknownWire, "output"))
	}
	g.outputs = append(g.outputs, a)
	g.stats.Gates[circuit.Output]++
	return nil
}

// FinalizeOutputs sends the decoding table of the registered outputs.
// This is the last message of the protocol and the garbler accepts no
// gate operations after it.
func (g *Garbler) FinalizeOutputs() error {
	if err := g.checkGate(); err != nil {
		return err
	}
	if err := g.conn.SendUint32(len(g.outputs)); err != nil {
		return g.fail(KindIO, err)
	}
	for i, zero := range g.outputs {
		q := zero.Modulus()
		d, err := g.delta(q)
		if err != nil {
			return err
		}
		l := zero
		for k := uint16(0); k < q; k++ {
			if k > 0 {
				l = add(l, d)
			}
			err := g.sendBlock(circuit.Output, l.Hash(outputTweak(i, k)))
			if err != nil {
				return err
			}
		}
	}
	if err := g.flush(); err != nil {
		return err
	}
	g.final = true
	return nil
}

// Reveal receives the value of the output idx from the evaluator.
// The outputs must be finalized and the evaluator must reveal the
// outputs in the same order.
func (g *Garbler) Reveal(idx int) (uint16, error) {
	if err := g.check(); err != nil {
		return 0, err
	}
	if !g.final {
		return 0, g.fail(KindGarbler,
			errors.Wrap(ErrProtocol, "reveal before outputs are finalized"))
	}
	if idx < 0 || idx >= len(g.outputs) {
		return 0, g.fail(KindCircuit,
			errors.Wrapf(ErrUnknownWire, "output %d", idx))
	}
	v, err := g.conn.ReceiveUint32()
	if err != nil {
		return 0, g.fail(KindIO, err)
	}
	q := g.outputs[idx].Modulus()
	if v < 0 || v >= int(q) {
		return 0, g.fail(KindGarbler,
			errors.Wrapf(ErrProtocol, "output %d: value %d for modulus %d",
				idx, v, q))
	}
	return uint16(v), nil
}

// RevealOutputs receives the values of all outputs from the
// evaluator.
func (g *Garbler) RevealOutputs() ([]uint16, error) {
	result := make([]uint16, len(g.outputs))
	for i := range g.outputs {
		v, err := g.Reveal(i)
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

// Revealed returns the outputs the evaluator revealed during Run. It
// returns nil unless the configuration enables Reveal.
func (g *Garbler) Revealed() []uint16 {
	return g.revealed
}

// ProcessGate garbles the gate. Non-linear gates and constants send
// their garbled tables to the evaluator.
func (g *Garbler) ProcessGate(gate circuit.Gate) error {
	return g.processGate(g, gate)
}

// Run runs the garbler side of the protocol for the circuit with the
// garbler's input values.
func (g *Garbler) Run(circ *circuit.Circuit, inputs []uint16) error {
	timing := NewTiming()

	if _, err := circ.Moduli(); err != nil {
		return g.fail(KindCircuit, err)
	}
	g.verbosef(" - Circuit: %s\n", circ)

	ioStats := g.ioStats()
	g.verbosef(" - Sending inputs...\n")
	if err := g.EncodeInputs(circ, inputs); err != nil {
		return err
	}
	xfer := g.ioStats().Sub(ioStats)
	timing.Sample("Inputs", []string{FileSize(xfer.Sum()).String()})

	ioStats = g.ioStats()
	var wires []circuit.Wire
	for i := range circ.EvaluatorInputs {
		wires = append(wires, circ.EvaluatorInputWire(i))
	}
	if err := g.SendEvaluatorInputs(wires, circ.EvaluatorInputs); err != nil {
		return err
	}
	xfer = g.ioStats().Sub(ioStats)
	timing.Sample("OT", []string{FileSize(xfer.Sum()).String()})

	ioStats = g.ioStats()
	g.verbosef(" - Garbling %d gates...\n", len(circ.Gates))
	for _, gate := range circ.Gates {
		if err := g.ProcessGate(gate); err != nil {
			return err
		}
	}
	if err := g.FinalizeOutputs(); err != nil {
		return err
	}
	xfer = g.ioStats().Sub(ioStats)
	timing.Sample("Garble", []string{FileSize(xfer.Sum()).String()})

	if g.cfg.Reveal {
		ioStats = g.ioStats()
		revealed, err := g.RevealOutputs()
		if err != nil {
			return err
		}
		g.revealed = revealed
		xfer = g.ioStats().Sub(ioStats)
		timing.Sample("Reveal", []string{FileSize(xfer.Sum()).String()})
	}

	if g.cfg.Verbose {
		fmt.Printf(" - Stats: %s\n", g.stats)
		timing.Print(g.ioStats())
	}
	return nil
}
