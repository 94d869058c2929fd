//
// builder.go
//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package circuit

import (
	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mixgc/wire"
)

// Builder constructs circuits gate by gate. Construction errors are
// sticky: the first error is reported by Build and the gate functions
// return an invalid wire after it.
type Builder struct {
	circ   *Circuit
	moduli []uint16
	err    error
}

// NewBuilder creates a new builder for a circuit with the argument
// garbler and evaluator input moduli.
func NewBuilder(garbler, evaluator []uint16) *Builder {
	b := &Builder{
		circ: &Circuit{
			GarblerInputs:   append([]uint16(nil), garbler...),
			EvaluatorInputs: append([]uint16(nil), evaluator...),
		},
	}
	for _, inputs := range [][]uint16{garbler, evaluator} {
		for _, q := range inputs {
			if err := wire.CheckModulus(q); err != nil && b.err == nil {
				b.err = err
			}
			b.moduli = append(b.moduli, q)
		}
	}
	return b
}

// GarblerInput returns the wire of the garbler's input idx.
func (b *Builder) GarblerInput(idx int) Wire {
	if idx < 0 || idx >= len(b.circ.GarblerInputs) {
		b.fail(errors.Wrapf(ErrUnknownWire, "garbler input %d", idx))
		return 0
	}
	return Wire(idx)
}

// EvaluatorInput returns the wire of the evaluator's input idx.
func (b *Builder) EvaluatorInput(idx int) Wire {
	if idx < 0 || idx >= len(b.circ.EvaluatorInputs) {
		b.fail(errors.Wrapf(ErrUnknownWire, "evaluator input %d", idx))
		return 0
	}
	return b.circ.EvaluatorInputWire(idx)
}

// Modulus returns the modulus of the wire w.
func (b *Builder) Modulus(w Wire) uint16 {
	if int(w) >= len(b.moduli) {
		return 0
	}
	return b.moduli[w]
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) check(ws ...Wire) bool {
	if b.err != nil {
		return false
	}
	for _, w := range ws {
		if int(w) >= len(b.moduli) {
			b.fail(errors.Wrapf(ErrUnknownWire, "%v", w))
			return false
		}
	}
	return true
}

func (b *Builder) add(g Gate, q uint16) Wire {
	g.Output = Wire(len(b.moduli))
	b.moduli = append(b.moduli, q)
	b.circ.Gates = append(b.circ.Gates, g)
	return g.Output
}

func (b *Builder) binary(op Operation, x, y Wire) Wire {
	if !b.check(x, y) {
		return 0
	}
	if b.moduli[x] != b.moduli[y] {
		b.fail(errors.Wrapf(wire.ErrModulusMismatch, "%v %v %v", op, x, y))
		return 0
	}
	return b.add(Gate{
		Op:     op,
		Input0: x,
		Input1: y,
	}, b.moduli[x])
}

// Constant adds a constant value x with modulus q.
func (b *Builder) Constant(x, q uint16) Wire {
	if err := wire.CheckModulus(q); err != nil {
		b.fail(err)
		return 0
	}
	if x >= q {
		b.fail(errors.Wrapf(ErrInputRange, "constant %d mod %d", x, q))
		return 0
	}
	if !b.check() {
		return 0
	}
	return b.add(Gate{
		Op:    Const,
		Value: x,
		Mod:   q,
	}, q)
}

// Add adds x+y.
func (b *Builder) Add(x, y Wire) Wire {
	return b.binary(Add, x, y)
}

// Sub adds x-y.
func (b *Builder) Sub(x, y Wire) Wire {
	return b.binary(Sub, x, y)
}

// Mul adds x·y.
func (b *Builder) Mul(x, y Wire) Wire {
	return b.binary(Mul, x, y)
}

// Cmul adds c·x.
func (b *Builder) Cmul(x Wire, c uint16) Wire {
	if !b.check(x) {
		return 0
	}
	return b.add(Gate{
		Op:     Cmul,
		Input0: x,
		Value:  c,
	}, b.moduli[x])
}

// Proj adds a projection of x to modulus q with the truth table tt.
func (b *Builder) Proj(x Wire, q uint16, tt []uint16) Wire {
	if !b.check(x) {
		return 0
	}
	if err := wire.CheckModulus(q); err != nil {
		b.fail(err)
		return 0
	}
	if len(tt) != int(b.moduli[x]) {
		b.fail(errors.Wrapf(ErrTruthTable, "%d entries for modulus %d",
			len(tt), b.moduli[x]))
		return 0
	}
	for _, v := range tt {
		if v >= q {
			b.fail(errors.Wrapf(ErrTruthTable, "value %d for modulus %d",
				v, q))
			return 0
		}
	}
	return b.add(Gate{
		Op:     Proj,
		Input0: x,
		Mod:    q,
		Table:  append([]uint16(nil), tt...),
	}, q)
}

// Mod adds a conversion of x into modulus q, computing x mod q.
func (b *Builder) Mod(x Wire, q uint16) Wire {
	if !b.check(x) {
		return 0
	}
	tt := make([]uint16, b.moduli[x])
	for i := range tt {
		tt[i] = uint16(i % int(q))
	}
	return b.Proj(x, q, tt)
}

// Output marks x as a circuit output.
func (b *Builder) Output(x Wire) {
	if !b.check(x) {
		return
	}
	b.circ.Gates = append(b.circ.Gates, Gate{
		Op:     Output,
		Input0: x,
	})
}

// Xor adds the Boolean x XOR y.
func (b *Builder) Xor(x, y Wire) Wire {
	if !b.checkBool(x, y) {
		return 0
	}
	return b.Add(x, y)
}

// And adds the Boolean x AND y.
func (b *Builder) And(x, y Wire) Wire {
	if !b.checkBool(x, y) {
		return 0
	}
	return b.Mul(x, y)
}

// Or adds the Boolean x OR y as x XOR y XOR (x AND y).
func (b *Builder) Or(x, y Wire) Wire {
	if !b.checkBool(x, y) {
		return 0
	}
	return b.Xor(b.Xor(x, y), b.And(x, y))
}

// Not adds the Boolean NOT x.
func (b *Builder) Not(x Wire) Wire {
	if !b.checkBool(x) {
		return 0
	}
	return b.Xor(x, b.Constant(1, 2))
}

func (b *Builder) checkBool(ws ...Wire) bool {
	if !b.check(ws...) {
		return false
	}
	for _, w := range ws {
		if b.moduli[w] != 2 {
			b.fail(errors.Wrapf(wire.ErrModulusMismatch,
				"%v: Boolean operation on modulus %d", w, b.moduli[w]))
			return false
		}
	}
	return true
}

// Build returns the constructed and validated circuit.
func (b *Builder) Build() (*Circuit, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.circ.NumWires = len(b.moduli)
	if err := b.circ.Validate(); err != nil {
		return nil, err
	}
	return b.circ, nil
}
