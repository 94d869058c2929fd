//
// eval.go
//
// Copyright (c) 2019-2025 Markku Rossi
//
// All rights reserved.
//

package circuit

import (
	"github.com/cockroachdb/errors"
)

// Eval evaluates the circuit in the clear with the garbler and
// evaluator inputs and returns the output values in the order of the
// Output gates.
func (c *Circuit) Eval(garbler, evaluator []uint16) ([]uint16, error) {
	moduli, err := c.Moduli()
	if err != nil {
		return nil, err
	}
	if err := c.Check(garbler, evaluator); err != nil {
		return nil, err
	}
	values := make([]uint32, c.NumWires)
	for i, v := range garbler {
		values[i] = uint32(v)
	}
	for i, v := range evaluator {
		values[c.EvaluatorInputWire(i)] = uint32(v)
	}

	var result []uint16
	for idx, g := range c.Gates {
		var v uint32
		switch g.Op {
		case Const:
			v = uint32(g.Value)
		case Add:
			v = (values[g.Input0] + values[g.Input1]) % uint32(moduli[g.Output])
		case Sub:
			q := uint32(moduli[g.Output])
			v = (values[g.Input0] + q - values[g.Input1]) % q
		case Cmul:
			v = values[g.Input0] * uint32(g.Value) % uint32(moduli[g.Output])
		case Proj:
			v = uint32(g.Table[values[g.Input0]])
		case Mul:
			v = values[g.Input0] * values[g.Input1] % uint32(moduli[g.Output])
		case Output:
			result = append(result, uint16(values[g.Input0]))
			continue
		default:
			return nil, errors.Wrapf(ErrInvalidGate, "gate %d: %v", idx, g.Op)
		}
		values[g.Output] = v
	}
	return result, nil
}

// OutputModuli returns the moduli of the circuit outputs.
func (c *Circuit) OutputModuli() ([]uint16, error) {
	moduli, err := c.Moduli()
	if err != nil {
		return nil, err
	}
	var result []uint16
	for _, g := range c.Gates {
		if g.Op == Output {
			result = append(result, moduli[g.Input0])
		}
	}
	return result, nil
}
