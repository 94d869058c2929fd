//
// Copyright (c) 2019-2025 Markku Rossi
//
// All rights reserved.
//

// Package circuit implements circuits with mixed-modulus wires.
package circuit

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mixgc/wire"
	"github.com/markkurossi/text/superscript"
)

var (
	// ErrUnknownWire is returned when a gate refers to a wire that
	// has no value at that point of the circuit.
	ErrUnknownWire = errors.New("circuit: unknown wire")

	// ErrTruthTable is returned for malformed projection tables.
	ErrTruthTable = errors.New("circuit: invalid truth table")

	// ErrInputRange is returned for input values outside the wire
	// domain.
	ErrInputRange = errors.New("circuit: input out of range")

	// ErrInvalidGate is returned for unknown gate operations and
	// gates redefining wires.
	ErrInvalidGate = errors.New("circuit: invalid gate")
)

// Operation specifies gate function.
type Operation byte

// Gate functions.
const (
	Const Operation = iota
	Add
	Sub
	Cmul
	Proj
	Mul
	Output
)

// Stats holds statistics about circuit operations.
type Stats [Output + 1]int

func (op Operation) String() string {
	switch op {
	case Const:
		return "CONST"
	case Add:
		return "ADD"
	case Sub:
		return "SUB"
	case Cmul:
		return "CMUL"
	case Proj:
		return "PROJ"
	case Mul:
		return "MUL"
	case Output:
		return "OUTPUT"
	default:
		return fmt.Sprintf("{Operation %d}", op)
	}
}

// Linear tests if the operation is computed without a garbled table.
func (op Operation) Linear() bool {
	switch op {
	case Add, Sub, Cmul:
		return true
	default:
		return false
	}
}

// Wire specifies a wire ID.
type Wire uint32

// ID returns the wire ID as integer.
func (w Wire) ID() int {
	return int(w)
}

func (w Wire) String() string {
	return fmt.Sprintf("w%d", w)
}

// Gate specifies a circuit gate. The Value is the constant of Const
// and Cmul gates. The Mod is the output modulus of Const and Proj
// gates. The Table is the truth table of Proj gates.
type Gate struct {
	Op     Operation
	Input0 Wire
	Input1 Wire
	Output Wire
	Value  uint16
	Mod    uint16
	Table  []uint16
}

// Inputs returns gate input wires.
func (g Gate) Inputs() []Wire {
	switch g.Op {
	case Add, Sub, Mul:
		return []Wire{g.Input0, g.Input1}
	case Cmul, Proj, Output:
		return []Wire{g.Input0}
	default:
		return nil
	}
}

func (g Gate) String() string {
	switch g.Op {
	case Const:
		return fmt.Sprintf("%d%s %v %v",
			g.Value, superscript.Itoa(int(g.Mod)), g.Op, g.Output)
	case Cmul:
		return fmt.Sprintf("%v %d %v %v", g.Input0, g.Value, g.Op, g.Output)
	case Proj:
		return fmt.Sprintf("%v %v%s %v %v",
			g.Input0, g.Table, superscript.Itoa(int(g.Mod)), g.Op, g.Output)
	case Output:
		return fmt.Sprintf("%v %v", g.Input0, g.Op)
	default:
		return fmt.Sprintf("%v %v %v", g.Inputs(), g.Op, g.Output)
	}
}

// Circuit specifies a mixed-modulus circuit. The wires
// 0...len(GarblerInputs)-1 are the garbler's inputs and the following
// len(EvaluatorInputs) wires are the evaluator's inputs. The input
// slices hold the input wire moduli. Gates are in topological order
// and each gate output is a fresh wire. Moduli and Validate may be
// called concurrently but the exported fields must not be modified
// while the circuit is in use.
type Circuit struct {
	NumWires        int
	GarblerInputs   []uint16
	EvaluatorInputs []uint16
	Gates           []Gate
	Stats           Stats

	m      sync.Mutex
	moduli []uint16
}

func (c *Circuit) String() string {
	var stats string

	for k := Const; k <= Output; k++ {
		v := c.Stats[k]
		if len(stats) > 0 {
			stats += " "
		}
		stats += fmt.Sprintf("%s=%d", k, v)
	}
	return fmt.Sprintf("#gates=%d (%s) #w=%d #g=%d #e=%d",
		len(c.Gates), stats, c.NumWires,
		len(c.GarblerInputs), len(c.EvaluatorInputs))
}

// Dump prints a debug dump of the circuit.
func (c *Circuit) Dump() {
	fmt.Printf("circuit %s\n", c)
	for id, gate := range c.Gates {
		fmt.Printf("%04d\t%s\n", id, gate)
	}
}

// Cost computes the number of garbled table blocks the circuit
// produces.
func (c *Circuit) Cost() int {
	moduli, err := c.Moduli()
	if err != nil {
		return 0
	}
	var cost int
	for _, g := range c.Gates {
		switch g.Op {
		case Const:
			cost++
		case Proj:
			cost += int(moduli[g.Input0]) - 1
		case Mul:
			cost += 2 * (int(moduli[g.Input0]) - 1)
		}
	}
	return cost
}

// EvaluatorInputWire returns the wire of the evaluator's input idx.
func (c *Circuit) EvaluatorInputWire(idx int) Wire {
	return Wire(len(c.GarblerInputs) + idx)
}

// NumOutputs returns the number of circuit outputs.
func (c *Circuit) NumOutputs() int {
	return c.Stats[Output]
}

// Moduli returns the wire moduli. The function validates the circuit
// on its first call.
func (c *Circuit) Moduli() ([]uint16, error) {
	c.m.Lock()
	defer c.m.Unlock()

	if c.moduli == nil {
		if err := c.validate(); err != nil {
			return nil, err
		}
	}
	return c.moduli, nil
}

// Modulus returns the modulus of the wire w. The circuit must be
// valid.
func (c *Circuit) Modulus(w Wire) uint16 {
	moduli, err := c.Moduli()
	if err != nil || int(w) >= len(moduli) {
		return 0
	}
	return moduli[w]
}

// Validate checks that all gates refer to defined wires, that the
// operand moduli match, and that the truth tables are well-formed. It
// also recomputes the circuit statistics.
func (c *Circuit) Validate() error {
	c.m.Lock()
	defer c.m.Unlock()
	return c.validate()
}

func (c *Circuit) validate() error {
	c.moduli = nil
	if c.NumWires < len(c.GarblerInputs)+len(c.EvaluatorInputs) {
		return errors.Wrapf(ErrInvalidGate, "%d wires for %d inputs",
			c.NumWires, len(c.GarblerInputs)+len(c.EvaluatorInputs))
	}
	moduli := make([]uint16, c.NumWires)
	var next int
	for _, inputs := range [][]uint16{c.GarblerInputs, c.EvaluatorInputs} {
		for _, q := range inputs {
			if err := wire.CheckModulus(q); err != nil {
				return errors.Wrapf(err, "input %v", Wire(next))
			}
			moduli[next] = q
			next++
		}
	}

	input := func(idx int, w Wire) (uint16, error) {
		if int(w) >= len(moduli) || moduli[w] == 0 {
			return 0, errors.Wrapf(ErrUnknownWire, "gate %d: %v", idx, w)
		}
		return moduli[w], nil
	}

	var stats Stats
	for idx, g := range c.Gates {
		var q uint16
		switch g.Op {
		case Const:
			if err := wire.CheckModulus(g.Mod); err != nil {
				return errors.Wrapf(err, "gate %d", idx)
			}
			if g.Value >= g.Mod {
				return errors.Wrapf(ErrInputRange, "gate %d: constant %d%s",
					idx, g.Value, superscript.Itoa(int(g.Mod)))
			}
			q = g.Mod

		case Add, Sub, Mul:
			q0, err := input(idx, g.Input0)
			if err != nil {
				return err
			}
			q1, err := input(idx, g.Input1)
			if err != nil {
				return err
			}
			if q0 != q1 {
				return errors.Wrapf(wire.ErrModulusMismatch,
					"gate %d: %v %v%s %v%s",
					idx, g.Op, g.Input0, superscript.Itoa(int(q0)),
					g.Input1, superscript.Itoa(int(q1)))
			}
			q = q0

		case Cmul:
			q0, err := input(idx, g.Input0)
			if err != nil {
				return err
			}
			q = q0

		case Proj:
			q0, err := input(idx, g.Input0)
			if err != nil {
				return err
			}
			if err := wire.CheckModulus(g.Mod); err != nil {
				return errors.Wrapf(err, "gate %d", idx)
			}
			if len(g.Table) != int(q0) {
				return errors.Wrapf(ErrTruthTable,
					"gate %d: %d entries for modulus %d",
					idx, len(g.Table), q0)
			}
			for _, v := range g.Table {
				if v >= g.Mod {
					return errors.Wrapf(ErrTruthTable,
						"gate %d: value %d for modulus %d", idx, v, g.Mod)
				}
			}
			q = g.Mod

		case Output:
			if _, err := input(idx, g.Input0); err != nil {
				return err
			}
			stats[g.Op]++
			continue

		default:
			return errors.Wrapf(ErrInvalidGate, "gate %d: %v", idx, g.Op)
		}
		if int(g.Output) >= len(moduli) {
			return errors.Wrapf(ErrInvalidGate, "gate %d: output %v",
				idx, g.Output)
		}
		if moduli[g.Output] != 0 {
			return errors.Wrapf(ErrInvalidGate, "gate %d: redefines %v",
				idx, g.Output)
		}
		moduli[g.Output] = q
		stats[g.Op]++
	}
	c.Stats = stats
	c.moduli = moduli
	return nil
}

// Check verifies that the input values are in the domains of the
// input wires.
func (c *Circuit) Check(garbler, evaluator []uint16) error {
	check := func(name string, moduli, values []uint16) error {
		if len(values) != len(moduli) {
			return errors.Wrapf(ErrInputRange, "%s: got %d inputs, expected %d",
				name, len(values), len(moduli))
		}
		for i, v := range values {
			if v >= moduli[i] {
				return errors.Wrapf(ErrInputRange, "%s[%d]: %d%s",
					name, i, v, superscript.Itoa(int(moduli[i])))
			}
		}
		return nil
	}
	if err := check("garbler", c.GarblerInputs, garbler); err != nil {
		return err
	}
	return check("evaluator", c.EvaluatorInputs, evaluator)
}

// FormatValues formats the values with their moduli.
func FormatValues(values, moduli []uint16) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteRune(' ')
		}
		sb.WriteString(fmt.Sprintf("%d", v))
		if i < len(moduli) {
			sb.WriteString(superscript.Itoa(int(moduli[i])))
		}
	}
	return sb.String()
}
