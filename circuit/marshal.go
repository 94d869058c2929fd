//
// Copyright (c) 2020-2025 Markku Rossi
//
// All rights reserved.
//

package circuit

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/fxamacker/cbor/v2"
)

const (
	// MAGIC is a magic number for the mixed-modulus circuit format
	// version 0.
	MAGIC = 0x6d786300 // mxc0
)

type gateMarshal struct {
	_      struct{} `cbor:",toarray"`
	Op     Operation
	Input0 Wire
	Input1 Wire
	Output Wire
	Value  uint16
	Mod    uint16
	Table  []uint16
}

type circuitMarshal struct {
	Magic           uint32        `cbor:"1,keyasint"`
	NumWires        int           `cbor:"2,keyasint"`
	GarblerInputs   []uint16      `cbor:"3,keyasint"`
	EvaluatorInputs []uint16      `cbor:"4,keyasint"`
	Gates           []gateMarshal `cbor:"5,keyasint"`
}

// MarshalBinary encodes the circuit in the CBOR circuit format.
func (c *Circuit) MarshalBinary() ([]byte, error) {
	cm := &circuitMarshal{
		Magic:           MAGIC,
		NumWires:        c.NumWires,
		GarblerInputs:   c.GarblerInputs,
		EvaluatorInputs: c.EvaluatorInputs,
		Gates:           make([]gateMarshal, 0, len(c.Gates)),
	}
	for _, g := range c.Gates {
		cm.Gates = append(cm.Gates, gateMarshal{
			Op:     g.Op,
			Input0: g.Input0,
			Input1: g.Input1,
			Output: g.Output,
			Value:  g.Value,
			Mod:    g.Mod,
			Table:  g.Table,
		})
	}
	return cbor.Marshal(cm)
}

// UnmarshalBinary decodes the circuit from the CBOR circuit format
// and validates it.
func (c *Circuit) UnmarshalBinary(data []byte) error {
	var cm circuitMarshal
	if err := cbor.Unmarshal(data, &cm); err != nil {
		return errors.Wrap(err, "circuit: decode")
	}
	if cm.Magic != MAGIC {
		return errors.Newf("circuit: invalid magic 0x%08x", cm.Magic)
	}
	c.NumWires = cm.NumWires
	c.GarblerInputs = cm.GarblerInputs
	c.EvaluatorInputs = cm.EvaluatorInputs
	c.Gates = make([]Gate, 0, len(cm.Gates))
	for _, g := range cm.Gates {
		c.Gates = append(c.Gates, Gate{
			Op:     g.Op,
			Input0: g.Input0,
			Input1: g.Input1,
			Output: g.Output,
			Value:  g.Value,
			Mod:    g.Mod,
			Table:  g.Table,
		})
	}
	return c.Validate()
}

// Marshal marshals circuit in the CBOR circuit format.
func (c *Circuit) Marshal(out io.Writer) error {
	data, err := c.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// Parse parses a circuit from the CBOR circuit format.
func Parse(in io.Reader) (*Circuit, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}
	circ := new(Circuit)
	if err := circ.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return circ, nil
}

// ParseFile parses the circuit file.
func ParseFile(name string) (*Circuit, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}
