//
// static.go
//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package gc

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/fxamacker/cbor/v2"
	"github.com/markkurossi/mixgc/circuit"
	"github.com/markkurossi/mixgc/env"
	"github.com/markkurossi/mixgc/ot"
	"github.com/markkurossi/mixgc/wire"
)

// memConn implements Conn over an in-memory byte stream. Sends
// append to w and receives consume r.
type memConn struct {
	w bytes.Buffer
	r *bytes.Reader
}

var (
	_  Conn = &memConn{}
	bo      = binary.BigEndian
)

func (c *memConn) SendData(val []byte) error {
	if err := c.SendUint32(len(val)); err != nil {
		return err
	}
	c.w.Write(val)
	return nil
}

func (c *memConn) SendUint32(val int) error {
	var buf [4]byte
	bo.PutUint32(buf[:], uint32(val))
	c.w.Write(buf[:])
	return nil
}

func (c *memConn) SendLabel(val ot.Label, data *ot.LabelData) error {
	c.w.Write(val.Bytes(data))
	return nil
}

func (c *memConn) Flush() error {
	return nil
}

func (c *memConn) ReceiveData() ([]byte, error) {
	n, err := c.ReceiveUint32()
	if err != nil {
		return nil, err
	}
	if n > c.r.Len() {
		return nil, io.ErrUnexpectedEOF
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *memConn) ReceiveUint32() (int, error) {
	var buf [4]byte
	if _, err := io.ReadFull(c.r, buf[:]); err != nil {
		return 0, err
	}
	return int(bo.Uint32(buf[:])), nil
}

func (c *memConn) ReceiveLabel(val *ot.Label, data *ot.LabelData) error {
	if _, err := io.ReadFull(c.r, data[:]); err != nil {
		return err
	}
	val.SetData(data)
	return nil
}

// Encoder encodes input values into wire labels of a statically
// garbled circuit. The Encoder holds the garbler's secrets and it
// must not be given to the evaluating party.
type Encoder struct {
	circ   *circuit.Circuit
	zeros  []wire.Label
	deltas map[uint16]wire.Label
}

// GarbledCircuit implements a garbled circuit that can be evaluated
// without interaction with the garbler.
type GarbledCircuit struct {
	Circuit *circuit.Circuit
	Data    []byte
}

// Garble garbles the circuit for non-interactive evaluation. It
// returns the input encoder and the garbled circuit.
func Garble(cfg *env.Config, circ *circuit.Circuit) (
	*Encoder, *GarbledCircuit, error) {

	moduli, err := circ.Moduli()
	if err != nil {
		return nil, nil, &Error{
			Kind: KindCircuit,
			Err:  err,
		}
	}
	conn := new(memConn)
	g, err := NewGarbler(cfg, conn, nil)
	if err != nil {
		return nil, nil, err
	}
	enc := &Encoder{
		circ:   circ,
		deltas: g.deltas,
	}
	numInputs := len(circ.GarblerInputs) + len(circ.EvaluatorInputs)
	for i := 0; i < numInputs; i++ {
		q := moduli[i]
		if _, err := g.delta(q); err != nil {
			return nil, nil, err
		}
		zero, err := g.randLabel(q)
		if err != nil {
			return nil, nil, err
		}
		g.setLabel(circuit.Wire(i), zero)
		enc.zeros = append(enc.zeros, zero)
	}
	for _, gate := range circ.Gates {
		if err := g.ProcessGate(gate); err != nil {
			return nil, nil, err
		}
	}
	if err := g.FinalizeOutputs(); err != nil {
		return nil, nil, err
	}
	return enc, &GarbledCircuit{
		Circuit: circ,
		Data:    conn.w.Bytes(),
	}, nil
}

// Encode returns the labels of the garbler and evaluator input
// values.
func (enc *Encoder) Encode(garbler, evaluator []uint16) ([]wire.Label, error) {
	if err := enc.circ.Check(garbler, evaluator); err != nil {
		return nil, &Error{
			Kind: KindCircuit,
			Err:  err,
		}
	}
	values := append(append([]uint16(nil), garbler...), evaluator...)
	result := make([]wire.Label, len(values))
	for i, v := range values {
		zero := enc.zeros[i]
		result[i] = add(zero, enc.deltas[zero.Modulus()].Cmul(v))
	}
	return result, nil
}

// Eval evaluates the garbled circuit with the encoded inputs and
// returns the decoded outputs.
func (garbled *GarbledCircuit) Eval(inputs []wire.Label) ([]uint16, error) {
	moduli, err := garbled.Circuit.Moduli()
	if err != nil {
		return nil, &Error{
			Kind: KindCircuit,
			Err:  err,
		}
	}
	numInputs := len(garbled.Circuit.GarblerInputs) +
		len(garbled.Circuit.EvaluatorInputs)
	if len(inputs) != numInputs {
		return nil, &Error{
			Kind: KindCircuit,
			Err: errors.Wrapf(ErrInputRange, "got %d inputs, expected %d",
				len(inputs), numInputs),
		}
	}
	e, err := NewEvaluator(nil, &memConn{
		r: bytes.NewReader(garbled.Data),
	}, nil)
	if err != nil {
		return nil, err
	}
	for i, l := range inputs {
		if l.Modulus() != moduli[i] {
			return nil, e.fail(KindCircuit,
				errors.Wrapf(ErrModulusMismatch, "input %d", i))
		}
		e.setLabel(circuit.Wire(i), l)
	}
	for _, gate := range garbled.Circuit.Gates {
		if err := e.ProcessGate(gate); err != nil {
			return nil, err
		}
	}
	if err := e.ReceiveDecodingTable(); err != nil {
		return nil, err
	}
	return e.DecodeOutputs()
}

type garbledMarshal struct {
	Circuit []byte `cbor:"1,keyasint"`
	Data    []byte `cbor:"2,keyasint"`
}

// MarshalBinary encodes the garbled circuit in CBOR.
func (garbled *GarbledCircuit) MarshalBinary() ([]byte, error) {
	circ, err := garbled.Circuit.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(&garbledMarshal{
		Circuit: circ,
		Data:    garbled.Data,
	})
}

// UnmarshalBinary decodes the garbled circuit from CBOR.
func (garbled *GarbledCircuit) UnmarshalBinary(data []byte) error {
	var gm garbledMarshal
	if err := cbor.Unmarshal(data, &gm); err != nil {
		return errors.Wrap(err, "gc: decode garbled circuit")
	}
	circ := new(circuit.Circuit)
	if err := circ.UnmarshalBinary(gm.Circuit); err != nil {
		return err
	}
	garbled.Circuit = circ
	garbled.Data = gm.Data
	return nil
}
