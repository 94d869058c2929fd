//
// gc_test.go
//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package gc

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mixgc/circuit"
	"github.com/markkurossi/mixgc/env"
	"github.com/markkurossi/mixgc/ot"
	"github.com/markkurossi/mixgc/p2p"
	"github.com/markkurossi/mixgc/wire"
	"github.com/stretchr/testify/require"
)

func newCO() (ot.OT, error) {
	return ot.NewCO(rand.Reader), nil
}

func newRistretto() (ot.OT, error) {
	return ot.NewRistretto(), nil
}

var backends = map[string]func() (ot.OT, error){
	ot.NameCO:        newCO,
	ot.NameRistretto: newRistretto,
}

func library(t *testing.T, name string) *circuit.Circuit {
	circ, err := circuit.NewLibrary(name)
	require.NoError(t, err)
	return circ
}

func TestAnd(t *testing.T) {
	circ := library(t, "and")

	for name, newOT := range backends {
		for a := uint16(0); a < 2; a++ {
			for b := uint16(0); b < 2; b++ {
				out, err := Local(nil, nil, circ, []uint16{a}, []uint16{b},
					newOT)
				require.NoError(t, err, name)
				require.Equal(t, []uint16{a & b}, out,
					"%s: %d AND %d", name, a, b)
			}
		}
	}
}

func TestAddMod5(t *testing.T) {
	circ := library(t, "add5")

	out, err := Local(nil, nil, circ, []uint16{3}, []uint16{4}, newCO)
	require.NoError(t, err)
	require.Equal(t, []uint16{2}, out)
}

func TestLibrary(t *testing.T) {
	tests := []struct {
		name      string
		garbler   []uint16
		evaluator []uint16
	}{
		{"or", []uint16{0}, []uint16{1}},
		{"mul7", []uint16{6}, []uint16{5}},
		{"eq5", []uint16{3}, []uint16{3}},
		{"eq5", []uint16{3}, []uint16{2}},
		{"dot3", []uint16{1, 2, 3}, []uint16{4, 5, 6}},
		{"dot3", []uint16{10, 10, 10}, []uint16{10, 10, 10}},
	}
	for _, test := range tests {
		circ := library(t, test.name)
		expected, err := circ.Eval(test.garbler, test.evaluator)
		require.NoError(t, err)

		out, err := Local(nil, nil, circ, test.garbler, test.evaluator,
			newRistretto)
		require.NoError(t, err, test.name)
		require.Equal(t, expected, out, test.name)
	}
}

func TestArithmetic(t *testing.T) {
	for _, q := range []uint16{2, 3, 5, 7} {
		b := circuit.NewBuilder([]uint16{q}, []uint16{q})
		x := b.GarblerInput(0)
		y := b.EvaluatorInput(0)
		b.Output(b.Mul(x, y))
		b.Output(b.Sub(b.Cmul(x, 2), y))
		b.Output(b.Mod(b.Add(x, y), 2))

		tt := make([]uint16, q)
		for i := range tt {
			tt[i] = uint16(i*i) % 11
		}
		b.Output(b.Proj(y, 11, tt))
		b.Output(b.Add(b.Constant(1, q), x))
		circ, err := b.Build()
		require.NoError(t, err)

		for gv := uint16(0); gv < q; gv++ {
			for ev := uint16(0); ev < q; ev++ {
				expected, err := circ.Eval([]uint16{gv}, []uint16{ev})
				require.NoError(t, err)

				out, err := Local(nil, nil, circ, []uint16{gv}, []uint16{ev},
					newCO)
				require.NoError(t, err)
				require.Equal(t, expected, out, "q=%d: %d, %d", q, gv, ev)
			}
		}
	}
}

func TestNoEvaluatorInputs(t *testing.T) {
	b := circuit.NewBuilder([]uint16{13, 13}, nil)
	b.Output(b.Mul(b.GarblerInput(0), b.GarblerInput(1)))
	circ, err := b.Build()
	require.NoError(t, err)

	out, err := Local(nil, nil, circ, []uint16{12, 12}, nil, newCO)
	require.NoError(t, err)
	require.Equal(t, []uint16{1}, out)
}

func TestLinearGatesTableFree(t *testing.T) {
	conn := new(memConn)
	g, err := NewGarbler(nil, conn, nil)
	require.NoError(t, err)

	for _, q := range []uint16{2, 5, 17} {
		a, err := g.randLabel(q)
		require.NoError(t, err)
		b, err := g.randLabel(q)
		require.NoError(t, err)

		before := conn.w.Len()
		_, err = g.Add(a, b)
		require.NoError(t, err)
		_, err = g.Sub(a, b)
		require.NoError(t, err)
		_, err = g.Cmul(a, 3)
		require.NoError(t, err)
		require.Equal(t, before, conn.w.Len(), "q=%d", q)

		_, err = g.Mul(a, b)
		require.NoError(t, err)
		require.Equal(t, before+2*(int(q)-1)*16, conn.w.Len(), "q=%d", q)
	}

	circ := library(t, "dot3")
	_, garbled, err := Garble(nil, circ)
	require.NoError(t, err)

	// Constants and Mul gates carry tables, decoding table for the
	// outputs of moduli 11 and 2, and the output count.
	blocks := circ.Stats[circuit.Const] + circ.Stats[circuit.Mul]*2*10 +
		(11 - 1) + 11 + 2
	require.Equal(t, blocks*16+4, len(garbled.Data))
}

func TestStats(t *testing.T) {
	circ := library(t, "dot3")
	enc, garbled, err := Garble(nil, circ)
	require.NoError(t, err)

	in, err := enc.Encode([]uint16{1, 1, 1}, []uint16{1, 1, 1})
	require.NoError(t, err)
	out, err := garbled.Eval(in)
	require.NoError(t, err)
	require.Equal(t, []uint16{3, 1}, out)

	conn := new(memConn)
	g, err := NewGarbler(nil, conn, nil)
	require.NoError(t, err)
	for i, q := range append(circ.GarblerInputs, circ.EvaluatorInputs...) {
		zero, err := g.randLabel(q)
		require.NoError(t, err)
		g.setLabel(circuit.Wire(i), zero)
	}
	for _, gate := range circ.Gates {
		require.NoError(t, g.ProcessGate(gate))
	}
	stats := g.Stats()
	require.Equal(t, circ.Stats, stats.Gates)
	require.Zero(t, stats.Blocks[circuit.Add])
	require.Zero(t, stats.Blocks[circuit.Sub])
	require.Zero(t, stats.Blocks[circuit.Cmul])
	require.Equal(t, 3*2*10, stats.Blocks[circuit.Mul])
	require.Equal(t, 10, stats.Blocks[circuit.Proj])
	require.Equal(t, 1, stats.Blocks[circuit.Const])
}

// mockOT transfers both secrets in the clear. The sender records the
// offered pairs and never sees the receiver's selections.
type mockOT struct {
	io    ot.IO
	pairs []ot.Wire
}

func (m *mockOT) InitSender(io ot.IO) error {
	m.io = io
	return nil
}

func (m *mockOT) InitReceiver(io ot.IO) error {
	m.io = io
	return nil
}

func (m *mockOT) Send(wires []ot.Wire) error {
	var data ot.LabelData
	for _, w := range wires {
		m.pairs = append(m.pairs, w)
		if err := m.io.SendData(w.L0.Bytes(&data)); err != nil {
			return err
		}
		if err := m.io.SendData(w.L1.Bytes(&data)); err != nil {
			return err
		}
	}
	return m.io.Flush()
}

func (m *mockOT) Receive(flags []bool, result []ot.Label) error {
	for i, flag := range flags {
		d0, err := m.io.ReceiveData()
		if err != nil {
			return err
		}
		d1, err := m.io.ReceiveData()
		if err != nil {
			return err
		}
		if flag {
			result[i].SetBytes(d1)
		} else {
			result[i].SetBytes(d0)
		}
	}
	return nil
}

func TestOTOblivious(t *testing.T) {
	circ := library(t, "add5")

	var seed [32]byte
	_, err := rand.Read(seed[:])
	require.NoError(t, err)

	var first []ot.Wire
	for v := uint16(0); v < 5; v++ {
		sender := new(mockOT)
		gcfg := &env.Config{
			Rand: bytes.NewReader(seed[:]),
		}
		out, err := runWithOT(gcfg, circ, []uint16{2}, []uint16{v},
			sender, new(mockOT))
		require.NoError(t, err)
		require.Equal(t, []uint16{(2 + v) % 5}, out)

		require.Len(t, sender.pairs, numBits(5))
		if first == nil {
			first = sender.pairs
		} else {
			require.Equal(t, first, sender.pairs, "selection %d", v)
		}
	}
}

// runWithOT runs the parties with the argument OT instances.
func runWithOT(gcfg *env.Config, circ *circuit.Circuit,
	garblerInputs, evaluatorInputs []uint16,
	sender, receiver ot.OT) ([]uint16, error) {

	gConn, eConn := p2p.Pipe()
	errc := make(chan error, 1)
	go func() {
		defer gConn.Close()
		g, err := NewGarbler(gcfg, gConn, sender)
		if err != nil {
			errc <- err
			return
		}
		errc <- g.Run(circ, garblerInputs)
	}()
	e, err := NewEvaluator(nil, eConn, receiver)
	if err != nil {
		return nil, err
	}
	out, err := e.Run(circ, evaluatorInputs)
	eConn.Close()
	if gerr := <-errc; gerr != nil {
		return nil, gerr
	}
	return out, err
}

func TestLocalCircuitLiteral(t *testing.T) {
	circ := &circuit.Circuit{
		NumWires:        3,
		GarblerInputs:   []uint16{5},
		EvaluatorInputs: []uint16{5},
		Gates: []circuit.Gate{
			{Op: circuit.Add, Input0: 0, Input1: 1, Output: 2},
			{Op: circuit.Output, Input0: 2},
		},
	}
	out, err := Local(nil, nil, circ, []uint16{1}, []uint16{1}, newCO)
	require.NoError(t, err)
	require.Equal(t, []uint16{2}, out)

	bad := &circuit.Circuit{
		NumWires:        2,
		GarblerInputs:   []uint16{5},
		EvaluatorInputs: []uint16{5},
		Gates: []circuit.Gate{
			{Op: circuit.Output, Input0: 7},
		},
	}
	_, err = Local(nil, nil, bad, []uint16{1}, []uint16{1}, newCO)
	require.True(t, errors.Is(err, ErrUnknownWire), "%v", err)
	require.Equal(t, KindCircuit, KindOf(err))
}

func TestReveal(t *testing.T) {
	circ := library(t, "dot3")
	cfg := &env.Config{
		Reveal: true,
	}
	garblerInputs := []uint16{1, 2, 3}
	evaluatorInputs := []uint16{4, 5, 6}
	expected, err := circ.Eval(garblerInputs, evaluatorInputs)
	require.NoError(t, err)

	gConn, eConn := p2p.Pipe()
	type result struct {
		revealed []uint16
		err      error
	}
	done := make(chan result, 1)
	go func() {
		defer gConn.Close()
		oti, _ := newCO()
		g, err := NewGarbler(cfg, gConn, oti)
		if err != nil {
			done <- result{err: err}
			return
		}
		err = g.Run(circ, garblerInputs)
		done <- result{
			revealed: g.Revealed(),
			err:      err,
		}
	}()
	oti, _ := newCO()
	e, err := NewEvaluator(cfg, eConn, oti)
	require.NoError(t, err)
	out, err := e.Run(circ, evaluatorInputs)
	require.NoError(t, err)
	eConn.Close()

	r := <-done
	require.NoError(t, r.err)
	require.Equal(t, expected, out)
	require.Equal(t, expected, r.revealed)
}

func TestRevealOrder(t *testing.T) {
	g, err := NewGarbler(nil, new(memConn), nil)
	require.NoError(t, err)

	_, err = g.Reveal(0)
	require.True(t, errors.Is(err, ErrProtocol), "%v", err)
	require.Equal(t, KindGarbler, KindOf(err))
	require.Nil(t, g.Revealed())
}

func TestRevealRange(t *testing.T) {
	conn := new(memConn)
	g, err := NewGarbler(nil, conn, nil)
	require.NoError(t, err)
	zero, err := g.randLabel(3)
	require.NoError(t, err)
	require.NoError(t, g.Output(zero))
	require.NoError(t, g.FinalizeOutputs())

	// The evaluator reveals 3 for a modulus 3 output.
	conn.r = bytes.NewReader([]byte{0, 0, 0, 3})

	_, err = g.Reveal(0)
	require.True(t, errors.Is(err, ErrProtocol), "%v", err)
	require.Equal(t, KindGarbler, KindOf(err))
}

func TestZeroModulusLabel(t *testing.T) {
	e, err := NewEvaluator(nil, new(memConn), nil)
	require.NoError(t, err)
	_, err = e.Proj(wire.Label{}, 2, nil)
	require.True(t, errors.Is(err, ErrUnknownWire), "%v", err)
	require.Equal(t, KindCircuit, KindOf(err))

	e, err = NewEvaluator(nil, new(memConn), nil)
	require.NoError(t, err)
	_, err = e.Mul(wire.Label{}, wire.Label{})
	require.True(t, errors.Is(err, ErrUnknownWire), "%v", err)
	require.Equal(t, KindCircuit, KindOf(err))
}

func TestDecodeBeforeTable(t *testing.T) {
	circ := library(t, "and")
	enc, garbled, err := Garble(nil, circ)
	require.NoError(t, err)

	in, err := enc.Encode([]uint16{1}, []uint16{1})
	require.NoError(t, err)

	e, err := NewEvaluator(nil, &memConn{
		r: bytes.NewReader(garbled.Data),
	}, nil)
	require.NoError(t, err)
	for i, l := range in {
		e.setLabel(circuit.Wire(i), l)
	}
	for _, gate := range circ.Gates {
		require.NoError(t, e.ProcessGate(gate))
	}
	_, err = e.DecodeOutput(0)
	require.True(t, errors.Is(err, ErrNoDecodingTable), "%v", err)
	require.Equal(t, KindCircuit, KindOf(err))

	err = e.ReceiveDecodingTable()
	require.True(t, errors.Is(err, ErrSessionFailed), "%v", err)
	require.Equal(t, KindCircuit, KindOf(err))
}

func TestDecodeMiss(t *testing.T) {
	circ := library(t, "add5")
	_, garbled, err := Garble(nil, circ)
	require.NoError(t, err)

	var in []wire.Label
	for i := 0; i < 2; i++ {
		l, err := wire.Rand(rand.Reader, 5)
		require.NoError(t, err)
		in = append(in, l)
	}
	_, err = garbled.Eval(in)
	require.True(t, errors.Is(err, ErrDecodeMiss), "%v", err)
	require.Equal(t, KindCircuit, KindOf(err))
}

func TestEncodingIdempotent(t *testing.T) {
	g, err := NewGarbler(nil, new(memConn), nil)
	require.NoError(t, err)

	l0, err := g.EncodeInput(0, 5, 3)
	require.NoError(t, err)
	l1, err := g.EncodeInput(0, 5, 3)
	require.NoError(t, err)
	require.True(t, l0.Equal(l1))

	l2, err := g.Encoding(0, 3)
	require.NoError(t, err)
	require.True(t, l0.Equal(l2))

	l3, err := g.Encoding(0, 4)
	require.NoError(t, err)
	require.False(t, l0.Equal(l3))

	fresh, err := NewGarbler(nil, new(memConn), nil)
	require.NoError(t, err)
	l4, err := fresh.EncodeInput(0, 5, 3)
	require.NoError(t, err)
	require.False(t, l0.Equal(l4))

	_, err = g.EncodeInput(0, 7, 3)
	require.True(t, errors.Is(err, ErrModulusMismatch), "%v", err)
}

func TestModulusMismatch(t *testing.T) {
	g, err := NewGarbler(nil, new(memConn), nil)
	require.NoError(t, err)

	a, err := g.randLabel(3)
	require.NoError(t, err)
	b, err := g.randLabel(5)
	require.NoError(t, err)

	_, err = g.Mul(a, b)
	require.True(t, errors.Is(err, ErrModulusMismatch), "%v", err)
	require.Equal(t, KindCircuit, KindOf(err))

	_, err = g.Add(a, a)
	require.True(t, errors.Is(err, ErrSessionFailed), "%v", err)
	require.Equal(t, KindCircuit, KindOf(err))

	e, err := NewEvaluator(nil, new(memConn), nil)
	require.NoError(t, err)
	_, err = e.Add(a, b)
	require.True(t, errors.Is(err, ErrModulusMismatch), "%v", err)
}

func TestUnknownWire(t *testing.T) {
	g, err := NewGarbler(nil, new(memConn), nil)
	require.NoError(t, err)

	err = g.ProcessGate(circuit.Gate{
		Op:     circuit.Add,
		Input0: 0,
		Input1: 1,
		Output: 2,
	})
	require.True(t, errors.Is(err, ErrUnknownWire), "%v", err)
	require.Equal(t, KindCircuit, KindOf(err))
}

func TestFinalized(t *testing.T) {
	g, err := NewGarbler(nil, new(memConn), nil)
	require.NoError(t, err)
	require.NoError(t, g.FinalizeOutputs())

	_, err = g.Constant(1, 2)
	require.True(t, errors.Is(err, ErrFinalized), "%v", err)
	require.Equal(t, KindGarbler, KindOf(err))
}

type failConn struct {
	memConn
}

var errBroken = errors.New("broken pipe")

func (c *failConn) SendLabel(val ot.Label, data *ot.LabelData) error {
	return errBroken
}

func TestIOError(t *testing.T) {
	g, err := NewGarbler(nil, new(failConn), nil)
	require.NoError(t, err)

	_, err = g.Constant(1, 2)
	require.True(t, errors.Is(err, errBroken), "%v", err)
	require.Equal(t, KindIO, KindOf(err))

	err = g.FinalizeOutputs()
	require.True(t, errors.Is(err, ErrSessionFailed), "%v", err)
	require.Equal(t, KindIO, KindOf(err))
}

func TestOTError(t *testing.T) {
	g, err := NewGarbler(nil, new(memConn), nil)
	require.NoError(t, err)

	err = g.SendEvaluatorInputs([]circuit.Wire{0}, []uint16{2})
	require.Error(t, err)
	require.Equal(t, KindOT, KindOf(err))
}

func TestInputRange(t *testing.T) {
	circ := library(t, "add5")
	_, err := Local(nil, nil, circ, []uint16{5}, []uint16{0}, newCO)
	require.True(t, errors.Is(err, ErrInputRange), "%v", err)
}

func TestKind(t *testing.T) {
	err := &Error{
		Kind: KindOT,
		Err:  errBroken,
	}
	require.Equal(t, KindOT, KindOf(errors.Wrap(err, "wrapped")))
	require.Equal(t, KindNone, KindOf(errBroken))
	require.Equal(t, "gc: OT error: broken pipe", err.Error())
	require.Equal(t, "circuit", KindCircuit.String())
}

func TestStaticMarshal(t *testing.T) {
	circ := library(t, "eq5")
	enc, garbled, err := Garble(nil, circ)
	require.NoError(t, err)

	data, err := garbled.MarshalBinary()
	require.NoError(t, err)

	parsed := new(GarbledCircuit)
	require.NoError(t, parsed.UnmarshalBinary(data))

	for v := uint16(0); v < 5; v++ {
		in, err := enc.Encode([]uint16{2}, []uint16{v})
		require.NoError(t, err)
		out, err := parsed.Eval(in)
		require.NoError(t, err)

		var expected uint16
		if v == 2 {
			expected = 1
		}
		require.Equal(t, []uint16{expected}, out)
	}
}

func BenchmarkMul5(b *testing.B) {
	g, err := NewGarbler(nil, new(memConn), nil)
	if err != nil {
		b.Fatal(err)
	}
	x, err := g.randLabel(5)
	if err != nil {
		b.Fatal(err)
	}
	y, err := g.randLabel(5)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := g.Mul(x, y); err != nil {
			b.Fatal(err)
		}
	}
}
