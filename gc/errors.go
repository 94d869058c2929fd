//
// errors.go
//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package gc

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mixgc/circuit"
	"github.com/markkurossi/mixgc/wire"
)

// Kind specifies the protocol phase that failed.
type Kind int

// Error kinds.
const (
	KindNone Kind = iota
	KindIO
	KindOT
	KindGarbler
	KindEvaluator
	KindCircuit
)

var kindNames = map[Kind]string{
	KindNone:      "none",
	KindIO:        "I/O",
	KindOT:        "OT",
	KindGarbler:   "garbler",
	KindEvaluator: "evaluator",
	KindCircuit:   "circuit",
}

func (k Kind) String() string {
	name, ok := kindNames[k]
	if ok {
		return name
	}
	return fmt.Sprintf("{Kind %d}", k)
}

// Error is the error type returned by the garbling engines. Every
// Error terminates the session that returned it.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gc: %s error: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the error err. It returns KindNone if
// err is not an engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

var (
	// ErrModulusMismatch is returned when the operand moduli of a
	// gate differ.
	ErrModulusMismatch = wire.ErrModulusMismatch

	// ErrUnknownWire is returned when a gate refers to a wire
	// without a label.
	ErrUnknownWire = circuit.ErrUnknownWire

	// ErrTruthTable is returned for malformed projection tables.
	ErrTruthTable = circuit.ErrTruthTable

	// ErrInputRange is returned for input values outside the wire
	// domain.
	ErrInputRange = circuit.ErrInputRange

	// ErrNoDecodingTable is returned when outputs are decoded before
	// the decoding table is received.
	ErrNoDecodingTable = errors.New("gc: decoding table not received")

	// ErrDecodeMiss is returned when an output label matches no
	// decoding table entry.
	ErrDecodeMiss = errors.New("gc: output label not in decoding table")

	// ErrFinalized is returned for gate operations after the
	// outputs are finalized.
	ErrFinalized = errors.New("gc: outputs finalized")

	// ErrSessionFailed is returned for all operations after a session
	// has failed.
	ErrSessionFailed = errors.New("gc: session failed")

	// ErrProtocol is returned when the peer's messages do not follow
	// the protocol.
	ErrProtocol = errors.New("gc: protocol error")
)
