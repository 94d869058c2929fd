//
// io.go
//
// Copyright (c) 2023-2025 Markku Rossi
//
// All rights reserved.

package ot

import (
	"crypto/elliptic"
	"math/big"

	"github.com/cockroachdb/errors"
)

var (
	// ErrGroup is returned when the sender and the receiver use
	// different groups.
	ErrGroup = errors.New("ot: group mismatch")

	// ErrPoint is returned for peer points that are not valid group
	// elements.
	ErrPoint = errors.New("ot: invalid point")
)

// IO defines an I/O interface to communicate between peers.
type IO interface {
	// SendData sends binary data.
	SendData(val []byte) error

	// SendUint32 sends an uint32 value.
	SendUint32(val int) error

	// Flush flushed any pending data in the connection.
	Flush() error

	// ReceiveData receives binary data.
	ReceiveData() ([]byte, error)

	// ReceiveUint32 receives an uint32 value.
	ReceiveUint32() (int, error)
}

// sendGroup announces the sender's group to the receiver.
func sendGroup(io IO, name string) error {
	if err := io.SendData([]byte(name)); err != nil {
		return err
	}
	return io.Flush()
}

// expectGroup receives the sender's group and checks that it is the
// group name.
func expectGroup(io IO, name string) error {
	data, err := io.ReceiveData()
	if err != nil {
		return err
	}
	if string(data) != name {
		return errors.Wrapf(ErrGroup, "got %s, expected %s", data, name)
	}
	return nil
}

// sendPoint sends the affine coordinates of a curve point.
func sendPoint(io IO, x, y *big.Int) error {
	if err := io.SendData(x.Bytes()); err != nil {
		return err
	}
	return io.SendData(y.Bytes())
}

// receivePoint receives a curve point into x and y. The point must be
// on the curve.
func receivePoint(io IO, curve elliptic.Curve, x, y *big.Int) error {
	for _, coord := range []*big.Int{x, y} {
		data, err := io.ReceiveData()
		if err != nil {
			return err
		}
		coord.SetBytes(data)
	}
	if !curve.IsOnCurve(x, y) {
		return errors.Wrapf(ErrPoint, "not on %s", curve.Params().Name)
	}
	return nil
}

// sendPair encrypts the labels of the wire with the pads and sends
// the ciphertexts.
func sendPair(io IO, pads, w Wire, buf *LabelData) error {
	pads.L0.Xor(w.L0)
	if err := io.SendData(pads.L0.Bytes(buf)); err != nil {
		return err
	}
	pads.L1.Xor(w.L1)
	return io.SendData(pads.L1.Bytes(buf))
}

// receivePair receives the ciphertexts of a wire and decrypts the one
// selected by flag with pad.
func receivePair(io IO, pad Label, flag bool) (Label, error) {
	var e [2]Label
	for i := range e {
		data, err := io.ReceiveData()
		if err != nil {
			return Label{}, err
		}
		if len(data) != len(LabelData{}) {
			return Label{}, errors.Newf("ot: invalid ciphertext length %d",
				len(data))
		}
		e[i].SetBytes(data)
	}
	if flag {
		pad.Xor(e[1])
	} else {
		pad.Xor(e[0])
	}
	return pad, nil
}
