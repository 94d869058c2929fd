//
// ristretto.go
//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//
// The Simplest OT over the ristretto255 prime-order group.

package ot

import (
	gr "github.com/bwesterb/go-ristretto"
	"github.com/cockroachdb/errors"
	"github.com/zeebo/blake3"
)

var (
	_ OT = &Ristretto{}
)

// Ristretto implements the Simplest OT protocol over ristretto255 as
// the OT interface.
type Ristretto struct {
	hash *blake3.Hasher
	io   IO
	role role
}

// NewRistretto creates a new ristretto255 OT implementing the OT
// interface.
func NewRistretto() *Ristretto {
	return &Ristretto{
		hash: blake3.New(),
	}
}

const ristrettoName = "ristretto255"

// InitSender initializes the OT sender.
func (r *Ristretto) InitSender(io IO) error {
	if r.role == roleReceiver {
		return ErrRole
	}
	r.io = io
	r.role = roleSender
	return sendGroup(io, ristrettoName)
}

// InitReceiver initializes the OT receiver.
func (r *Ristretto) InitReceiver(io IO) error {
	if r.role == roleSender {
		return ErrRole
	}
	r.io = io
	r.role = roleReceiver

	return expectGroup(io, ristrettoName)
}

func (r *Ristretto) receivePoint(p *gr.Point) error {
	data, err := r.io.ReceiveData()
	if err != nil {
		return err
	}
	if err := p.UnmarshalBinary(data); err != nil {
		return errors.Wrapf(ErrPoint, "%s: %v", ristrettoName, err)
	}
	return nil
}

// Send sends the wire labels with OT.
func (r *Ristretto) Send(wires []Wire) error {
	if r.role != roleSender {
		return ErrRole
	}

	// A = aG, T = aA
	var a gr.Scalar
	a.Rand()
	var A, T gr.Point
	A.ScalarMultBase(&a)
	T.ScalarMult(&A, &a)

	if err := r.io.SendData(A.Bytes()); err != nil {
		return err
	}
	if err := r.io.Flush(); err != nil {
		return err
	}

	pads := make([]Wire, len(wires))
	var B, K0, K1 gr.Point
	for i := 0; i < len(wires); i++ {
		if err := r.receivePoint(&B); err != nil {
			return err
		}
		// k0 = aB, k1 = a(B - A) = aB - aA
		K0.ScalarMult(&B, &a)
		K1.Sub(&K0, &T)

		pads[i].L0 = kdf(r.hash, K0.Bytes(), uint64(i))
		pads[i].L1 = kdf(r.hash, K1.Bytes(), uint64(i))
	}

	var labelData LabelData
	for i := 0; i < len(wires); i++ {
		if err := sendPair(r.io, pads[i], wires[i], &labelData); err != nil {
			return err
		}
	}
	return r.io.Flush()
}

// Receive receives the wire labels with OT based on the flag values.
func (r *Ristretto) Receive(flags []bool, result []Label) error {
	if r.role != roleReceiver {
		return ErrRole
	}
	if len(flags) != len(result) {
		return errors.Newf("ot: %d flags for %d results",
			len(flags), len(result))
	}

	var A gr.Point
	if err := r.receivePoint(&A); err != nil {
		return err
	}

	bs := make([]gr.Scalar, len(flags))
	var B gr.Point
	for i := 0; i < len(flags); i++ {
		bs[i].Rand()
		B.ScalarMultBase(&bs[i])
		if flags[i] {
			// B = A + bG
			B.Add(&A, &B)
		}
		if err := r.io.SendData(B.Bytes()); err != nil {
			return err
		}
	}
	if err := r.io.Flush(); err != nil {
		return err
	}

	var K gr.Point
	for i := 0; i < len(flags); i++ {
		K.ScalarMult(&A, &bs[i])
		pad := kdf(r.hash, K.Bytes(), uint64(i))
		var err error
		result[i], err = receivePair(r.io, pad, flags[i])
		if err != nil {
			return err
		}
	}
	return nil
}
