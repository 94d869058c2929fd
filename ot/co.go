//
// co.go
//
// Copyright (c) 2019-2025 Markku Rossi
//
// All rights reserved.
//
// Chou Orlandi OT - The Simplest Protocol for Oblivious Transfer.
//  - https://eprint.iacr.org/2015/267.pdf

/*

This implementation is derived from the EMP Toolkit's co.h
(https://github.com/emp-toolkit/emp-ot/blob/master/emp-ot/co.h)
with original license as follows:

MIT License

Copyright (c) 2018 Xiao Wang (wangxiao1254@gmail.com)

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.

Enquiries about further applications and development opportunities are welcome.

*/

package ot

import (
	"crypto/elliptic"
	"crypto/rand"
	"io"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/zeebo/blake3"
)

var (
	_ OT = &CO{}

	// ErrRole is returned when an OT instance is used in a role it
	// was not initialized for.
	ErrRole = errors.New("ot: invalid role")
)

type role int

const (
	roleNone role = iota
	roleSender
	roleReceiver
)

// CO implements CO OT as the OT interface.
type CO struct {
	rand  io.Reader
	curve elliptic.Curve
	hash  *blake3.Hasher
	io    IO
	role  role
}

// NewCO creates a new CO OT implementing the OT interface. The rand
// is the source of the OT secrets.
func NewCO(rand io.Reader) *CO {
	return &CO{
		rand:  rand,
		curve: elliptic.P256(),
		hash:  blake3.New(),
	}
}

// InitSender initializes the OT sender.
func (co *CO) InitSender(io IO) error {
	if co.role == roleReceiver {
		return ErrRole
	}
	co.io = io
	co.role = roleSender
	return sendGroup(io, co.curve.Params().Name)
}

// InitReceiver initializes the OT receiver.
func (co *CO) InitReceiver(io IO) error {
	if co.role == roleSender {
		return ErrRole
	}
	co.io = io
	co.role = roleReceiver

	return expectGroup(io, co.curve.Params().Name)
}

// Send sends the wire labels with OT.
func (co *CO) Send(wires []Wire) error {
	if co.role != roleSender {
		return ErrRole
	}
	curveParams := co.curve.Params()

	// a <- Zp
	a, err := rand.Int(co.rand, curveParams.N)
	if err != nil {
		return err
	}
	aBytes := a.Bytes()

	// A = G^a
	Ax, Ay := co.curve.ScalarBaseMult(aBytes)

	if err := sendPoint(co.io, Ax, Ay); err != nil {
		return err
	}
	if err := co.io.Flush(); err != nil {
		return err
	}

	// Aa = A^a
	Aax, Aay := co.curve.ScalarMult(Ax, Ay, aBytes)

	// a:    {x,y}
	// a^-1: {x,-y}
	// AaInv = {Aax, -Aay}
	AaInvx := big.NewInt(0).Set(Aax)
	AaInvy := big.NewInt(0).Sub(curveParams.P, Aay)

	Bx := big.NewInt(0)
	By := big.NewInt(0)

	pads := make([]Wire, len(wires))
	for i := 0; i < len(wires); i++ {
		if err := receivePoint(co.io, co.curve, Bx, By); err != nil {
			return errors.Wrapf(err, "receiver point %d", i)
		}

		Kx, Ky := co.curve.ScalarMult(Bx, By, aBytes)
		Kax, Kay := co.curve.Add(Kx, Ky, AaInvx, AaInvy)

		pads[i].L0 = kdf(co.hash, pointBytes(Kx.Bytes(), Ky.Bytes()),
			uint64(i))
		pads[i].L1 = kdf(co.hash, pointBytes(Kax.Bytes(), Kay.Bytes()),
			uint64(i))
	}

	var labelData LabelData
	for i := 0; i < len(wires); i++ {
		if err := sendPair(co.io, pads[i], wires[i], &labelData); err != nil {
			return err
		}
	}
	return co.io.Flush()
}

// Receive receives the wire labels with OT based on the flag values.
func (co *CO) Receive(flags []bool, result []Label) error {
	if co.role != roleReceiver {
		return ErrRole
	}
	if len(flags) != len(result) {
		return errors.Newf("ot: %d flags for %d results",
			len(flags), len(result))
	}
	curveParams := co.curve.Params()

	Ax := big.NewInt(0)
	Ay := big.NewInt(0)
	if err := receivePoint(co.io, co.curve, Ax, Ay); err != nil {
		return errors.Wrap(err, "sender point")
	}

	bs := make([][]byte, len(flags))
	for i := 0; i < len(flags); i++ {
		// b <= Zp
		b, err := rand.Int(co.rand, curveParams.N)
		if err != nil {
			return err
		}
		bs[i] = b.Bytes()

		Bx, By := co.curve.ScalarBaseMult(bs[i])
		if flags[i] {
			Bx, By = co.curve.Add(Bx, By, Ax, Ay)
		}
		if err := sendPoint(co.io, Bx, By); err != nil {
			return err
		}
	}
	if err := co.io.Flush(); err != nil {
		return err
	}

	for i := 0; i < len(flags); i++ {
		Kx, Ky := co.curve.ScalarMult(Ax, Ay, bs[i])
		pad := kdf(co.hash, pointBytes(Kx.Bytes(), Ky.Bytes()), uint64(i))
		var err error
		result[i], err = receivePair(co.io, pad, flags[i])
		if err != nil {
			return err
		}
	}
	return nil
}
