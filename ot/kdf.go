//
// kdf.go
//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.

package ot

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// kdf derives the one-time pad for the transfer instance id from the
// shared point encoding.
func kdf(h *blake3.Hasher, point []byte, id uint64) Label {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], id)

	h.Reset()
	h.Write(point)
	h.Write(tmp[:])

	var digest [32]byte
	h.Sum(digest[:0])

	var pad Label
	pad.SetBytes(digest[:16])
	return pad
}

func pointBytes(x, y []byte) []byte {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(x)))

	buf := make([]byte, 0, len(hdr)+len(x)+len(y))
	buf = append(buf, hdr[:]...)
	buf = append(buf, x...)
	return append(buf, y...)
}
