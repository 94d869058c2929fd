//
// hash.go
//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package wire

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/markkurossi/mixgc/ot"
)

var fixedKey = [16]byte{
	0x6d, 0x69, 0x78, 0x67, 0x63, 0x2d, 0x74, 0x63,
	0x63, 0x72, 0x2d, 0x68, 0x61, 0x73, 0x68, 0x31,
}

var fixedCipher cipher.Block

func init() {
	var err error
	fixedCipher, err = aes.NewCipher(fixedKey[:])
	if err != nil {
		panic(err)
	}
}

// Hash computes the tweakable correlation robust hash H(b, t) =
// π(K) ⊕ K where K = 2b ⊕ t and π is fixed-key AES.
func Hash(b, tweak ot.Label) ot.Label {
	k := b
	k.Mul2()
	k.Xor(tweak)

	var data ot.LabelData
	k.GetData(&data)
	fixedCipher.Encrypt(data[:], data[:])

	var h ot.Label
	h.SetData(&data)
	h.Xor(k)
	return h
}

// Hash hashes the label with the tweak.
func (l Label) Hash(tweak ot.Label) ot.Label {
	return Hash(l.Block(), tweak)
}

// HashBack hashes the label with the tweak and converts the result
// into a label of modulus q.
func (l Label) HashBack(tweak ot.Label, q uint16) Label {
	return FromBlock(l.Hash(tweak), q)
}
