//
// label.go
//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

// Package wire implements wire labels for garbled circuits with
// mixed-modulus wires. A label of a modulus 2 wire is a single
// 128-bit block. A label of a modulus q > 2 wire is a vector of base-q
// digits that fits into a block.
package wire

import (
	"fmt"
	"io"
	"math/big"
	"math/bits"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mixgc/ot"
	"github.com/markkurossi/text/superscript"
)

var (
	// ErrModulusMismatch is returned when labels of different
	// moduli are combined.
	ErrModulusMismatch = errors.New("wire: modulus mismatch")

	// ErrModulus is returned for moduli outside [2, 65535].
	ErrModulus = errors.New("wire: invalid modulus")
)

// Label implements a wire label of modulus q.
type Label struct {
	q  uint16
	b  ot.Label
	ds []uint16
}

var (
	numDigitsM sync.Mutex
	numDigits  = make(map[uint16]int)
	twoTo128   = new(big.Int).Lsh(big.NewInt(1), 128)
)

// NumDigits returns the number of base-q digits in a label of
// modulus q. This is the largest n for which q^n <= 2^128.
func NumDigits(q uint16) int {
	if q == 2 {
		return 128
	}
	numDigitsM.Lock()
	defer numDigitsM.Unlock()

	n, ok := numDigits[q]
	if ok {
		return n
	}
	bq := big.NewInt(int64(q))
	acc := big.NewInt(1)
	for {
		acc.Mul(acc, bq)
		if acc.Cmp(twoTo128) > 0 {
			break
		}
		n++
	}
	numDigits[q] = n
	return n
}

// CheckModulus verifies that q is a valid wire modulus.
func CheckModulus(q uint16) error {
	if q < 2 {
		return errors.Wrapf(ErrModulus, "modulus %d", q)
	}
	return nil
}

// Zero returns the all-zero label of modulus q.
func Zero(q uint16) Label {
	if q == 2 {
		return Label{q: q}
	}
	return Label{
		q:  q,
		ds: make([]uint16, NumDigits(q)),
	}
}

// Rand creates a uniformly random label of modulus q.
func Rand(rand io.Reader, q uint16) (Label, error) {
	if err := CheckModulus(q); err != nil {
		return Label{}, err
	}
	if q == 2 {
		b, err := ot.NewLabel(rand)
		if err != nil {
			return Label{}, err
		}
		return Label{q: q, b: b}, nil
	}
	n := NumDigits(q)
	ds := make([]uint16, n)

	// Rejection sample each digit from 16 bits.
	limit := uint32(1<<16) - uint32(1<<16)%uint32(q)
	buf := make([]byte, 2*n)
	var i int
	for i < n {
		// Only the samples read in this round are fresh.
		b := buf[:2*(n-i)]
		if _, err := io.ReadFull(rand, b); err != nil {
			return Label{}, err
		}
		for j := 0; j+1 < len(b) && i < n; j += 2 {
			v := uint32(b[j])<<8 | uint32(b[j+1])
			if v >= limit {
				continue
			}
			ds[i] = uint16(v % uint32(q))
			i++
		}
	}
	return Label{q: q, ds: ds}, nil
}

// Delta creates a random global offset of modulus q. The offset's
// color is 1.
func Delta(rand io.Reader, q uint16) (Label, error) {
	l, err := Rand(rand, q)
	if err != nil {
		return l, err
	}
	if q == 2 {
		l.b.SetS(true)
	} else {
		l.ds[0] = 1
	}
	return l, nil
}

// FromBlock converts the block into a label of modulus q.
func FromBlock(b ot.Label, q uint16) Label {
	if q == 2 {
		return Label{q: q, b: b}
	}
	n := NumDigits(q)
	ds := make([]uint16, n)

	hi, lo := b.D0, b.D1
	m := uint64(q)
	for i := 0; i < n; i++ {
		var r uint64
		hi, r = bits.Div64(0, hi, m)
		lo, r = bits.Div64(r, lo, m)
		ds[i] = uint16(r)
	}
	return Label{q: q, ds: ds}
}

// Block returns the label as a block.
func (l Label) Block() ot.Label {
	if l.q == 2 {
		return l.b
	}
	var hi, lo uint64
	m := uint64(l.q)
	for i := len(l.ds) - 1; i >= 0; i-- {
		h, low := bits.Mul64(lo, m)
		var c uint64
		lo, c = bits.Add64(low, uint64(l.ds[i]), 0)
		hi = hi*m + h + c
	}
	return ot.Label{D0: hi, D1: lo}
}

// Modulus returns the label modulus.
func (l Label) Modulus() uint16 {
	return l.q
}

// Color returns the label's point-and-permute color in [0, q).
func (l Label) Color() uint16 {
	if l.q == 2 {
		if l.b.S() {
			return 1
		}
		return 0
	}
	if len(l.ds) == 0 {
		return 0
	}
	return l.ds[0]
}

// Equal tests if the labels are equal.
func (l Label) Equal(o Label) bool {
	if l.q != o.q {
		return false
	}
	if l.q == 2 {
		return l.b.Equal(o.b)
	}
	if len(l.ds) != len(o.ds) {
		return false
	}
	for i, d := range l.ds {
		if o.ds[i] != d {
			return false
		}
	}
	return true
}

// Plus returns l+o.
func (l Label) Plus(o Label) (Label, error) {
	if l.q != o.q {
		return Label{}, errors.Wrapf(ErrModulusMismatch, "%d+%d", l.q, o.q)
	}
	if l.q == 2 {
		r := l
		r.b.Xor(o.b)
		return r, nil
	}
	q := uint32(l.q)
	ds := make([]uint16, len(l.ds))
	for i := range ds {
		ds[i] = uint16((uint32(l.ds[i]) + uint32(o.ds[i])) % q)
	}
	return Label{q: l.q, ds: ds}, nil
}

// Minus returns l-o.
func (l Label) Minus(o Label) (Label, error) {
	if l.q != o.q {
		return Label{}, errors.Wrapf(ErrModulusMismatch, "%d-%d", l.q, o.q)
	}
	return l.Plus(o.Negate())
}

// Negate returns -l.
func (l Label) Negate() Label {
	if l.q == 2 {
		return l
	}
	q := uint32(l.q)
	ds := make([]uint16, len(l.ds))
	for i, d := range l.ds {
		ds[i] = uint16((q - uint32(d)) % q)
	}
	return Label{q: l.q, ds: ds}
}

// Cmul returns c·l.
func (l Label) Cmul(c uint16) Label {
	if l.q == 2 {
		if c&1 == 0 {
			return Zero(2)
		}
		return l
	}
	q := uint32(l.q)
	cm := uint32(c) % q
	ds := make([]uint16, len(l.ds))
	for i, d := range l.ds {
		ds[i] = uint16(uint32(d) * cm % q)
	}
	return Label{q: l.q, ds: ds}
}

func (l Label) String() string {
	if l.q == 2 {
		return l.b.String()
	}
	var sb strings.Builder
	sb.WriteRune('[')
	for i, d := range l.ds {
		if i > 0 {
			sb.WriteRune(' ')
		}
		fmt.Fprintf(&sb, "%d", d)
	}
	sb.WriteRune(']')
	sb.WriteString(superscript.Itoa(int(l.q)))
	return sb.String()
}
