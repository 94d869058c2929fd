//
// label_test.go
//
// Copyright (c) 2019-2025 Markku Rossi
//
// All rights reserved.
//

package ot

import (
	"testing"
)

func TestLabel(t *testing.T) {
	label := &Label{
		D0: 0xffffffffffffffff,
		D1: 0xffffffffffffffff,
	}

	label.SetS(true)
	if label.D0 != 0xffffffffffffffff {
		t.Fatal("Failed to set S-bit")
	}

	label.SetS(false)
	if label.D0 != 0x7fffffffffffffff {
		t.Fatalf("Failed to clear S-bit: %x", label.D0)
	}
}

func TestLabelData(t *testing.T) {
	label := Label{
		D0: 0x0011223344556677,
		D1: 0x8899aabbccddeeff,
	}
	var data LabelData
	label.GetData(&data)
	if data[0] != 0x00 || data[15] != 0xff {
		t.Fatalf("GetData: unexpected byte order %x", data)
	}
	var l2 Label
	l2.SetBytes(label.Bytes(&data))
	if !l2.Equal(label) {
		t.Fatalf("SetBytes: got %v, expected %v", l2, label)
	}
}

func TestMul2(t *testing.T) {
	label := Label{
		D0: 0x1,
		D1: 0x8000000000000001,
	}
	label.Mul2()
	if label.D0 != 0x3 || label.D1 != 0x2 {
		t.Fatalf("Mul2: got %v", label)
	}
}
