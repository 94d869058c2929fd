//
// protocol_test.go
//
// Copyright (c) 2023-2025 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/markkurossi/mixgc/ot"
)

var tests = []interface{}{
	byte(42),
	uint16(43),
	uint32(44),
	"Hello, world!",
	ot.Label{D0: 0x0123456789abcdef, D1: 0xfedcba9876543210},
	make([]byte, 1024),
	make([]byte, 100*1024),
	bytes.Repeat([]byte{0xa5}, 512*1024),
}

func writer(c *Conn) {
	var ld ot.LabelData
	for _, test := range tests {
		switch d := test.(type) {
		case byte:
			if err := c.SendByte(d); err != nil {
				fmt.Printf("SendByte: %v\n", err)
			}

		case uint16:
			if err := c.SendUint16(int(d)); err != nil {
				fmt.Printf("SendUint16: %v\n", err)
			}

		case uint32:
			if err := c.SendUint32(int(d)); err != nil {
				fmt.Printf("SendUint32: %v\n", err)
			}

		case string:
			if err := c.SendString(d); err != nil {
				fmt.Printf("SendString: %v\n", err)
			}

		case ot.Label:
			if err := c.SendLabel(d, &ld); err != nil {
				fmt.Printf("SendLabel: %v\n", err)
			}

		case []byte:
			if err := c.SendData(d); err != nil {
				fmt.Printf("SendData [%v]byte: %v\n", len(d), err)
			}

		default:
			fmt.Printf("writer: invalid data: %v(%T)\n", test, test)
		}
	}
	if err := c.Close(); err != nil {
		fmt.Printf("Close: %v\n", err)
	}
}

func TestProtocol(t *testing.T) {
	cw, c := Pipe()

	go writer(cw)

	var ld ot.LabelData
	for _, test := range tests {
		switch d := test.(type) {
		case byte:
			v, err := c.ReceiveByte()
			if err != nil {
				t.Fatalf("ReceiveByte: %v", err)
			}
			if v != d {
				t.Errorf("ReceiveByte: got %v, expected %v", v, d)
			}

		case uint16:
			v, err := c.ReceiveUint16()
			if err != nil {
				t.Fatalf("ReceiveUint16: %v", err)
			}
			if v != int(d) {
				t.Errorf("ReceiveUint16: got %v, expected %v", v, d)
			}

		case uint32:
			v, err := c.ReceiveUint32()
			if err != nil {
				t.Fatalf("ReceiveUint32: %v", err)
			}
			if v != int(d) {
				t.Errorf("ReceiveUint32: got %v, expected %v", v, d)
			}

		case string:
			v, err := c.ReceiveString()
			if err != nil {
				t.Fatalf("ReceiveString: %v", err)
			}
			if v != d {
				t.Errorf("ReceiveString: got %v, expected %v", v, d)
			}

		case ot.Label:
			var v ot.Label
			if err := c.ReceiveLabel(&v, &ld); err != nil {
				t.Fatalf("ReceiveLabel: %v", err)
			}
			if !v.Equal(d) {
				t.Errorf("ReceiveLabel: got %v, expected %v", v, d)
			}

		case []byte:
			v, err := c.ReceiveData()
			if err != nil {
				t.Fatalf("ReceiveData: %v", err)
			}
			if !bytes.Equal(v, d) {
				t.Errorf("ReceiveData: got [%v]byte, expected [%v]byte",
					len(v), len(d))
			}

		default:
			t.Errorf("invalid value: %v(%T)", test, test)
		}
	}
	if _, err := c.ReceiveByte(); err != io.EOF {
		t.Errorf("ReceiveByte after close: got %v, expected EOF", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if c.Stats.Recvd.Load() == 0 {
		t.Errorf("no received bytes recorded")
	}
}

func TestSendDataTooLong(t *testing.T) {
	c0, c1 := Pipe()
	defer c1.Close()
	defer c0.Close()

	err := c0.SendData(make([]byte, readBufSize))
	if err == nil {
		t.Fatalf("SendData accepted %d bytes", readBufSize)
	}
}

func TestStats(t *testing.T) {
	a := NewIOStats()
	a.Sent.Store(10)
	a.Recvd.Store(5)

	b := a.Snapshot()
	a.Sent.Add(7)

	d := a.Sub(b)
	if d.Sent.Load() != 7 || d.Recvd.Load() != 0 {
		t.Errorf("Sub: got %v/%v", d.Sent.Load(), d.Recvd.Load())
	}
	if s := a.Add(b).Sum(); s != 17+5+10+5 {
		t.Errorf("Add.Sum: got %v", s)
	}
}

func TestListenDial(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	done := make(chan error)
	go func() {
		conn, _, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		v, err := conn.ReceiveUint32()
		if err != nil {
			done <- err
			return
		}
		if err := conn.SendUint32(v + 1); err != nil {
			done <- err
			return
		}
		done <- conn.Flush()
	}()

	conn, err := Dial(ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if err := conn.SendUint32(41); err != nil {
		t.Fatalf("SendUint32: %v", err)
	}
	if err := conn.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	v, err := conn.ReceiveUint32()
	if err != nil {
		t.Fatalf("ReceiveUint32: %v", err)
	}
	if v != 42 {
		t.Errorf("got %v, expected 42", v)
	}
	if err := <-done; err != nil {
		t.Errorf("peer: %v", err)
	}
}
