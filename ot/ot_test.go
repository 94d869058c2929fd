//
// ot_test.go
//
// Copyright (c) 2023-2025 Markku Rossi
//
// All rights reserved.
//

package ot_test

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mixgc/ot"
	"github.com/markkurossi/mixgc/p2p"
)

func testOT(sender, receiver ot.OT, size int, t *testing.T) {
	wires := make([]ot.Wire, size)
	flags := make([]bool, size)
	labels := make([]ot.Label, size)

	done := make(chan error)

	for i := 0; i < len(wires); i++ {
		var err error
		wires[i].L0, err = ot.NewLabel(rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		wires[i].L1, err = ot.NewLabel(rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		flags[i] = i%3 == 0
	}

	conn, rConn := p2p.Pipe()

	go func(conn *p2p.Conn) {
		defer conn.Close()
		err := receiver.InitReceiver(conn)
		if err != nil {
			done <- err
			return
		}
		err = receiver.Receive(flags, labels)
		if err != nil {
			done <- err
			return
		}
		for i := 0; i < len(flags); i++ {
			var expected ot.Label
			if flags[i] {
				expected = wires[i].L1
			} else {
				expected = wires[i].L0
			}
			if !labels[i].Equal(expected) {
				done <- fmt.Errorf("label %d mismatch %v %v,%v", i,
					labels[i], wires[i].L0, wires[i].L1)
				return
			}
		}
		done <- nil
	}(rConn)

	err := sender.InitSender(conn)
	if err != nil {
		t.Fatalf("InitSender: %v", err)
	}
	err = sender.Send(wires)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	err = <-done
	if err != nil {
		t.Errorf("receiver failed: %v", err)
	}
	conn.Close()
}

func TestOTCO(t *testing.T) {
	for _, size := range []int{1, 8, 64} {
		testOT(ot.NewCO(rand.Reader), ot.NewCO(rand.Reader), size, t)
	}
}

func TestOTRistretto(t *testing.T) {
	for _, size := range []int{1, 8, 64} {
		testOT(ot.NewRistretto(), ot.NewRistretto(), size, t)
	}
}

func TestOTRole(t *testing.T) {
	conn, rConn := p2p.Pipe()
	defer rConn.Close()
	defer conn.Close()

	go rConn.ReceiveString()

	co := ot.NewCO(rand.Reader)
	if err := co.InitSender(conn); err != nil {
		t.Fatalf("InitSender: %v", err)
	}
	err := co.Receive([]bool{true}, make([]ot.Label, 1))
	if err != ot.ErrRole {
		t.Errorf("Receive as sender: got %v, expected %v", err, ot.ErrRole)
	}
	if err := co.InitReceiver(conn); err != ot.ErrRole {
		t.Errorf("InitReceiver as sender: got %v, expected %v",
			err, ot.ErrRole)
	}
}

func TestOTGroupMismatch(t *testing.T) {
	conn, rConn := p2p.Pipe()
	defer rConn.Close()
	defer conn.Close()

	done := make(chan error)
	go func() {
		done <- ot.NewRistretto().InitReceiver(rConn)
	}()
	if err := ot.NewCO(rand.Reader).InitSender(conn); err != nil {
		t.Fatalf("InitSender: %v", err)
	}
	err := <-done
	if !errors.Is(err, ot.ErrGroup) {
		t.Errorf("InitReceiver: got %v, expected %v", err, ot.ErrGroup)
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{ot.NameCO, ot.NameRistretto} {
		if _, err := ot.New(name, rand.Reader); err != nil {
			t.Errorf("New(%s): %v", name, err)
		}
	}
	if _, err := ot.New("iknp", rand.Reader); err == nil {
		t.Errorf("New accepted an unknown back-end")
	}
}

func benchmarkOT(sender, receiver ot.OT, batchSize int, b *testing.B) {
	wires := make([]ot.Wire, batchSize)
	flags := make([]bool, batchSize)
	labels := make([]ot.Label, batchSize)

	done := make(chan error)

	conn, rConn := p2p.Pipe()

	go func(conn *p2p.Conn) {
		defer conn.Close()
		err := receiver.InitReceiver(conn)
		if err != nil {
			done <- err
			return
		}
		for i := 0; i < b.N; i++ {
			err = receiver.Receive(flags, labels)
			if err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}(rConn)

	err := sender.InitSender(conn)
	if err != nil {
		b.Fatalf("InitSender: %v", err)
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		err = sender.Send(wires)
		if err != nil {
			b.Fatalf("Send: %v", err)
		}
	}

	err = <-done
	if err != nil {
		b.Errorf("receiver failed: %v", err)
	}
	conn.Close()
}

func BenchmarkOTCO_8(b *testing.B) {
	benchmarkOT(ot.NewCO(rand.Reader), ot.NewCO(rand.Reader), 8, b)
}

func BenchmarkOTCO_64(b *testing.B) {
	benchmarkOT(ot.NewCO(rand.Reader), ot.NewCO(rand.Reader), 64, b)
}

func BenchmarkOTRistretto_8(b *testing.B) {
	benchmarkOT(ot.NewRistretto(), ot.NewRistretto(), 8, b)
}

func BenchmarkOTRistretto_64(b *testing.B) {
	benchmarkOT(ot.NewRistretto(), ot.NewRistretto(), 64, b)
}
