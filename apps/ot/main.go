//
// main.go
//
// Copyright (c) 2019-2025 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mixgc/gc"
	"github.com/markkurossi/mixgc/ot"
	"github.com/markkurossi/mixgc/p2p"
	"golang.org/x/sync/errgroup"
)

func main() {
	fOT := flag.String("ot", ot.NameCO, "OT back-end: co, ristretto")
	fCount := flag.Int("n", 1024, "Number of transfers")
	fBatch := flag.Int("b", 128, "Batch size")
	flag.Parse()

	log.SetFlags(0)

	sender, err := ot.New(*fOT, rand.Reader)
	if err != nil {
		log.Fatal(err)
	}
	receiver, err := ot.New(*fOT, rand.Reader)
	if err != nil {
		log.Fatal(err)
	}

	wires := make([]ot.Wire, *fCount)
	flags := make([]bool, *fCount)
	labels := make([]ot.Label, *fCount)

	var choice [1]byte
	for i := range wires {
		wires[i].L0, err = ot.NewLabel(rand.Reader)
		if err != nil {
			log.Fatal(err)
		}
		wires[i].L1, err = ot.NewLabel(rand.Reader)
		if err != nil {
			log.Fatal(err)
		}
		if _, err := rand.Read(choice[:]); err != nil {
			log.Fatal(err)
		}
		flags[i] = choice[0]&1 == 1
	}

	sConn, rConn := p2p.Pipe()
	timing := gc.NewTiming()

	var g errgroup.Group
	g.Go(func() error {
		defer rConn.Close()
		if err := receiver.InitReceiver(rConn); err != nil {
			return err
		}
		for i := 0; i < len(flags); i += *fBatch {
			end := min(i+*fBatch, len(flags))
			if err := receiver.Receive(flags[i:end], labels[i:end]); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		defer sConn.Close()
		if err := sender.InitSender(sConn); err != nil {
			return err
		}
		for i := 0; i < len(wires); i += *fBatch {
			end := min(i+*fBatch, len(wires))
			if err := sender.Send(wires[i:end]); err != nil {
				return err
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	timing.Sample(*fOT, []string{fmt.Sprintf("%d OTs", len(wires))})

	for i := range labels {
		expected := wires[i].L0
		if flags[i] {
			expected = wires[i].L1
		}
		if !labels[i].Equal(expected) {
			log.Fatal(errors.Newf("transfer %d: got %v, expected %v",
				i, labels[i], expected))
		}
	}
	timing.Print(sConn.Stats)
}
