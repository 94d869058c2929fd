//
// local.go
//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package gc

import (
	"github.com/markkurossi/mixgc/circuit"
	"github.com/markkurossi/mixgc/env"
	"github.com/markkurossi/mixgc/ot"
	"github.com/markkurossi/mixgc/p2p"
	"golang.org/x/sync/errgroup"
)

// Local runs both parties of the protocol in-process over an
// in-memory pipe and returns the evaluator's outputs. The newOT
// creates the OT instances of the parties.
func Local(gcfg, ecfg *env.Config, circ *circuit.Circuit,
	garblerInputs, evaluatorInputs []uint16,
	newOT func() (ot.OT, error)) ([]uint16, error) {

	// Validate before the parties share the circuit.
	if _, err := circ.Moduli(); err != nil {
		return nil, &Error{
			Kind: KindCircuit,
			Err:  err,
		}
	}

	gConn, eConn := p2p.Pipe()

	var result []uint16
	var gErr, eErr error
	var eg errgroup.Group

	eg.Go(func() error {
		defer gConn.Close()
		oti, err := newOT()
		if err != nil {
			return err
		}
		g, err := NewGarbler(gcfg, gConn, oti)
		if err != nil {
			return err
		}
		gErr = g.Run(circ, garblerInputs)
		return gErr
	})
	eg.Go(func() error {
		defer eConn.Close()
		oti, err := newOT()
		if err != nil {
			return err
		}
		e, err := NewEvaluator(ecfg, eConn, oti)
		if err != nil {
			return err
		}
		result, eErr = e.Run(circ, evaluatorInputs)
		return eErr
	})
	if err := eg.Wait(); err != nil {
		// The peer of the failing party sees an I/O error.
		for _, perr := range []error{gErr, eErr} {
			if perr != nil && KindOf(perr) != KindIO {
				return nil, perr
			}
		}
		return nil, err
	}
	return result, nil
}
