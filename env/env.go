//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

// Package env implements global environment for the garbling engines.
package env

import (
	"crypto/rand"
	"io"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/chacha20"
)

// Config defines the global system configuration. Config must not be
// modified after being passed to any engine. It is safe for
// concurrent use by multiple sessions as they do not modify it.
type Config struct {
	Rand        io.Reader
	Verbose     bool
	Diagnostics bool

	// Reveal makes the evaluator return the decoded outputs to the
	// garbler. Both parties must use the same setting.
	Reveal bool
}

// GetRandom returns the source of entropy for garbling, OT, and other
// cryptography operations.
func (config *Config) GetRandom() io.Reader {
	if config != nil && config.Rand != nil {
		return config.Rand
	}
	return rand.Reader
}

// NewSessionRand creates a new session PRG seeded from the
// configuration's entropy source. Each protocol session must use its
// own PRG so labels are never shared between sessions.
func (config *Config) NewSessionRand() (*PRG, error) {
	var seed [chacha20.KeySize]byte
	if _, err := io.ReadFull(config.GetRandom(), seed[:]); err != nil {
		return nil, errors.Wrap(err, "env: failed to seed session PRG")
	}
	return NewPRG(seed[:])
}

// PRG implements a deterministic pseudorandom generator as an
// io.Reader. The output is the ChaCha20 keystream of the seed.
type PRG struct {
	stream *chacha20.Cipher
}

// NewPRG creates a new PRG from the 32-byte seed.
func NewPRG(seed []byte) (*PRG, error) {
	var nonce [chacha20.NonceSize]byte
	stream, err := chacha20.NewUnauthenticatedCipher(seed, nonce[:])
	if err != nil {
		return nil, errors.Wrap(err, "env: invalid PRG seed")
	}
	return &PRG{
		stream: stream,
	}, nil
}

// Read fills p with pseudorandom bytes. It never fails.
func (prg *PRG) Read(p []byte) (int, error) {
	clear(p)
	prg.stream.XORKeyStream(p, p)
	return len(p), nil
}
