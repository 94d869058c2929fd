//
// pipe.go
//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"net"

	"github.com/cockroachdb/errors"
)

// Pipe creates a connected pair of in-memory connections. Anything
// sent to the first endpoint can be received from the second and vice
// versa. Closing either endpoint fails the peer's pending and future
// operations.
func Pipe() (*Conn, *Conn) {
	c0, c1 := net.Pipe()
	return NewConn(c0), NewConn(c1)
}

// Dial connects to the peer listening at the TCP address addr.
func Dial(addr string) (*Conn, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "p2p: dial %s", addr)
	}
	return NewConn(nc), nil
}

// Listener accepts peer connections.
type Listener struct {
	ln net.Listener
}

// Listen starts listening for peer connections at the TCP address
// addr.
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "p2p: listen %s", addr)
	}
	return &Listener{
		ln: ln,
	}, nil
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Accept waits for the next peer connection. It returns the
// connection and the peer's address.
func (l *Listener) Accept() (*Conn, net.Addr, error) {
	nc, err := l.ln.Accept()
	if err != nil {
		return nil, nil, err
	}
	return NewConn(nc), nc.RemoteAddr(), nil
}

// Close closes the listener.
func (l *Listener) Close() error {
	return l.ln.Close()
}
