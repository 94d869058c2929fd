//
// library.go
//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package circuit

import (
	"sort"

	"github.com/cockroachdb/errors"
)

var library = map[string]func() (*Circuit, error){
	"and": func() (*Circuit, error) {
		b := NewBuilder([]uint16{2}, []uint16{2})
		b.Output(b.And(b.GarblerInput(0), b.EvaluatorInput(0)))
		return b.Build()
	},
	"or": func() (*Circuit, error) {
		b := NewBuilder([]uint16{2}, []uint16{2})
		b.Output(b.Or(b.GarblerInput(0), b.EvaluatorInput(0)))
		return b.Build()
	},
	"add5": func() (*Circuit, error) {
		b := NewBuilder([]uint16{5}, []uint16{5})
		b.Output(b.Add(b.GarblerInput(0), b.EvaluatorInput(0)))
		return b.Build()
	},
	"mul7": func() (*Circuit, error) {
		b := NewBuilder([]uint16{7}, []uint16{7})
		b.Output(b.Mul(b.GarblerInput(0), b.EvaluatorInput(0)))
		return b.Build()
	},
	"eq5": func() (*Circuit, error) {
		b := NewBuilder([]uint16{5}, []uint16{5})
		d := b.Sub(b.GarblerInput(0), b.EvaluatorInput(0))
		b.Output(b.Proj(d, 2, []uint16{1, 0, 0, 0, 0}))
		return b.Build()
	},
	"dot3": func() (*Circuit, error) {
		q := []uint16{11, 11, 11}
		b := NewBuilder(q, q)
		sum := b.Constant(0, 11)
		for i := range q {
			sum = b.Add(sum, b.Mul(b.GarblerInput(i), b.EvaluatorInput(i)))
		}
		b.Output(sum)
		b.Output(b.Mod(sum, 2))
		return b.Build()
	},
}

// Library returns the names of the built-in circuits.
func Library() []string {
	var names []string
	for name := range library {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewLibrary creates the built-in circuit name.
func NewLibrary(name string) (*Circuit, error) {
	f, ok := library[name]
	if !ok {
		return nil, errors.Newf("circuit: unknown library circuit '%s'", name)
	}
	return f()
}
