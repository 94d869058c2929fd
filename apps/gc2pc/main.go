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
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mixgc/circuit"
	"github.com/markkurossi/mixgc/env"
	"github.com/markkurossi/mixgc/gc"
	"github.com/markkurossi/mixgc/ot"
	"github.com/markkurossi/mixgc/p2p"
	"github.com/spf13/viper"
)

func main() {
	flag.Bool("g", false, "Garbler / Evaluator mode")
	flag.Bool("local", false, "Run both parties in-process")
	flag.String("addr", ":8080", "Garbler address")
	flag.String("ot", ot.NameCO, "OT back-end: co, ristretto")
	flag.String("circ", "and",
		"Circuit file or library circuit: "+
			strings.Join(circuit.Library(), ", "))
	flag.String("i", "", "Comma-separated input values")
	flag.String("pi", "", "Evaluator input values in local mode")
	fOut := flag.String("o", "", "Write the circuit to the file")
	fDump := flag.Bool("dump", false, "Dump the circuit")
	flag.Bool("v", false, "Verbose output")
	flag.Bool("d", false, "Per-gate diagnostics")
	flag.Bool("reveal", false, "Reveal the outputs to the garbler")
	fConfig := flag.String("config", "", "Configuration file")
	flag.Parse()

	log.SetFlags(0)

	v, err := config(*fConfig)
	if err != nil {
		log.Fatal(err)
	}

	circName := v.GetString("circ")
	circ, err := loadCircuit(circName)
	if err != nil {
		log.Fatalf("failed to load circuit '%s': %v", circName, err)
	}
	if *fDump {
		circ.Dump()
	}
	if len(*fOut) > 0 {
		f, err := os.Create(*fOut)
		if err != nil {
			log.Fatal(err)
		}
		if err := circ.Marshal(f); err != nil {
			f.Close()
			log.Fatal(err)
		}
		if err := f.Close(); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg := &env.Config{
		Verbose:     v.GetBool("v"),
		Diagnostics: v.GetBool("d"),
		Reveal:      v.GetBool("reveal"),
	}
	input, err := parseInputs(v.GetString("i"))
	if err != nil {
		log.Fatal(err)
	}
	otName := v.GetString("ot")
	newOT := func() (ot.OT, error) {
		return ot.New(otName, rand.Reader)
	}
	if _, err := newOT(); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Circuit: %v\n", circ)

	switch {
	case v.GetBool("local"):
		peer, err := parseInputs(v.GetString("pi"))
		if err != nil {
			log.Fatal(err)
		}
		result, err := gc.Local(cfg, cfg, circ, input, peer, newOT)
		if err != nil {
			log.Fatal(err)
		}
		printResult(circ, result)

	case v.GetBool("g"):
		err = garblerMode(cfg, v.GetString("addr"), circ, input, newOT)
		if err != nil {
			log.Fatal(err)
		}

	default:
		result, err := evaluatorMode(cfg, v.GetString("addr"), circ, input,
			newOT)
		if err != nil {
			log.Fatal(err)
		}
		printResult(circ, result)
	}
}

// config reads the configuration from the configuration file and
// GC2PC_* environment variables. Command-line flags override both.
func config(file string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("gc2pc")
	v.AddConfigPath(".")
	v.SetEnvPrefix("GC2PC")
	v.AutomaticEnv()
	if len(file) > 0 {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if len(file) > 0 || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read configuration")
		}
	}
	flag.VisitAll(func(f *flag.Flag) {
		v.SetDefault(f.Name, f.Value.String())
	})
	flag.Visit(func(f *flag.Flag) {
		v.Set(f.Name, f.Value.String())
	})
	return v, nil
}

func loadCircuit(name string) (*circuit.Circuit, error) {
	if _, err := os.Stat(name); err == nil {
		return circuit.ParseFile(name)
	}
	return circuit.NewLibrary(name)
}

func parseInputs(arg string) ([]uint16, error) {
	var result []uint16
	if len(arg) == 0 {
		return result, nil
	}
	for _, part := range strings.Split(arg, ",") {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 0, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid input '%s'", part)
		}
		result = append(result, uint16(v))
	}
	return result, nil
}

func printResult(circ *circuit.Circuit, result []uint16) {
	moduli, err := circ.OutputModuli()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Result: %s\n", circuit.FormatValues(result, moduli))
}

func garblerMode(cfg *env.Config, addr string, circ *circuit.Circuit,
	input []uint16, newOT func() (ot.OT, error)) error {

	ln, err := p2p.Listen(addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	fmt.Printf("Listening for connections at %s\n", ln.Addr())

	for {
		conn, peer, err := ln.Accept()
		if err != nil {
			return err
		}
		fmt.Printf("New connection from %s\n", peer)

		err = serveConnection(cfg, conn, circ, input, newOT)
		if err != nil {
			log.Printf("session with %s failed: %v (%s)",
				peer, err, gc.KindOf(err))
		}
	}
}

func serveConnection(cfg *env.Config, conn *p2p.Conn, circ *circuit.Circuit,
	input []uint16, newOT func() (ot.OT, error)) error {

	defer conn.Close()

	oti, err := newOT()
	if err != nil {
		return err
	}
	g, err := gc.NewGarbler(cfg, conn, oti)
	if err != nil {
		return err
	}
	if err := g.Run(circ, input); err != nil {
		return err
	}
	if cfg.Reveal {
		printResult(circ, g.Revealed())
	}
	return nil
}

func evaluatorMode(cfg *env.Config, addr string, circ *circuit.Circuit,
	input []uint16, newOT func() (ot.OT, error)) ([]uint16, error) {

	conn, err := p2p.Dial(addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	oti, err := newOT()
	if err != nil {
		return nil, err
	}
	e, err := gc.NewEvaluator(cfg, conn, oti)
	if err != nil {
		return nil, err
	}
	return e.Run(circ, input)
}
