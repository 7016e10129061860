// Command rgv-engine reads a SimulationInput from a file argument (or stdin),
// runs the simulation, and writes the SimulationLog JSON to stdout. Files
// ending in .yaml or .yml are read as YAML, everything else as JSON. With
// -demo it runs the built-in reference workload instead.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cxd309/rgv-engine/internal/engine"
)

func main() {
	level := flag.String("log-level", "warn", "log level (logs go to stderr)")
	format := flag.String("format", "", "input format: json or yaml (default from file extension)")
	indent := flag.Bool("indent", false, "indent the output JSON")
	demo := flag.Bool("demo", false, "run the built-in reference workload")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if lvl, err := logrus.ParseLevel(*level); err == nil {
		log.SetLevel(lvl)
	}

	input, err := readInput(*demo, *format, flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
		os.Exit(1)
	}

	result, err := engine.Run(input, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulation error: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	if *indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "error encoding output: %v\n", err)
		os.Exit(1)
	}
}

func readInput(demo bool, format, path string) (engine.SimulationInput, error) {
	if demo {
		return engine.DemoInput(), nil
	}
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return engine.SimulationInput{}, err
	}
	return engine.DecodeInput(data, inputFormat(format, path))
}

func inputFormat(explicit, path string) string {
	if explicit != "" {
		return strings.ToLower(explicit)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}
