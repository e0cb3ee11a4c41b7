//go:build mage

package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets (all, unit, binary, cover).
type Test mg.Namespace

type testConfig struct {
	run  string
	race bool
}

func parseTestFlags() testConfig {
	var cfg testConfig
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.StringVar(&cfg.run, "run", "", "only run tests matching this pattern")
	fs.BoolVar(&cfg.race, "race", false, "enable the race detector")
	parseTargetFlags(fs)
	return cfg
}

func (c testConfig) args(pkgs ...string) []string {
	args := []string{"test", "-v"}
	if c.race {
		args = append(args, "-race")
	}
	if c.run != "" {
		args = append(args, "-run", c.run)
	}
	return append(args, pkgs...)
}

// All runs every test.
//
// Flags:
//
//	--run PATTERN  only run matching tests
//	--race         enable the race detector
func (Test) All() error {
	return sh.RunV(binGo, parseTestFlags().args("./...")...)
}

// Unit runs package tests, excluding the binary tests under cmd/.
func (Test) Unit() error {
	pkgs, err := sh.Output(binGo, "list", "./...")
	if err != nil {
		return err
	}
	var unitPkgs []string
	for pkg := range strings.SplitSeq(pkgs, "\n") {
		if pkg != "" && !strings.Contains(pkg, "/cmd/") {
			unitPkgs = append(unitPkgs, pkg)
		}
	}
	if len(unitPkgs) == 0 {
		fmt.Println("No unit test packages found.")
		return nil
	}
	return sh.RunV(binGo, parseTestFlags().args(unitPkgs...)...)
}

// Binary builds first, then runs the tests that drive the compiled binary.
func (Test) Binary() error {
	mg.Deps(Build)
	return sh.RunV(binGo, parseTestFlags().args(cmdDir)...)
}

// Cover runs every test with coverage and prints the per-function summary.
func (Test) Cover() error {
	if err := sh.RunV(binGo, "test", "-coverprofile="+coverFile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func="+coverFile)
}
