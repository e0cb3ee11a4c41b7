//go:build mage

// Package main provides build targets for libpanel using Mage.
//
// Usage:
//
//	mage build            Compile the libpanel binary to bin/
//	mage test:all         Run every test
//	mage test:unit        Run package tests, skipping the binary tests
//	mage test:binary      Build, then run the end-to-end binary tests
//	mage test:cover       Write coverage.out and print the total
//	mage lint             Run golangci-lint
//	mage clean            Remove build artifacts
//	mage install          Install libpanel to GOPATH/bin
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "libpanel"
	binaryDir  = "bin"
	cmdDir     = "./cmd/libpanel"
	coverFile  = "coverage.out"
)

// Build compiles the libpanel binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	for _, p := range []string{binaryDir, coverFile} {
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
