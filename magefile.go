//go:build mage
// +build mage

/*
Copyright 2025 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/uwu-tools/magex/pkg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

const binDir = "bin"

// All runs the tests and builds the binary
func All() error {
	mg.SerialDeps(Test, Build)
	return nil
}

// EnsureMage makes sure mage itself is installed
func EnsureMage() error {
	return pkg.EnsureMage("")
}

// Build compiles the malacate binary
func Build() error {
	fmt.Println("Building malacate...")
	return sh.RunV("go", "build", "-o", binDir+"/malacate", ".")
}

// Test runs the unit tests
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Lint runs golangci-lint over the module
func Lint() error {
	return sh.RunV("golangci-lint", "run")
}

// Clean removes the build output
func Clean() error {
	return sh.Rm(binDir)
}
