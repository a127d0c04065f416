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

package toolchain

import (
	"fmt"
	"strings"

	"sigs.k8s.io/malacate/pkg/pipeline"
	"sigs.k8s.io/malacate/pkg/run"
)

// Toolchain is the interface a language runtime driver implements to
// prepare the environment and synthesize the pipeline's commands
type Toolchain interface {
	// InstallSteps prepares the environment: installer upgrade,
	// build tooling, dependency manifests, project itself
	InstallSteps(install pipeline.Install) []run.Step

	// TestSteps are the commands of the test stage
	TestSteps(script []string) []run.Step

	// BuildSteps produce the distribution artifacts
	BuildSteps(distributions []string) ([]run.Step, error)

	// DistDir is where built distributions land, relative to the
	// workspace
	DistDir() string

	// CheckManifests fails when a declared dependency manifest is
	// missing from the workspace
	CheckManifests(dir string, install pipeline.Install) error
}

// New returns the driver for a runtime moniker such as python:3.7
func New(moniker string) (Toolchain, error) {
	name, version, _ := strings.Cut(moniker, ":")
	var driver Toolchain
	switch name {
	case "python":
		driver = &Python{Version: version}
	default:
		return nil, fmt.Errorf("unable to get toolchain from moniker %s", moniker)
	}
	return driver, nil
}
