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
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	util "sigs.k8s.io/release-utils/helpers"

	"sigs.k8s.io/malacate/pkg/pipeline"
	"sigs.k8s.io/malacate/pkg/run"
)

// Python drives a python environment. The interpreter on PATH is
// expected to match Version, malacate does not manage interpreters.
type Python struct {
	Version string
}

const pythonInterpreter = "python"

var knownDistributions = []string{"sdist", "bdist_wheel"}

// pipStep builds one python -m pip invocation
func pipStep(args ...string) run.Step {
	return run.Step{
		Command: pythonInterpreter,
		Params:  append([]string{"-m", "pip", "install"}, args...),
	}
}

// InstallSteps prepares the environment. The installer upgrades itself
// first so manifest resolution runs on current tooling, then the build
// backends, then the declared manifests, then the project in editable
// mode.
func (py *Python) InstallSteps(install pipeline.Install) []run.Step {
	steps := []run.Step{
		pipStep("--upgrade", "pip"),
		pipStep("--upgrade", "setuptools", "wheel"),
	}

	for _, manifest := range install.Requirements {
		steps = append(steps, pipStep("-r", manifest))
	}

	if install.DevelopInstall() {
		steps = append(steps, pipStep("-e", "."))
	}
	return steps
}

// TestSteps runs the declared script lines through the shell, or the
// default test runner when the pipeline declares none
func (py *Python) TestSteps(script []string) []run.Step {
	if len(script) == 0 {
		return []run.Step{{Command: "pytest"}}
	}

	steps := []run.Step{}
	for _, line := range script {
		steps = append(steps, run.Step{
			Command: "/bin/sh",
			Params:  []string{"-c", line},
		})
	}
	return steps
}

// BuildSteps produces the requested distributions in one setup.py
// invocation
func (py *Python) BuildSteps(distributions []string) ([]run.Step, error) {
	if len(distributions) == 0 {
		return nil, errors.New("no distributions to build")
	}
	for _, dist := range distributions {
		if !slices.Contains(knownDistributions, dist) {
			return nil, fmt.Errorf("unknown distribution type %q", dist)
		}
	}
	return []run.Step{{
		Command: pythonInterpreter,
		Params:  append([]string{"setup.py"}, distributions...),
	}}, nil
}

// DistDir is where setup.py leaves the built distributions
func (py *Python) DistDir() string {
	return "dist"
}

// CheckManifests verifies the declared dependency manifests exist
func (py *Python) CheckManifests(dir string, install pipeline.Install) error {
	errs := []error{}
	for _, manifest := range install.Requirements {
		if !util.Exists(filepath.Join(dir, manifest)) {
			errs = append(errs, fmt.Errorf("dependency manifest %s not found in %s", manifest, dir))
		}
	}
	return errors.Join(errs...)
}
