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

package pipeline

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"sigs.k8s.io/yaml"
)

// DefaultConfigFile is the pipeline definition malacate looks for at
// the workspace root
const DefaultConfigFile = ".malacate.yaml"

// Stage names are fixed identifiers, the pipeline always runs them in
// this relative order.
const (
	StageTest   = "test"
	StageAudit  = "fossa"
	StageDeploy = "deploy"
)

var stageOrder = []string{StageTest, StageAudit, StageDeploy}

// Pipeline is the declarative definition of a release pipeline
type Pipeline struct {
	// Project is the name the package index knows the project by
	Project string `json:"project,omitempty"`

	// Runtime is a toolchain moniker such as python:3.7
	Runtime string `json:"runtime,omitempty"`

	Install Install `json:"install,omitempty"`

	// Stages to run, members of the fixed stage set
	Stages []string `json:"stages,omitempty"`

	// Script lines for the test stage, the toolchain default test
	// command runs when empty
	Script []string `json:"script,omitempty"`

	Audit  Audit  `json:"audit,omitempty"`
	Deploy Deploy `json:"deploy,omitempty"`

	// Notifications are notifier spec URLs that get the run report
	Notifications []string `json:"notifications,omitempty"`
}

// Install describes how the environment gets prepared
type Install struct {
	// Requirements are dependency manifests fed to the installer
	Requirements []string `json:"requirements,omitempty"`

	// Develop installs the project itself in editable mode
	Develop *bool `json:"develop,omitempty"`
}

// DevelopInstall is true unless the pipeline opted out
func (i *Install) DevelopInstall() bool {
	return i.Develop == nil || *i.Develop
}

// Audit configures the license/dependency audit stage
type Audit struct {
	// InstallerURL is fetched at run time and executed to install
	// the audit tool
	InstallerURL string `json:"installerURL,omitempty"`

	// Sudo runs the installer with elevated privileges
	Sudo *bool `json:"sudo,omitempty"`

	// Binary is the audit tool entrypoint once installed
	Binary string `json:"binary,omitempty"`

	// KeyVar names the environment variable carrying the audit
	// service API key. The value never appears in the pipeline file.
	KeyVar string `json:"keyVar,omitempty"`
}

// RunWithSudo is true unless the pipeline opted out
func (a *Audit) RunWithSudo() bool {
	return a.Sudo == nil || *a.Sudo
}

// Deploy configures the artifact publication stage
type Deploy struct {
	// Provider is the index flavor, only pypi for now
	Provider string `json:"provider,omitempty"`

	// Index is the spec URL of the package index
	Index string `json:"index,omitempty"`

	// Username for the index, defaults to the token sentinel
	Username string `json:"username,omitempty"`

	// PasswordVar names the environment variable with the index token
	PasswordVar string `json:"passwordVar,omitempty"`

	// Distributions to build before uploading
	Distributions []string `json:"distributions,omitempty"`

	// SkipExisting tolerates files the index already has
	SkipExisting *bool `json:"skipExisting,omitempty"`

	// Edge selects the next generation uploader which preflights
	// existence instead of relying on the index conflict answer
	Edge *bool `json:"edge,omitempty"`

	// SBOM optionally names an SPDX document listing artifacts to
	// publish in addition to the built distributions
	SBOM string `json:"sbom,omitempty"`

	On *DeployCondition `json:"on,omitempty"`
}

// DeployCondition gates when the upload action runs
type DeployCondition struct {
	Tags *bool `json:"tags,omitempty"`
}

// SkipExistingUploads is true unless the pipeline opted out
func (d *Deploy) SkipExistingUploads() bool {
	return d.SkipExisting == nil || *d.SkipExisting
}

// EdgeUploader is true unless the pipeline opted out
func (d *Deploy) EdgeUploader() bool {
	return d.Edge == nil || *d.Edge
}

// OnTagsOnly is true unless the pipeline explicitly deploys all pushes
func (d *Deploy) OnTagsOnly() bool {
	return d.On == nil || d.On.Tags == nil || *d.On.Tags
}

// Load reads and validates a pipeline definition
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline file %s: %w", path, err)
	}

	p := &Pipeline{}
	if err := yaml.UnmarshalStrict(data, p); err != nil {
		return nil, fmt.Errorf("parsing pipeline file %s: %w", path, err)
	}

	p.Default()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validating pipeline: %w", err)
	}
	return p, nil
}

// Default fills the blanks of a pipeline definition
func (p *Pipeline) Default() {
	if p.Runtime == "" {
		p.Runtime = "python:3.7"
	}
	if len(p.Stages) == 0 {
		p.Stages = []string{StageTest, StageAudit, StageDeploy}
	}
	if len(p.Install.Requirements) == 0 {
		p.Install.Requirements = []string{"requirements.txt"}
	}
	if p.Audit.InstallerURL == "" {
		p.Audit.InstallerURL = "https://raw.githubusercontent.com/fossas/fossa-cli/master/install.sh"
	}
	if p.Audit.Binary == "" {
		p.Audit.Binary = "fossa"
	}
	if p.Audit.KeyVar == "" {
		p.Audit.KeyVar = "FOSSA_API_KEY"
	}
	if p.Deploy.Provider == "" {
		p.Deploy.Provider = "pypi"
	}
	if p.Deploy.Index == "" {
		p.Deploy.Index = "https://upload.pypi.org/legacy/"
	}
	if p.Deploy.Username == "" {
		p.Deploy.Username = "__token__"
	}
	if p.Deploy.PasswordVar == "" {
		p.Deploy.PasswordVar = "PYPI_TOKEN"
	}
	if len(p.Deploy.Distributions) == 0 {
		p.Deploy.Distributions = []string{"sdist", "bdist_wheel"}
	}
}

// Validate checks the pipeline definition is coherent
func (p *Pipeline) Validate() error {
	errs := []error{}

	if len(p.Stages) == 0 {
		errs = append(errs, errors.New("pipeline has no stages"))
	}

	lastSeen := -1
	for _, stage := range p.Stages {
		i := slices.Index(stageOrder, stage)
		if i < 0 {
			errs = append(errs, fmt.Errorf("unknown stage %q", stage))
			continue
		}
		if i <= lastSeen {
			errs = append(errs, fmt.Errorf("stage %q repeated or out of order", stage))
		}
		lastSeen = i
	}

	if len(p.Stages) > 0 && !p.HasStage(StageTest) {
		errs = append(errs, errors.New("pipeline must include the test stage"))
	}

	if p.HasStage(StageDeploy) && p.Deploy.Provider != "pypi" {
		errs = append(errs, fmt.Errorf("unsupported deploy provider %q", p.Deploy.Provider))
	}

	if p.HasStage(StageAudit) && p.Audit.InstallerURL == "" {
		errs = append(errs, errors.New("audit stage needs an installer URL"))
	}

	return errors.Join(errs...)
}

// HasStage is true when the pipeline declares the named stage
func (p *Pipeline) HasStage(name string) bool {
	return slices.Contains(p.Stages, name)
}

// SecretVars lists the environment variables the pipeline treats as
// secrets. The credential store loads exactly these.
func (p *Pipeline) SecretVars() []string {
	vars := []string{}
	if p.Audit.KeyVar != "" {
		vars = append(vars, p.Audit.KeyVar)
	}
	if p.Deploy.PasswordVar != "" && !slices.Contains(vars, p.Deploy.PasswordVar) {
		vars = append(vars, p.Deploy.PasswordVar)
	}
	return vars
}
