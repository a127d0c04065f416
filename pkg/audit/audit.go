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

// Package audit drives the third party license scanner stage. The
// scanner binary is installed at run time from its published installer
// and pointed at the project with an API key from the secret store.
package audit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"sigs.k8s.io/malacate/pkg/exec"
	"sigs.k8s.io/malacate/pkg/run"
	"sigs.k8s.io/malacate/pkg/secrets"
)

const (
	DefaultInstallerURL = "https://raw.githubusercontent.com/fossas/fossa-cli/master/install.sh"
	DefaultBinary       = "fossa"
	DefaultKeyVar       = "FOSSA_API_KEY"
)

type Scanner struct {
	Options Options
	Runner  *exec.Runner
	secrets *secrets.Store
	client  *http.Client
}

type Options struct {
	InstallerURL string
	Sudo         bool
	Binary       string
	WorkDir      string
	KeyVar       string
}

func NewScanner(opts Options, store *secrets.Store) *Scanner {
	if opts.InstallerURL == "" {
		opts.InstallerURL = DefaultInstallerURL
	}
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.KeyVar == "" {
		opts.KeyVar = DefaultKeyVar
	}
	runner := exec.NewRunner()
	runner.Options.CWD = opts.WorkDir
	return &Scanner{
		Options: opts,
		Runner:  runner,
		secrets: store,
		client:  &http.Client{},
	}
}

// InstallTool fetches the scanner installer and runs it. The fetch
// forbids cached copies, a stale installer pulls stale scanner builds.
func (s *Scanner) InstallTool(ctx context.Context) (*run.StepResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Options.InstallerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating http request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching scanner installer: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http error %d fetching scanner installer", res.StatusCode)
	}

	f, err := os.CreateTemp("", "malacate-installer-*.sh")
	if err != nil {
		return nil, fmt.Errorf("creating temporary script: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := io.Copy(f, res.Body); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing installer script: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing installer script: %w", err)
	}
	logrus.Infof("installing license scanner from %s", s.Options.InstallerURL)

	step := run.Step{Command: "bash", Params: []string{f.Name()}}
	if s.Options.Sudo {
		step = run.Step{Command: "sudo", Params: []string{"bash", f.Name()}}
	}
	return s.Runner.RunStep(ctx, &step)
}

// Init sets up the scanner configuration in the work directory
func (s *Scanner) Init(ctx context.Context) (*run.StepResult, error) {
	return s.Runner.RunStep(ctx, &run.Step{
		Command: s.Options.Binary,
		Params:  []string{"init"},
		Dir:     s.Options.WorkDir,
	})
}

// Analyze uploads the dependency graph to the scanning service
func (s *Scanner) Analyze(ctx context.Context) (*run.StepResult, error) {
	env, err := s.keyEnv()
	if err != nil {
		return nil, err
	}
	return s.Runner.RunStep(ctx, &run.Step{
		Command:     s.Options.Binary,
		Params:      []string{"analyze"},
		Dir:         s.Options.WorkDir,
		Environment: env,
	})
}

// Verify polls the scanning service for the result of the last
// analysis, failing on license policy violations
func (s *Scanner) Verify(ctx context.Context) (*run.StepResult, error) {
	env, err := s.keyEnv()
	if err != nil {
		return nil, err
	}
	return s.Runner.RunStep(ctx, &run.Step{
		Command:     s.Options.Binary,
		Params:      []string{"test"},
		Dir:         s.Options.WorkDir,
		Environment: env,
	})
}

// keyEnv resolves the scanner API key. Runs with withheld credentials
// never get this far (the stage is not planned for them), so an error
// here means a canonical run without its key and has to be loud.
func (s *Scanner) keyEnv() (map[string]string, error) {
	value, err := s.secrets.Demand(s.Options.KeyVar)
	if err != nil {
		return nil, fmt.Errorf("resolving scanner API key: %w", err)
	}
	return map[string]string{s.Options.KeyVar: value.Plaintext()}, nil
}
