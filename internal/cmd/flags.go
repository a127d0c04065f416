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

package cmd

import (
	"fmt"
	"path/filepath"

	"chainguard.dev/apko/pkg/vcs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	util "sigs.k8s.io/release-utils/helpers"

	"sigs.k8s.io/malacate/pkg/pipeline"
	"sigs.k8s.io/malacate/pkg/trigger"
)

type pipelineOptions struct {
	ConfigFile string
	Workspace  string
}

// Path resolves the pipeline file relative to the workspace
func (po *pipelineOptions) Path() string {
	if filepath.IsAbs(po.ConfigFile) {
		return po.ConfigFile
	}
	return filepath.Join(po.Workspace, po.ConfigFile)
}

// Load reads the pipeline definition, falling back to the default
// pipeline when the repository carries none
func (po *pipelineOptions) Load() (*pipeline.Pipeline, error) {
	path := po.Path()
	if util.Exists(path) {
		return pipeline.Load(path)
	}

	logrus.Debugf("no pipeline file at %s, running the default pipeline", path)
	p := &pipeline.Pipeline{}
	p.Default()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validating default pipeline: %w", err)
	}
	return p, nil
}

func addPipelineFlags(command *cobra.Command) *pipelineOptions {
	opts := &pipelineOptions{}
	command.PersistentFlags().StringVarP(
		&opts.ConfigFile,
		"config",
		"c",
		pipeline.DefaultConfigFile,
		"pipeline definition file, relative to the workspace",
	)
	command.PersistentFlags().StringVarP(
		&opts.Workspace,
		"workspace",
		"C",
		".",
		"path to the repository checkout the pipeline runs on",
	)
	return opts
}

type triggerOptions struct {
	event      string
	ref        string
	tag        string
	commit     string
	repository string
	fork       bool
}

// Resolve produces the run trigger, letting explicit flags override
// whatever the CI environment or the local checkout says
func (to *triggerOptions) Resolve(workspace string) (trigger.Trigger, error) {
	return trigger.Resolve(workspace, trigger.Trigger{
		Event:      trigger.Event(to.event),
		Ref:        to.ref,
		Tag:        to.tag,
		Commit:     to.commit,
		Repository: to.repository,
		ForkOrigin: to.fork,
	})
}

func addTriggerFlags(command *cobra.Command) *triggerOptions {
	opts := &triggerOptions{}
	command.PersistentFlags().StringVar(
		&opts.event,
		"event",
		"",
		"event that fired the run (push, pull_request or tag)",
	)
	command.PersistentFlags().StringVar(
		&opts.ref,
		"ref",
		"",
		"git ref the run builds",
	)
	command.PersistentFlags().StringVar(
		&opts.tag,
		"tag",
		"",
		"pushed tag, implies a tag event",
	)
	command.PersistentFlags().StringVar(
		&opts.commit,
		"commit",
		"",
		"commit digest the run builds",
	)
	command.PersistentFlags().StringVar(
		&opts.repository,
		"repo",
		"",
		"canonical repository slug (org/name)",
	)
	command.PersistentFlags().BoolVar(
		&opts.fork,
		"fork",
		false,
		"treat the run as fork-origin, withholding all secrets",
	)
	return opts
}

// readVCSURL probes the workspace checkout for the VCS url to record
// in the attestation materials
func readVCSURL(workspace string) (string, error) {
	repoPath, err := filepath.Abs(workspace)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path to repo: %w", err)
	}

	urlString, err := vcs.ProbeDirForVCSUrl(repoPath, repoPath)
	if err != nil {
		return "", fmt.Errorf("probing VCS URL: %w", err)
	}
	return urlString, nil
}
