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

package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"sigs.k8s.io/malacate/pkg/audit"
	"sigs.k8s.io/malacate/pkg/deploy"
	"sigs.k8s.io/malacate/pkg/exec"
	"sigs.k8s.io/malacate/pkg/notify"
	"sigs.k8s.io/malacate/pkg/pipeline"
	"sigs.k8s.io/malacate/pkg/run"
	"sigs.k8s.io/malacate/pkg/secrets"
	"sigs.k8s.io/malacate/pkg/toolchain"
	"sigs.k8s.io/malacate/pkg/trigger"
)

// StagePrepare is the implicit stage every run opens with. It is not
// part of the pipeline stage list, every declared stage depends on it.
const StagePrepare = "prepare"

// Engine drives a pipeline run from trigger to report
type Engine struct {
	Pipeline  *pipeline.Pipeline
	Trigger   trigger.Trigger
	Options   Options
	Secrets   *secrets.Store
	Toolchain toolchain.Toolchain
	Runner    *exec.Runner
	Scanner   *audit.Scanner
	Deployer  *deploy.Deployer
	Notifier  *notify.Notifier
}

type Options struct {
	// Workspace is the checked out repository the run operates on
	Workspace string

	// IndexURL overrides the pipeline's package index when set
	IndexURL string

	Verbose bool
}

// New assembles an engine for a pipeline and the trigger that fired
// it. Secrets are loaded and origin-gated here, before any stage can
// ask for them.
func New(p *pipeline.Pipeline, t trigger.Trigger, opts Options) (*Engine, error) {
	tc, err := toolchain.New(p.Runtime)
	if err != nil {
		return nil, fmt.Errorf("resolving toolchain: %w", err)
	}

	store := secrets.FromEnv(p.SecretVars()...).ForTrigger(t)
	logrus.AddHook(secrets.NewRedactingHook(store))

	runner := exec.NewRunner()
	runner.Options.CWD = opts.Workspace
	runner.Options.Verbose = opts.Verbose

	scanner := audit.NewScanner(audit.Options{
		InstallerURL: p.Audit.InstallerURL,
		Sudo:         p.Audit.RunWithSudo(),
		Binary:       p.Audit.Binary,
		WorkDir:      opts.Workspace,
		KeyVar:       p.Audit.KeyVar,
	}, store)
	scanner.Runner.Options.Verbose = opts.Verbose

	indexURL := p.Deploy.Index
	if opts.IndexURL != "" {
		indexURL = opts.IndexURL
	}

	project := p.Project
	if project == "" {
		// orbit out of uber/orbit
		if _, name, ok := strings.Cut(t.Repository, "/"); ok {
			project = name
		} else {
			project = t.Repository
		}
	}

	sbomPath := p.Deploy.SBOM
	if sbomPath != "" && !filepath.IsAbs(sbomPath) {
		sbomPath = filepath.Join(opts.Workspace, sbomPath)
	}

	deployer, err := deploy.New(deploy.Options{
		Project:       project,
		WorkDir:       opts.Workspace,
		IndexURL:      indexURL,
		Username:      p.Deploy.Username,
		PasswordVar:   p.Deploy.PasswordVar,
		Distributions: p.Deploy.Distributions,
		SkipExisting:  p.Deploy.SkipExistingUploads(),
		Edge:          p.Deploy.EdgeUploader(),
		OnTagsOnly:    p.Deploy.OnTagsOnly(),
		SBOMPath:      sbomPath,
	}, tc, store)
	if err != nil {
		return nil, fmt.Errorf("assembling deployer: %w", err)
	}
	deployer.Runner.Options.Verbose = opts.Verbose

	return &Engine{
		Pipeline:  p,
		Trigger:   t,
		Options:   opts,
		Secrets:   store,
		Toolchain: tc,
		Runner:    runner,
		Scanner:   scanner,
		Deployer:  deployer,
		Notifier:  notify.New(p.Notifications...),
	}, nil
}

// Plan resolves the stages a trigger actually gets. Fork-origin runs
// never plan the audit stage, the scanner credentials are withheld
// from them, so the stage is left out of the run instead of failing
// inside it.
func Plan(p *pipeline.Pipeline, t trigger.Trigger) []string {
	stages := []string{}
	for _, stage := range p.Stages {
		if stage == pipeline.StageAudit && t.ForkOrigin {
			logrus.Debugf("dropping %s stage from fork-origin plan", stage)
			continue
		}
		stages = append(stages, stage)
	}
	return stages
}

// Execute runs the planned stages in order, stopping at the first
// failure. Every step gets exactly one attempt. The report is returned
// even when the run fails.
func (e *Engine) Execute(ctx context.Context) (*run.Run, error) {
	r := run.New(e.Trigger)
	logrus.Infof(
		"starting run %s: %s on %s", r.ID, e.Trigger.Event, e.Trigger.Repository,
	)

	if err := e.prepare(ctx, r); err != nil {
		return e.abort(ctx, r, err)
	}

	for _, stage := range Plan(e.Pipeline, e.Trigger) {
		var err error
		switch stage {
		case pipeline.StageTest:
			err = e.test(ctx, r)
		case pipeline.StageAudit:
			err = e.audit(ctx, r)
		case pipeline.StageDeploy:
			err = e.deploy(ctx, r)
		default:
			err = fmt.Errorf("plan carries unknown stage %q", stage)
		}
		if err != nil {
			return e.abort(ctx, r, err)
		}
	}

	if err := r.Advance(run.PhaseDone); err != nil {
		return e.abort(ctx, r, err)
	}
	r.Finish(true)
	logrus.Infof("run %s finished successfully", r.ID)

	e.verify(ctx, r)
	e.Notifier.Send(ctx, r)
	return r, nil
}

// prepare sets up the environment every stage relies on. A preparation
// failure halts the run before the first declared stage starts.
func (e *Engine) prepare(ctx context.Context, r *run.Run) error {
	if err := r.Advance(run.PhasePreparing); err != nil {
		return err
	}
	stage := r.StartStage(StagePrepare)
	defer stage.Close()

	if err := e.Toolchain.CheckManifests(e.Options.Workspace, e.Pipeline.Install); err != nil {
		stage.Status = run.StatusFailure
		return fmt.Errorf("checking dependency manifests: %w", err)
	}

	results, err := e.Runner.RunSteps(ctx, e.Toolchain.InstallSteps(e.Pipeline.Install))
	for _, res := range results {
		stage.AddStep(res)
	}
	if err != nil {
		stage.Status = run.StatusFailure
		return fmt.Errorf("preparing environment: %w", err)
	}
	return nil
}

func (e *Engine) test(ctx context.Context, r *run.Run) error {
	if err := r.Advance(run.PhaseTesting); err != nil {
		return err
	}
	stage := r.StartStage(pipeline.StageTest)
	defer stage.Close()

	results, err := e.Runner.RunSteps(ctx, e.Toolchain.TestSteps(e.Pipeline.Script))
	for _, res := range results {
		stage.AddStep(res)
	}
	if err != nil {
		stage.Status = run.StatusFailure
		return fmt.Errorf("test stage: %w", err)
	}
	return nil
}

// audit installs the license scanner and runs the analysis. Only
// canonical runs get here, fork-origin plans drop the stage.
func (e *Engine) audit(ctx context.Context, r *run.Run) error {
	if err := r.Advance(run.PhaseAuditing); err != nil {
		return err
	}
	stage := r.StartStage(pipeline.StageAudit)
	defer stage.Close()

	for _, call := range []func(context.Context) (*run.StepResult, error){
		e.Scanner.InstallTool,
		e.Scanner.Init,
		e.Scanner.Analyze,
	} {
		res, err := call(ctx)
		if res != nil {
			stage.AddStep(*res)
		}
		if err != nil {
			stage.Status = run.StatusFailure
			return fmt.Errorf("audit stage: %w", err)
		}
	}
	return nil
}

// deploy builds the distributions and publishes them. The stage opens
// on every planned run, triggers that do not publish close it as a
// success carrying the reason instead of steps.
func (e *Engine) deploy(ctx context.Context, r *run.Run) error {
	if err := r.Advance(run.PhaseDeploying); err != nil {
		return err
	}
	stage := r.StartStage(pipeline.StageDeploy)
	defer stage.Close()

	should, reason := e.Deployer.ShouldUpload(e.Trigger)
	if !should {
		stage.Reason = reason
		logrus.Infof("not publishing: %s", reason)
		return nil
	}

	results, err := e.Deployer.BuildDistributions(ctx)
	for _, res := range results {
		stage.AddStep(res)
	}
	if err != nil {
		stage.Status = run.StatusFailure
		return fmt.Errorf("deploy stage: %w", err)
	}

	artifacts, err := e.Deployer.CollectArtifacts(ctx)
	if err != nil {
		stage.Status = run.StatusFailure
		return fmt.Errorf("deploy stage: %w", err)
	}
	r.Artifacts = artifacts

	if err := e.Deployer.Upload(ctx, r); err != nil {
		stage.Status = run.StatusFailure
		return fmt.Errorf("deploy stage: %w", err)
	}
	stage.Reason = fmt.Sprintf(
		"%d distributions uploaded, %d already in the index",
		len(r.Uploaded), len(r.Skipped),
	)
	return nil
}

// verify runs the scanner verification hook after a successful run.
// Its outcome lands in the report but can never change the run status,
// a run that reached done successfully stays successful.
func (e *Engine) verify(ctx context.Context, r *run.Run) {
	if !r.IsSuccess || r.Phase != run.PhaseDone {
		return
	}
	if !e.Pipeline.HasStage(pipeline.StageAudit) || e.Trigger.ForkOrigin {
		return
	}

	res, err := e.Scanner.Verify(ctx)
	if res != nil {
		r.Verification = res
	}
	if err != nil {
		logrus.Warnf("verification hook reported a problem: %v", err)
	}
}

// abort closes a failing run. Listeners are notified of failures too,
// the verification hook is not run for them.
func (e *Engine) abort(ctx context.Context, r *run.Run, err error) (*run.Run, error) {
	if r.Phase != run.PhaseDone {
		if aerr := r.Advance(run.PhaseDone); aerr != nil {
			logrus.Warnf("closing failed run: %v", aerr)
		}
	}
	r.Finish(false)
	logrus.Errorf("run %s failed: %v", r.ID, err)
	e.Notifier.Send(ctx, r)
	return r, err
}
