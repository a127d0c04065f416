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
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sigs.k8s.io/malacate/pkg/attestation"
	"sigs.k8s.io/malacate/pkg/engine"
	"sigs.k8s.io/malacate/pkg/notify"
	"sigs.k8s.io/malacate/pkg/run"
)

type runOptions struct {
	report      string
	attest      string
	slsaVersion string
	sign        bool
	keyPath     string
	vcsURL      string
	indexURL    string
	notify      []string
	verbose     bool
	dryRun      bool
}

func (o *runOptions) Validate() error {
	errs := []error{}
	if o.sign && o.attest == "" {
		errs = append(errs, errors.New("signing requested but no attestation path set"))
	}
	if o.attest != "" && !slices.Contains(slsaVersions, o.slsaVersion) {
		errs = append(errs, fmt.Errorf("invalid slsa version, must be one of %v", slsaVersions))
	}
	return errors.Join(errs...)
}

func addRun(parentCmd *cobra.Command) {
	runOpts := runOptions{}
	var pipelineOpts *pipelineOptions
	var triggerOpts *triggerOptions

	runCmd := &cobra.Command{
		Short: "Execute the release pipeline",
		Long: `malacate run

The run subcommand executes the release pipeline: it prepares the
build environment and then runs the planned stages strictly in
order. Every step gets exactly one attempt and the first failure
stops the run.

Which stages run depends on the trigger. malacate detects it from
the hosted CI environment (or the local checkout), and the trigger
flags override whatever was detected, so a tag publication can be
rehearsed against a throwaway index:

	malacate run --event tag --tag v1.0.0 --index file:///tmp/index

	`,
		Use:               "run",
		SilenceUsage:      false,
		PersistentPreRunE: initLogging,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := runOpts.Validate(); err != nil {
				return fmt.Errorf("validating options: %w", err)
			}

			p, err := pipelineOpts.Load()
			if err != nil {
				return fmt.Errorf("loading pipeline: %w", err)
			}

			trig, err := triggerOpts.Resolve(pipelineOpts.Workspace)
			if err != nil {
				return fmt.Errorf("resolving trigger: %w", err)
			}

			if runOpts.dryRun {
				printPlan(cmd.OutOrStdout(), p, trig)
				return nil
			}

			eng, err := engine.New(p, trig, engine.Options{
				Workspace: pipelineOpts.Workspace,
				IndexURL:  runOpts.indexURL,
				Verbose:   runOpts.verbose,
			})
			if err != nil {
				return fmt.Errorf("assembling pipeline engine: %w", err)
			}
			if len(runOpts.notify) > 0 {
				eng.Notifier = notify.New(append(p.Notifications, runOpts.notify...)...)
			}

			r, runErr := eng.Execute(cmd.Context())

			// Failed runs get their report written too
			if r != nil && runOpts.report != "" {
				if err := r.WriteReportFile(runOpts.report); err != nil {
					return errors.Join(runErr, fmt.Errorf("writing run report: %w", err))
				}
			}
			if runErr != nil {
				return fmt.Errorf("executing pipeline: %w", runErr)
			}

			if runOpts.attest != "" {
				return writeAttestation(cmd, r, &runOpts, pipelineOpts)
			}
			return nil
		},
	}

	runCmd.PersistentFlags().StringVarP(
		&runOpts.report,
		"report",
		"o",
		"",
		"file to write the run report to",
	)
	runCmd.PersistentFlags().StringVar(
		&runOpts.attest,
		"attest",
		"",
		"file to write a provenance attestation of the run",
	)
	runCmd.PersistentFlags().StringVar(
		&runOpts.slsaVersion,
		"slsa",
		"0.2",
		fmt.Sprintf("SLSA attestation version %v", slsaVersions),
	)
	runCmd.PersistentFlags().BoolVar(
		&runOpts.sign,
		"sign",
		false,
		"sign the attestation",
	)
	runCmd.PersistentFlags().StringVar(
		&runOpts.keyPath,
		"key",
		"",
		"path to the signing key, keyless signing when empty",
	)
	runCmd.PersistentFlags().StringVar(
		&runOpts.vcsURL,
		"vcs-url",
		"",
		"VCS url for the attestation materials, probed from the workspace when empty",
	)
	runCmd.PersistentFlags().StringVar(
		&runOpts.indexURL,
		"index",
		"",
		"override the package index the deploy stage publishes to",
	)
	runCmd.PersistentFlags().StringSliceVar(
		&runOpts.notify,
		"notify",
		[]string{},
		"additional notification targets for the run report",
	)
	runCmd.PersistentFlags().BoolVar(
		&runOpts.verbose,
		"verbose",
		false,
		"stream the output of the pipeline steps",
	)
	runCmd.PersistentFlags().BoolVar(
		&runOpts.dryRun,
		"dry-run",
		false,
		"print the stage plan and exit without executing anything",
	)

	pipelineOpts = addPipelineFlags(runCmd)
	triggerOpts = addTriggerFlags(runCmd)
	parentCmd.AddCommand(runCmd)
}

func writeAttestation(cmd *cobra.Command, r *run.Run, runOpts *runOptions, pipelineOpts *pipelineOptions) error {
	opts := attestation.Options{
		SLSAVersion: runOpts.slsaVersion,
		VCSURL:      runOpts.vcsURL,
		ConfigFile:  pipelineOpts.ConfigFile,
	}
	if opts.VCSURL == "" {
		url, err := readVCSURL(pipelineOpts.Workspace)
		if err != nil {
			logrus.Debugf("could not probe the workspace VCS URL: %v", err)
		}
		opts.VCSURL = url
	}

	att, err := attestation.FromRun(r, opts)
	if err != nil {
		return fmt.Errorf("generating provenance attestation: %w", err)
	}

	var data []byte
	if runOpts.sign {
		data, err = att.Sign(cmd.Context(), attestation.SignOptions{KeyPath: runOpts.keyPath})
	} else {
		data, err = att.ToJSON()
	}
	if err != nil {
		return fmt.Errorf("serializing attestation: %w", err)
	}

	if err := os.WriteFile(runOpts.attest, data, os.FileMode(0o644)); err != nil {
		return fmt.Errorf("writing attestation file: %w", err)
	}
	logrus.Infof("provenance attestation written to %s", runOpts.attest)
	return nil
}
