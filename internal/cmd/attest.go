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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"sigs.k8s.io/malacate/pkg/attestation"
	"sigs.k8s.io/malacate/pkg/run"
)

type attestOptions struct {
	outputPath  string
	slsaVersion string
	sign        bool
	keyPath     string
	vcsURL      string
	configFile  string
}

var slsaVersions = []string{"0.2", "1", "1.0"}

func (o *attestOptions) Validate() error {
	errs := []error{}
	if !slices.Contains(slsaVersions, o.slsaVersion) {
		errs = append(errs, fmt.Errorf("invalid slsa version, must be one of %v", slsaVersions))
	}
	if o.keyPath != "" && !o.sign {
		errs = append(errs, errors.New("a signing key was set but --sign was not"))
	}
	return errors.Join(errs...)
}

func addAttest(parentCmd *cobra.Command) {
	attestOpts := attestOptions{}

	attestCmd := &cobra.Command{
		Short: "Attest to a finished pipeline run",
		Long: `malacate attest report.json

The attest subcommand reads the report of a finished pipeline run
and generates a SLSA provenance attestation from it. The published
distributions become the statement subjects, the trigger and the
stage outcomes land in the predicate.

The attestation is printed to STDOUT unless --output names a file.
	`,
		Use:               "attest",
		SilenceUsage:      false,
		PersistentPreRunE: initLogging,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("run report not specified")
			}

			if err := attestOpts.Validate(); err != nil {
				return fmt.Errorf("validating options: %w", err)
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading run report: %w", err)
			}

			r := &run.Run{}
			if err := json.Unmarshal(data, r); err != nil {
				return fmt.Errorf("unmarshaling run report: %w", err)
			}

			att, err := attestation.FromRun(r, attestation.Options{
				SLSAVersion: attestOpts.slsaVersion,
				VCSURL:      attestOpts.vcsURL,
				ConfigFile:  attestOpts.configFile,
			})
			if err != nil {
				return fmt.Errorf("generating run attestation: %w", err)
			}

			var attJSON []byte
			if attestOpts.sign {
				attJSON, err = att.Sign(cmd.Context(), attestation.SignOptions{
					KeyPath: attestOpts.keyPath,
				})
			} else {
				attJSON, err = att.ToJSON()
			}
			if err != nil {
				return fmt.Errorf("serializing attestation: %w", err)
			}

			if attestOpts.outputPath != "" {
				if err := os.WriteFile(attestOpts.outputPath, attJSON, os.FileMode(0o644)); err != nil {
					return fmt.Errorf("writing attestation file: %w", err)
				}
				return nil
			}

			fmt.Println(string(attJSON))
			return nil
		},
	}

	attestCmd.PersistentFlags().StringVar(
		&attestOpts.outputPath,
		"output",
		"",
		"file to store the attestation (instead of STDOUT)",
	)
	attestCmd.PersistentFlags().StringVar(
		&attestOpts.slsaVersion,
		"slsa",
		"0.2",
		fmt.Sprintf("SLSA attestation version %v", slsaVersions),
	)
	attestCmd.PersistentFlags().BoolVar(
		&attestOpts.sign,
		"sign",
		false,
		"sign the attestation",
	)
	attestCmd.PersistentFlags().StringVar(
		&attestOpts.keyPath,
		"key",
		"",
		"path to the signing key, keyless signing when empty",
	)
	attestCmd.PersistentFlags().StringVar(
		&attestOpts.vcsURL,
		"vcs-url",
		"",
		"VCS url for the attestation materials",
	)
	attestCmd.PersistentFlags().StringVar(
		&attestOpts.configFile,
		"config",
		"",
		"pipeline definition recorded as the build entry point",
	)

	parentCmd.AddCommand(attestCmd)
}
