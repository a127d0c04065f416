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

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sigs.k8s.io/release-utils/log"
	"sigs.k8s.io/release-utils/version"
)

func Execute() error {
	rootCmd := &cobra.Command{
		Short: "A release pipeline runner for package projects",
		Long: `malacate (a winch, the thing that hoists things up)

🪝 malacate runs the release pipeline of a package project: it
prepares the build environment, runs the test suite, audits the
dependency licenses and publishes the built distributions to a
package index.

The pipeline reads its definition from .malacate.yaml in the
repository and resolves what to do from the event that triggered
it. Tag pushes publish, pull requests never do, and runs born in
forked repositories get no secrets at all.

In its simplest form, run it at the repository root:

	malacate run

and it will detect the hosted CI environment it runs under (or
probe the local checkout) and execute the stages that trigger
gets.

	`,
		Use:               "malacate",
		SilenceUsage:      false,
		PersistentPreRunE: initLogging,
	}

	rootCmd.PersistentFlags().StringVar(
		&commandLineOpts.logLevel,
		"log-level",
		"info",
		fmt.Sprintf("the logging verbosity, either %s", log.LevelNames()),
	)

	addRun(rootCmd)
	addPlan(rootCmd)
	addAttest(rootCmd)
	rootCmd.AddCommand(version.WithFont("larry3d"))

	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
		return err
	}
	return nil
}

type commandLineOptions struct {
	logLevel string
}

var commandLineOpts = &commandLineOptions{}

func initLogging(*cobra.Command, []string) error {
	return log.SetupGlobalLogger(commandLineOpts.logLevel)
}
