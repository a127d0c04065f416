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
	"io"

	"github.com/spf13/cobra"

	"sigs.k8s.io/malacate/pkg/engine"
	"sigs.k8s.io/malacate/pkg/pipeline"
	"sigs.k8s.io/malacate/pkg/trigger"
)

func addPlan(parentCmd *cobra.Command) {
	var pipelineOpts *pipelineOptions
	var triggerOpts *triggerOptions

	planCmd := &cobra.Command{
		Short: "Show the stages a trigger would run",
		Long: `malacate plan

The plan subcommand resolves the trigger and prints the stages the
run would execute, without executing anything. A fork-origin
trigger gets no audit stage: it is dropped from the plan entirely,
not marked as skipped.
	`,
		Use:               "plan",
		SilenceUsage:      false,
		PersistentPreRunE: initLogging,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := pipelineOpts.Load()
			if err != nil {
				return fmt.Errorf("loading pipeline: %w", err)
			}

			trig, err := triggerOpts.Resolve(pipelineOpts.Workspace)
			if err != nil {
				return fmt.Errorf("resolving trigger: %w", err)
			}

			printPlan(cmd.OutOrStdout(), p, trig)
			return nil
		},
	}

	pipelineOpts = addPipelineFlags(planCmd)
	triggerOpts = addTriggerFlags(planCmd)
	parentCmd.AddCommand(planCmd)
}

// printPlan writes the stage list a trigger resolves to
func printPlan(w io.Writer, p *pipeline.Pipeline, trig trigger.Trigger) {
	origin := "canonical"
	if trig.ForkOrigin {
		origin = "fork-origin"
	}

	stages := append([]string{engine.StagePrepare}, engine.Plan(p, trig)...)
	fmt.Fprintf(w, "%s event, %s origin, %d stages:\n", trig.Event, origin, len(stages))
	for _, stage := range stages {
		fmt.Fprintln(w, "  "+stage)
	}
}
