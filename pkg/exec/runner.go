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

package exec

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"sigs.k8s.io/malacate/pkg/run"
)

func NewRunner() *Runner {
	return &Runner{
		Options: Options{
			Logger: logrus.StandardLogger(),
		},
		implementation: &defaultRunnerImplementation{},
	}
}

type Runner struct {
	Options        Options
	implementation RunnerImplementation
}

type Options struct {
	Verbose bool
	CWD     string
	Logger  *logrus.Logger
}

func (o *Options) logger() *logrus.Logger {
	if o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}

// SetImplementation swaps the execution backend
func (r *Runner) SetImplementation(impl RunnerImplementation) {
	r.implementation = impl
}

// RunStep executes a step, giving it exactly one attempt. A step that
// exits non-zero produces both a failed result and an error, callers
// decide whether the failure stops the pipeline.
func (r *Runner) RunStep(ctx context.Context, step *run.Step) (*run.StepResult, error) {
	invocation, err := r.implementation.CreateInvocation(ctx, &r.Options, step)
	if err != nil {
		return nil, fmt.Errorf("getting step command and arguments: %w", err)
	}

	execErr := r.implementation.Execute(&r.Options, invocation)

	result := &run.StepResult{
		Command:   step.Command,
		Params:    step.Params,
		Status:    run.StatusSuccess,
		ExitCode:  invocation.ExitCode,
		Output:    invocation.Output.String(),
		StartTime: invocation.StartTime,
		EndTime:   invocation.EndTime,
	}

	if execErr != nil {
		result.Status = run.StatusFailure
		return result, fmt.Errorf("executing step: %w", execErr)
	}
	return result, nil
}

// RunSteps executes steps in order, stopping at the first failure
func (r *Runner) RunSteps(ctx context.Context, steps []run.Step) ([]run.StepResult, error) {
	results := []run.StepResult{}
	for i := range steps {
		res, err := r.RunStep(ctx, &steps[i])
		if res != nil {
			results = append(results, *res)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
