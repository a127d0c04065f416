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
	"testing"

	"github.com/stretchr/testify/require"

	"sigs.k8s.io/malacate/pkg/run"
)

func shellStep(script string) *run.Step {
	return &run.Step{
		Command: "/bin/sh",
		Params:  []string{"-c", script},
	}
}

func TestRunStep(t *testing.T) {
	runner := NewRunner()
	runner.Options.CWD = t.TempDir()

	res, err := runner.RunStep(context.Background(), shellStep("echo hello"))
	require.NoError(t, err)
	require.Equal(t, run.StatusSuccess, res.Status)
	require.Equal(t, 0, res.ExitCode)
	require.Contains(t, res.Output, "hello")
	require.False(t, res.EndTime.Before(res.StartTime))
}

func TestRunStepFailure(t *testing.T) {
	runner := NewRunner()
	runner.Options.CWD = t.TempDir()

	res, err := runner.RunStep(context.Background(), shellStep("exit 12"))
	require.Error(t, err)
	require.NotNil(t, res)
	require.Equal(t, run.StatusFailure, res.Status)
	require.Equal(t, 12, res.ExitCode)
}

func TestRunStepMissingExecutable(t *testing.T) {
	runner := NewRunner()

	res, err := runner.RunStep(context.Background(), &run.Step{
		Command: "malacate-test-no-such-binary",
	})
	require.Error(t, err)
	require.Nil(t, res)
}

func TestRunStepEnvironment(t *testing.T) {
	runner := NewRunner()
	runner.Options.CWD = t.TempDir()

	step := shellStep("echo var=${MALACATE_TEST_VAR}")
	step.Environment = map[string]string{"MALACATE_TEST_VAR": "hoisted"}

	res, err := runner.RunStep(context.Background(), step)
	require.NoError(t, err)
	require.Contains(t, res.Output, "var=hoisted")
}

func TestRunStepsStopsAtFailure(t *testing.T) {
	runner := NewRunner()
	runner.Options.CWD = t.TempDir()

	steps := []run.Step{
		*shellStep("echo one"),
		*shellStep("exit 1"),
		*shellStep("echo never"),
	}
	results, err := runner.RunSteps(context.Background(), steps)
	require.Error(t, err)
	require.Len(t, results, 2)
	require.Equal(t, run.StatusSuccess, results[0].Status)
	require.Equal(t, run.StatusFailure, results[1].Status)
}
