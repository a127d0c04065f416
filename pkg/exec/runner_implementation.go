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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"strings"
	"time"

	"sigs.k8s.io/malacate/pkg/run"
)

type RunnerImplementation interface {
	CreateInvocation(context.Context, *Options, *run.Step) (*Invocation, error)
	Execute(*Options, *Invocation) error
}

// Invocation is one prepared command execution
type Invocation struct {
	Cmd       *osexec.Cmd
	Step      *run.Step
	Output    bytes.Buffer
	ExitCode  int
	StartTime time.Time
	EndTime   time.Time
}

type defaultRunnerImplementation struct{}

// CreateInvocation builds the command described by the step
func (ri *defaultRunnerImplementation) CreateInvocation(
	ctx context.Context, opts *Options, step *run.Step,
) (invocation *Invocation, err error) {
	cwd := step.Dir
	if cwd == "" {
		cwd = opts.CWD
	}
	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting current directory: %w", err)
		}
	}

	if _, err := osexec.LookPath(step.Command); err != nil {
		return nil, fmt.Errorf("executable %q not found: %w", step.Command, err)
	}

	cmd := osexec.CommandContext(ctx, step.Command, step.Params...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	for k, v := range step.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	opts.logger().Infof(
		"Executing command: %s %s", step.Command, strings.Join(step.Params, " "),
	)
	return &Invocation{
		Cmd:  cmd,
		Step: step,
	}, nil
}

// Execute runs the invocation, capturing its combined output. The
// output is also streamed through when running verbose.
func (ri *defaultRunnerImplementation) Execute(opts *Options, invocation *Invocation) error {
	var stdout, stderr io.Writer = &invocation.Output, &invocation.Output
	if opts.Verbose {
		stdout = io.MultiWriter(os.Stdout, &invocation.Output)
		stderr = io.MultiWriter(os.Stderr, &invocation.Output)
	}
	invocation.Cmd.Stdout = stdout
	invocation.Cmd.Stderr = stderr

	invocation.StartTime = time.Now()
	err := invocation.Cmd.Run()
	invocation.EndTime = time.Now()

	if err != nil {
		var exitErr *osexec.ExitError
		if errors.As(err, &exitErr) {
			invocation.ExitCode = exitErr.ExitCode()
			return fmt.Errorf("command exited with code %d: %w", invocation.ExitCode, err)
		}
		invocation.ExitCode = -1
		return fmt.Errorf("starting command: %w", err)
	}

	invocation.ExitCode = 0
	return nil
}
