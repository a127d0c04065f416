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

package run

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"sigs.k8s.io/malacate/pkg/trigger"
)

// Run captures everything a single pipeline execution did: the trigger
// that caused it, the stages that ran and their steps, the artifacts it
// built and what happened to each of them on the package index.
type Run struct {
	ID           string          `json:"id"`
	Trigger      trigger.Trigger `json:"trigger"`
	Phase        Phase           `json:"phase"`
	IsSuccess    bool            `json:"success"`
	IsRunning    bool            `json:"running"`
	Stages       []*StageResult  `json:"stages"`
	Verification *StepResult     `json:"verification,omitempty"`
	Artifacts    []Artifact      `json:"artifacts"`
	Uploaded     []string        `json:"uploaded"`
	Skipped      []string        `json:"skipped"`
	StartTime    time.Time       `json:"startTime"`
	EndTime      time.Time       `json:"endTime"`
	SystemData   interface{}     `json:"systemData,omitempty"`
}

// New creates a run in its initial phase
func New(t trigger.Trigger) *Run {
	return &Run{
		ID:        fmt.Sprintf("malacate-run-%d", time.Now().UnixNano()),
		Trigger:   t,
		Phase:     PhasePending,
		IsRunning: true,
		Stages:    []*StageResult{},
		Artifacts: []Artifact{},
		Uploaded:  []string{},
		Skipped:   []string{},
		StartTime: time.Now(),
	}
}

// Step is a command the exec runner can execute as part of a stage
type Step struct {
	Command     string            // Command run
	Params      []string          // Arguments to the command
	Dir         string            // Working directory, runner default when empty
	Environment map[string]string // Extra variables appended to the process env
}

// StepResult records the outcome of one executed step
type StepResult struct {
	Command   string    `json:"command"`
	Params    []string  `json:"params"`
	Status    Status    `json:"status"`
	ExitCode  int       `json:"exitCode"`
	Output    string    `json:"output,omitempty"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// StageResult records what one pipeline stage did. Stages that were
// planned but had nothing to do (a deploy slot on a non-tag build)
// succeed with a reason string instead of steps.
type StageResult struct {
	Name      string       `json:"name"`
	Status    Status       `json:"status"`
	Reason    string       `json:"reason,omitempty"`
	Steps     []StepResult `json:"steps"`
	StartTime time.Time    `json:"startTime"`
	EndTime   time.Time    `json:"endTime"`
}

// AddStep appends a step result, downgrading the stage on failure
func (s *StageResult) AddStep(res StepResult) {
	s.Steps = append(s.Steps, res)
	if res.Status == StatusFailure {
		s.Status = StatusFailure
	}
}

// Close seals the stage result. A stage closing while still marked
// running finished all its steps and closes as a success.
func (s *StageResult) Close() {
	s.EndTime = time.Now()
	if s.Status == StatusRunning {
		s.Status = StatusSuccess
	}
}

// Artifact abstracts a file with the items we're interested in publishing
type Artifact struct {
	Path     string            `json:"path"`
	Filename string            `json:"filename"`
	Checksum map[string]string `json:"checksum"`
	Time     time.Time         `json:"time"`
}

// StartStage opens a new stage result and registers it on the run
func (r *Run) StartStage(name string) *StageResult {
	stage := &StageResult{
		Name:      name,
		Status:    StatusRunning,
		Steps:     []StepResult{},
		StartTime: time.Now(),
	}
	r.Stages = append(r.Stages, stage)
	return stage
}

// Stage returns the result of a named stage or nil when it never ran
func (r *Run) Stage(name string) *StageResult {
	for _, s := range r.Stages {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Finish seals the run with its terminal status
func (r *Run) Finish(success bool) {
	r.IsRunning = false
	r.IsSuccess = success
	r.EndTime = time.Now()
}

// WriteReport encodes the run report as JSON
func (r *Run) WriteReport(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding run report: %w", err)
	}
	return nil
}

// WriteReportFile writes the run report to a file
func (r *Run) WriteReportFile(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("opening report path %s for writing: %w", path, err)
	}
	defer out.Close()

	return r.WriteReport(out)
}
