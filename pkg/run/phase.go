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

import "fmt"

// Status is the outcome of a step or stage
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// Phase is where the run currently is in its lifecycle. The auditing
// phase is skipped entirely when the plan carries no audit stage, the
// deploying phase is always entered (the upload inside it may be a
// no-op). A failing run jumps to done from wherever it was.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhasePreparing Phase = "preparing"
	PhaseTesting   Phase = "testing"
	PhaseAuditing  Phase = "auditing"
	PhaseDeploying Phase = "deploying"
	PhaseDone      Phase = "done"
)

var phaseTransitions = map[Phase][]Phase{
	PhasePending:   {PhasePreparing, PhaseDone},
	PhasePreparing: {PhaseTesting, PhaseDone},
	PhaseTesting:   {PhaseAuditing, PhaseDeploying, PhaseDone},
	PhaseAuditing:  {PhaseDeploying, PhaseDone},
	PhaseDeploying: {PhaseDone},
	PhaseDone:      {},
}

// Advance moves the run to the next phase, rejecting transitions that
// skip ahead or move backwards.
func (r *Run) Advance(to Phase) error {
	legal, ok := phaseTransitions[r.Phase]
	if !ok {
		return fmt.Errorf("run is in unknown phase %q", r.Phase)
	}
	for _, p := range legal {
		if p == to {
			r.Phase = to
			return nil
		}
	}
	return fmt.Errorf("illegal phase transition %s -> %s", r.Phase, to)
}
