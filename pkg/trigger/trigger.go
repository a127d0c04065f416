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

package trigger

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Event is the kind of repository event that caused a run
type Event string

const (
	// EventPush is a plain branch push
	EventPush Event = "push"
	// EventPullRequest is a proposed change, possibly from a fork
	EventPullRequest Event = "pull_request"
	// EventTag is a push whose ref is a tag. It is the only event
	// that publishes artifacts.
	EventTag Event = "tag"
)

// ErrNoTrigger is returned when no CI environment describes the run
var ErrNoTrigger = errors.New("no trigger data found in the environment")

// Trigger describes what caused a pipeline run. It is resolved once
// before the run starts, the stages never read the CI environment
// themselves.
type Trigger struct {
	Event      Event  `json:"event"`
	Ref        string `json:"ref,omitempty"`
	Tag        string `json:"tag,omitempty"`
	Commit     string `json:"commit,omitempty"`
	Repository string `json:"repository,omitempty"`

	// ForkOrigin is true when the head of the change lives in a
	// repository other than the canonical one. Fork-origin runs
	// never see secrets.
	ForkOrigin bool `json:"forkOrigin"`
}

// Validate checks the trigger data is coherent
func (t *Trigger) Validate() error {
	errs := []error{}
	switch t.Event {
	case EventPush, EventPullRequest, EventTag:
	case "":
		errs = append(errs, errors.New("trigger has no event"))
	default:
		errs = append(errs, fmt.Errorf("unknown trigger event %q", t.Event))
	}

	if t.Event == EventTag && t.Tag == "" {
		errs = append(errs, errors.New("tag events carry the pushed tag"))
	}

	if t.Commit != "" {
		if _, err := hex.DecodeString(t.Commit); err != nil {
			errs = append(errs, fmt.Errorf("commit %q is not a hex digest", t.Commit))
		}
	}
	return errors.Join(errs...)
}
