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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"sigs.k8s.io/malacate/pkg/git"
)

// FromEnv assembles a trigger from the hosted CI environment. Travis
// style variables are checked first, then GitHub Actions. Returns
// ErrNoTrigger when neither is present.
func FromEnv() (Trigger, error) {
	if os.Getenv("TRAVIS") != "" {
		return fromTravisEnv()
	}
	if os.Getenv("GITHUB_ACTIONS") != "" {
		return fromGitHubEnv()
	}
	return Trigger{}, ErrNoTrigger
}

func fromTravisEnv() (Trigger, error) {
	t := Trigger{
		Commit:     os.Getenv("TRAVIS_COMMIT"),
		Repository: os.Getenv("TRAVIS_REPO_SLUG"),
		Ref:        os.Getenv("TRAVIS_BRANCH"),
	}

	switch os.Getenv("TRAVIS_EVENT_TYPE") {
	case "pull_request":
		t.Event = EventPullRequest
		// A pull request is fork-origin unless its head slug matches
		// the canonical repository slug. No slug at all means the
		// platform never vouched for the head, gate it too.
		prSlug := os.Getenv("TRAVIS_PULL_REQUEST_SLUG")
		if prSlug == "" {
			logrus.Warn("pull request has no head slug, treating as fork-origin")
			t.ForkOrigin = true
		} else {
			t.ForkOrigin = prSlug != t.Repository
		}
	case "push", "api", "cron":
		t.Event = EventPush
	case "":
		return t, fmt.Errorf("%w: TRAVIS_EVENT_TYPE not set", ErrNoTrigger)
	default:
		return t, fmt.Errorf("unknown travis event type %q", os.Getenv("TRAVIS_EVENT_TYPE"))
	}

	// Tag builds are push builds with the tag set
	if tag := os.Getenv("TRAVIS_TAG"); tag != "" && t.Event == EventPush {
		t.Event = EventTag
		t.Tag = tag
		t.Ref = tag
	}
	return t, nil
}

// pullRequestPayload is the part of the event payload we care about
type pullRequestPayload struct {
	PullRequest struct {
		Head struct {
			Repo struct {
				Fork     bool   `json:"fork"`
				FullName string `json:"full_name"`
			} `json:"repo"`
		} `json:"head"`
	} `json:"pull_request"`
}

func fromGitHubEnv() (Trigger, error) {
	t := Trigger{
		Commit:     os.Getenv("GITHUB_SHA"),
		Repository: os.Getenv("GITHUB_REPOSITORY"),
		Ref:        os.Getenv("GITHUB_REF"),
	}

	switch os.Getenv("GITHUB_EVENT_NAME") {
	case "pull_request", "pull_request_target":
		t.Event = EventPullRequest
		fork, err := readPayloadForkFlag(os.Getenv("GITHUB_EVENT_PATH"), t.Repository)
		if err != nil {
			return t, fmt.Errorf("reading event payload: %w", err)
		}
		t.ForkOrigin = fork
	case "push", "workflow_dispatch", "schedule":
		t.Event = EventPush
	case "":
		return t, fmt.Errorf("%w: GITHUB_EVENT_NAME not set", ErrNoTrigger)
	default:
		return t, fmt.Errorf("unknown github event %q", os.Getenv("GITHUB_EVENT_NAME"))
	}

	if t.Event == EventPush && strings.HasPrefix(t.Ref, "refs/tags/") {
		t.Event = EventTag
		t.Tag = strings.TrimPrefix(t.Ref, "refs/tags/")
	}
	return t, nil
}

// readPayloadForkFlag parses the bits of the event payload that say
// where the pull request head lives. Secrets gating errs on the side
// of treating a pull request with no payload as fork-origin.
func readPayloadForkFlag(path, repository string) (bool, error) {
	if path == "" {
		logrus.Warn("pull request has no event payload, treating as fork-origin")
		return true, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return true, fmt.Errorf("reading event payload %s: %w", path, err)
	}

	payload := pullRequestPayload{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return true, fmt.Errorf("unmarshalling event payload: %w", err)
	}

	head := payload.PullRequest.Head.Repo
	if head.FullName == "" {
		logrus.Warn("event payload has no head repository, treating as fork-origin")
		return true, nil
	}
	return head.Fork || head.FullName != repository, nil
}

// FromRepository builds a trigger by looking at a local checkout. A
// tag pointing at HEAD makes it a tag event, anything else is a push.
func FromRepository(dir string) (Trigger, error) {
	repo := git.NewRepository(dir)

	commit, err := repo.HeadCommit()
	if err != nil {
		return Trigger{}, fmt.Errorf("reading repository head: %w", err)
	}

	t := Trigger{
		Event:  EventPush,
		Commit: commit,
	}

	tag, err := repo.TagAtHead()
	if err != nil {
		return t, fmt.Errorf("checking for tag at head: %w", err)
	}
	if tag != "" {
		t.Event = EventTag
		t.Tag = tag
		t.Ref = tag
	}

	if url, err := repo.SourceURL(); err == nil && url != "" {
		t.Repository = url
	}
	return t, nil
}

// Resolve produces the trigger for a run: hosted CI environment first,
// the local repository as fallback, explicit overrides always win.
func Resolve(workspace string, overrides Trigger) (Trigger, error) {
	t, err := FromEnv()
	if err != nil {
		if !errors.Is(err, ErrNoTrigger) {
			return t, fmt.Errorf("reading trigger from environment: %w", err)
		}
		logrus.Debugf("no CI environment found, probing repository at %s", workspace)
		t, err = FromRepository(workspace)
		if err != nil {
			return t, fmt.Errorf("resolving trigger from repository: %w", err)
		}
	}

	if overrides.Event != "" {
		t.Event = overrides.Event
	}
	if overrides.Ref != "" {
		t.Ref = overrides.Ref
	}
	if overrides.Tag != "" {
		t.Tag = overrides.Tag
		if overrides.Event == "" {
			t.Event = EventTag
		}
	}
	if overrides.Commit != "" {
		t.Commit = overrides.Commit
	}
	if overrides.Repository != "" {
		t.Repository = overrides.Repository
	}
	// The flag can only force fork-origin on, never launder it off
	if overrides.ForkOrigin {
		t.ForkOrigin = true
	}

	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("validating trigger: %w", err)
	}
	return t, nil
}
