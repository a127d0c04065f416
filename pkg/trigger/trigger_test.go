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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// clearCIEnv blanks the hosted CI markers so tests control detection
func clearCIEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"TRAVIS", "TRAVIS_EVENT_TYPE", "TRAVIS_TAG", "TRAVIS_COMMIT",
		"TRAVIS_BRANCH", "TRAVIS_REPO_SLUG", "TRAVIS_PULL_REQUEST_SLUG",
		"GITHUB_ACTIONS", "GITHUB_EVENT_NAME", "GITHUB_REF", "GITHUB_SHA",
		"GITHUB_REPOSITORY", "GITHUB_EVENT_PATH",
	} {
		t.Setenv(v, "")
	}
}

func TestFromEnvTravis(t *testing.T) {
	for _, tc := range []struct {
		name     string
		env      map[string]string
		expected Trigger
	}{
		{
			name: "branch push",
			env: map[string]string{
				"TRAVIS_EVENT_TYPE": "push",
				"TRAVIS_BRANCH":     "master",
				"TRAVIS_COMMIT":     "deadbeef",
				"TRAVIS_REPO_SLUG":  "uber/orbit",
			},
			expected: Trigger{
				Event: EventPush, Ref: "master", Commit: "deadbeef",
				Repository: "uber/orbit",
			},
		},
		{
			name: "tag push",
			env: map[string]string{
				"TRAVIS_EVENT_TYPE": "push",
				"TRAVIS_TAG":        "v1.0.13",
				"TRAVIS_COMMIT":     "deadbeef",
				"TRAVIS_REPO_SLUG":  "uber/orbit",
			},
			expected: Trigger{
				Event: EventTag, Tag: "v1.0.13", Ref: "v1.0.13",
				Commit: "deadbeef", Repository: "uber/orbit",
			},
		},
		{
			name: "same repo pull request",
			env: map[string]string{
				"TRAVIS_EVENT_TYPE":        "pull_request",
				"TRAVIS_REPO_SLUG":         "uber/orbit",
				"TRAVIS_PULL_REQUEST_SLUG": "uber/orbit",
			},
			expected: Trigger{
				Event: EventPullRequest, Repository: "uber/orbit",
			},
		},
		{
			name: "fork pull request",
			env: map[string]string{
				"TRAVIS_EVENT_TYPE":        "pull_request",
				"TRAVIS_REPO_SLUG":         "uber/orbit",
				"TRAVIS_PULL_REQUEST_SLUG": "contributor/orbit",
			},
			expected: Trigger{
				Event: EventPullRequest, Repository: "uber/orbit",
				ForkOrigin: true,
			},
		},
		{
			name: "pull request with no head slug is fork-origin",
			env: map[string]string{
				"TRAVIS_EVENT_TYPE": "pull_request",
				"TRAVIS_REPO_SLUG":  "uber/orbit",
			},
			expected: Trigger{
				Event: EventPullRequest, Repository: "uber/orbit",
				ForkOrigin: true,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearCIEnv(t)
			t.Setenv("TRAVIS", "true")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			trig, err := FromEnv()
			require.NoError(t, err)
			require.Equal(t, tc.expected, trig)
		})
	}
}

func TestFromEnvGitHub(t *testing.T) {
	writePayload := func(t *testing.T, data string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "event.json")
		require.NoError(t, os.WriteFile(path, []byte(data), os.FileMode(0o644)))
		return path
	}

	t.Run("tag push", func(t *testing.T) {
		clearCIEnv(t)
		t.Setenv("GITHUB_ACTIONS", "true")
		t.Setenv("GITHUB_EVENT_NAME", "push")
		t.Setenv("GITHUB_REF", "refs/tags/v1.0.13")
		t.Setenv("GITHUB_SHA", "deadbeef")
		t.Setenv("GITHUB_REPOSITORY", "uber/orbit")

		trig, err := FromEnv()
		require.NoError(t, err)
		require.Equal(t, EventTag, trig.Event)
		require.Equal(t, "v1.0.13", trig.Tag)
		require.False(t, trig.ForkOrigin)
	})

	t.Run("fork pull request", func(t *testing.T) {
		clearCIEnv(t)
		t.Setenv("GITHUB_ACTIONS", "true")
		t.Setenv("GITHUB_EVENT_NAME", "pull_request")
		t.Setenv("GITHUB_REPOSITORY", "uber/orbit")
		t.Setenv("GITHUB_EVENT_PATH", writePayload(t,
			`{"pull_request":{"head":{"repo":{"fork":true,"full_name":"contributor/orbit"}}}}`,
		))

		trig, err := FromEnv()
		require.NoError(t, err)
		require.Equal(t, EventPullRequest, trig.Event)
		require.True(t, trig.ForkOrigin)
	})

	t.Run("same repo pull request", func(t *testing.T) {
		clearCIEnv(t)
		t.Setenv("GITHUB_ACTIONS", "true")
		t.Setenv("GITHUB_EVENT_NAME", "pull_request")
		t.Setenv("GITHUB_REPOSITORY", "uber/orbit")
		t.Setenv("GITHUB_EVENT_PATH", writePayload(t,
			`{"pull_request":{"head":{"repo":{"fork":false,"full_name":"uber/orbit"}}}}`,
		))

		trig, err := FromEnv()
		require.NoError(t, err)
		require.False(t, trig.ForkOrigin)
	})

	t.Run("pull request with no payload is fork-origin", func(t *testing.T) {
		clearCIEnv(t)
		t.Setenv("GITHUB_ACTIONS", "true")
		t.Setenv("GITHUB_EVENT_NAME", "pull_request")
		t.Setenv("GITHUB_REPOSITORY", "uber/orbit")

		trig, err := FromEnv()
		require.NoError(t, err)
		require.True(t, trig.ForkOrigin)
	})
}

func TestFromEnvNone(t *testing.T) {
	clearCIEnv(t)
	_, err := FromEnv()
	require.ErrorIs(t, err, ErrNoTrigger)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name      string
		trigger   Trigger
		shouldErr bool
	}{
		{"push", Trigger{Event: EventPush}, false},
		{"tag with tag", Trigger{Event: EventTag, Tag: "v1.0.0"}, false},
		{"tag without tag", Trigger{Event: EventTag}, true},
		{"no event", Trigger{}, true},
		{"unknown event", Trigger{Event: "merge_group"}, true},
		{"hex commit", Trigger{
			Event: EventPush, Commit: "a2cc86229c2c1bbe3a4b38434a029d03a488f069",
		}, false},
		{"non-hex commit", Trigger{Event: EventPush, Commit: "not-a-digest"}, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.trigger.Validate()
			if tc.shouldErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestResolveOverrides(t *testing.T) {
	clearCIEnv(t)
	t.Setenv("TRAVIS", "true")
	t.Setenv("TRAVIS_EVENT_TYPE", "push")
	t.Setenv("TRAVIS_REPO_SLUG", "uber/orbit")
	t.Setenv("TRAVIS_COMMIT", "deadbeef")

	// A tag override turns the push into a tag event
	trig, err := Resolve("", Trigger{Tag: "v1.0.13"})
	require.NoError(t, err)
	require.Equal(t, EventTag, trig.Event)
	require.Equal(t, "v1.0.13", trig.Tag)
	require.Equal(t, "deadbeef", trig.Commit)

	// The fork flag can only force gating on
	trig, err = Resolve("", Trigger{ForkOrigin: true})
	require.NoError(t, err)
	require.True(t, trig.ForkOrigin)
}
