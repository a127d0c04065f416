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

package secrets

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"sigs.k8s.io/malacate/pkg/trigger"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("MALACATE_TEST_TOKEN", "hunter2hunter2")

	s := FromEnv("MALACATE_TEST_TOKEN", "MALACATE_TEST_UNSET")
	require.Equal(t, []string{"MALACATE_TEST_TOKEN"}, s.Names())

	v, ok := s.Get("MALACATE_TEST_TOKEN")
	require.True(t, ok)
	require.Equal(t, "hunter2hunter2", v.Plaintext())

	_, ok = s.Get("MALACATE_TEST_UNSET")
	require.False(t, ok)
}

func TestValueRedaction(t *testing.T) {
	t.Setenv("MALACATE_TEST_TOKEN", "hunter2hunter2")
	s := FromEnv("MALACATE_TEST_TOKEN")

	v, err := s.Demand("MALACATE_TEST_TOKEN")
	require.NoError(t, err)
	require.Equal(t, Redacted, v.String())
	require.NotContains(t, v.String(), "hunter2")

	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.JSONEq(t, `"(redacted)"`, string(data))
}

func TestForTrigger(t *testing.T) {
	t.Setenv("MALACATE_TEST_TOKEN", "hunter2hunter2")
	s := FromEnv("MALACATE_TEST_TOKEN")

	// Canonical run keeps its secrets
	same := s.ForTrigger(trigger.Trigger{Event: trigger.EventPush})
	_, err := same.Demand("MALACATE_TEST_TOKEN")
	require.NoError(t, err)

	// Fork-origin run gets nothing
	gated := s.ForTrigger(trigger.Trigger{
		Event:      trigger.EventPullRequest,
		ForkOrigin: true,
	})
	_, ok := gated.Get("MALACATE_TEST_TOKEN")
	require.False(t, ok)

	_, err = gated.Demand("MALACATE_TEST_TOKEN")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrWithheld)

	require.Empty(t, gated.Env())

	// Withheld values still get redacted
	require.Equal(t, "token is "+Redacted, gated.Redact("token is hunter2hunter2"))
}

func TestDemandUnset(t *testing.T) {
	s := FromEnv("MALACATE_TEST_UNSET")
	_, err := s.Demand("MALACATE_TEST_UNSET")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrWithheld)
}

func TestRedactingHook(t *testing.T) {
	t.Setenv("MALACATE_TEST_TOKEN", "hunter2hunter2")
	s := FromEnv("MALACATE_TEST_TOKEN")

	logger := logrus.New()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.AddHook(NewRedactingHook(s))

	logger.WithField("token", "hunter2hunter2").Info("uploading with hunter2hunter2")

	out := buf.String()
	require.NotContains(t, out, "hunter2hunter2")
	require.Contains(t, out, Redacted)
}

func TestRedactShortValues(t *testing.T) {
	t.Setenv("MALACATE_TEST_TOKEN", "ab")
	s := FromEnv("MALACATE_TEST_TOKEN")
	require.Equal(t, "abab", s.Redact("abab"))
}
