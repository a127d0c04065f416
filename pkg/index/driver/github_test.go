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

package driver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewGithub(t *testing.T) {
	gh, err := NewGithub("github://kubernetes-sigs/malacate")
	require.NoError(t, err)
	require.Equal(t, "kubernetes-sigs", gh.Owner)
	require.Equal(t, "malacate", gh.Repository)
	require.Empty(t, gh.Tag)

	gh, err = NewGithub("github://kubernetes-sigs/malacate/v1.0.15")
	require.NoError(t, err)
	require.Equal(t, "v1.0.15", gh.Tag)

	_, err = NewGithub("github://kubernetes-sigs")
	require.Error(t, err)

	_, err = NewGithub("https://github.com/kubernetes-sigs/malacate")
	require.Error(t, err)
}

func TestGithubEntryTag(t *testing.T) {
	gh, err := NewGithub("github://kubernetes-sigs/malacate")
	require.NoError(t, err)
	require.Equal(t, "v1.0.15", gh.entryTag(Entry{Version: "1.0.15"}))

	// a tag pinned in the URL wins over the entry version
	gh.Tag = "nightly"
	require.Equal(t, "nightly", gh.entryTag(Entry{Version: "1.0.15"}))
}
