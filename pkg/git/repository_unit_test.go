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

package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

func TestSourceURL(t *testing.T) {
	configData := `[core]
	repositoryformatversion = 0
	filemode = true
	bare = false
	logallrefupdates = true

[remote "origin"]
	url = git@github.com:kubernetes-sigs/malacate.git
	fetch = +refs/heads/*:refs/remotes/origin/*
`
	tmpdir := t.TempDir()

	// Write a minimal git config to check the remote
	require.NoError(t, os.Mkdir(filepath.Join(tmpdir, ".git"), os.FileMode(0o755)))
	require.NoError(t, os.WriteFile(
		filepath.Join(tmpdir, ".git", "config"), []byte(configData), os.FileMode(0o644),
	))
	require.NoError(t, os.WriteFile(
		filepath.Join(tmpdir, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), os.FileMode(0o644),
	))

	repo := NewRepository(tmpdir)
	url, err := repo.SourceURL()
	require.NoError(t, err)
	require.Equal(t, url, "git@github.com:kubernetes-sigs/malacate.git")
}

// commitFixture creates a repo with a single commit and returns its hash
func commitFixture(t *testing.T, dir string) (*gogit.Repository, plumbing.Hash) {
	t.Helper()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "README.md"), []byte("test fixture\n"), os.FileMode(0o644),
	))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)

	sig := &object.Signature{
		Name:  "Test Author",
		Email: "noreply@k8s.io",
		When:  time.Now(),
	}
	hash, err := wt.Commit("initial commit", &gogit.CommitOptions{Author: sig})
	require.NoError(t, err)
	return repo, hash
}

func TestHeadCommit(t *testing.T) {
	dir := t.TempDir()
	_, hash := commitFixture(t, dir)

	repo := NewRepository(dir)
	commit, err := repo.HeadCommit()
	require.NoError(t, err)
	require.Equal(t, hash.String(), commit)
}

func TestTagAtHead(t *testing.T) {
	for _, tc := range []struct {
		name     string
		tagger   func(t *testing.T, repo *gogit.Repository, hash plumbing.Hash)
		expected string
	}{
		{
			name:     "no tag",
			tagger:   func(*testing.T, *gogit.Repository, plumbing.Hash) {},
			expected: "",
		},
		{
			name: "lightweight tag",
			tagger: func(t *testing.T, repo *gogit.Repository, hash plumbing.Hash) {
				t.Helper()
				_, err := repo.CreateTag("v1.1.14", hash, nil)
				require.NoError(t, err)
			},
			expected: "v1.1.14",
		},
		{
			name: "annotated tag",
			tagger: func(t *testing.T, repo *gogit.Repository, hash plumbing.Hash) {
				t.Helper()
				_, err := repo.CreateTag("v1.1.15", hash, &gogit.CreateTagOptions{
					Tagger: &object.Signature{
						Name:  "Test Author",
						Email: "noreply@k8s.io",
						When:  time.Now(),
					},
					Message: "release v1.1.15",
				})
				require.NoError(t, err)
			},
			expected: "v1.1.15",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			gitRepo, hash := commitFixture(t, dir)
			tc.tagger(t, gitRepo, hash)

			repo := NewRepository(dir)
			tag, err := repo.TagAtHead()
			require.NoError(t, err)
			require.Equal(t, tc.expected, tag)
		})
	}
}

func TestNotARepository(t *testing.T) {
	repo := NewRepository(t.TempDir())
	_, err := repo.HeadCommit()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNotARepository)
}
