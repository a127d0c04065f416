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
	"errors"
	"fmt"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/sirupsen/logrus"
	util "sigs.k8s.io/release-utils/helpers"
)

const defaultRemote = "origin"

// ErrNotARepository is returned when the directory has no .git data
var ErrNotARepository = errors.New("directory is not a git repository")

type Repository struct {
	Options Options
}

func NewRepository(dir string) *Repository {
	return &Repository{
		Options: Options{
			CWD: dir,
		},
	}
}

type Options struct {
	CWD string
}

// SourceURL returns the repository URL
func (r *Repository) SourceURL() (string, error) {
	if !util.Exists(filepath.Join(r.Options.CWD, "/.git")) {
		logrus.Debugf("Directory %s is not a git repository", r.Options.CWD)
		return "", nil
	}

	repo, err := gogit.PlainOpen(r.Options.CWD)
	if err != nil {
		return "", fmt.Errorf("opening git repo at %s: %w", r.Options.CWD, err)
	}

	remote, err := repo.Remote(defaultRemote)
	if err != nil {
		return "", fmt.Errorf("getting repository remote: %w", err)
	}

	if len(remote.Config().URLs) == 0 {
		return "", errors.New("repo remote does not have URLs")
	}

	return remote.Config().URLs[0], nil
}

func (r *Repository) open() (*gogit.Repository, error) {
	if !util.Exists(filepath.Join(r.Options.CWD, "/.git")) {
		return nil, fmt.Errorf("%w: %s", ErrNotARepository, r.Options.CWD)
	}
	repo, err := gogit.PlainOpen(r.Options.CWD)
	if err != nil {
		return nil, fmt.Errorf("opening git repo at %s: %w", r.Options.CWD, err)
	}
	return repo, nil
}

// HeadCommit returns the commit digest at HEAD
func (r *Repository) HeadCommit() (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("reading repository head: %w", err)
	}
	return head.Hash().String(), nil
}

// TagAtHead returns the name of a tag pointing at HEAD, or an empty
// string when the current commit is not tagged. Annotated tags are
// resolved to the commit they target.
func (r *Repository) TagAtHead() (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("reading repository head: %w", err)
	}

	tags, err := repo.Tags()
	if err != nil {
		return "", fmt.Errorf("listing repository tags: %w", err)
	}

	var found string
	if err := tags.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()
		if tagObject, err := repo.TagObject(hash); err == nil {
			hash = tagObject.Target
		}
		if hash == head.Hash() {
			found = ref.Name().Short()
			return storer.ErrStop
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("iterating tags: %w", err)
	}
	return found, nil
}
