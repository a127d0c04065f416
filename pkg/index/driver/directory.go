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
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	util "sigs.k8s.io/release-utils/helpers"
)

// Directory is a package index in a local directory, laid out as
// project/version/filename. It backs tests and air-gapped runs.
type Directory struct {
	Path string
}

func NewDirectory(specURL string) (*Directory, error) {
	u, err := url.Parse(specURL)
	if err != nil {
		return nil, fmt.Errorf("parsing SpecURL %s: %w", specURL, err)
	}
	if u.Path == "" {
		return nil, fmt.Errorf("index url %s has no path", specURL)
	}
	return &Directory{
		Path: u.Path,
	}, nil
}

func (d *Directory) entryPath(entry Entry) string {
	return filepath.Join(d.Path, entry.Project, entry.Version, entry.Filename)
}

func (d *Directory) Exists(_ context.Context, entry Entry) (bool, error) {
	return util.Exists(d.entryPath(entry)), nil
}

func (d *Directory) Upload(_ context.Context, entry Entry) error {
	dest := d.entryPath(entry)
	if util.Exists(dest) {
		return fmt.Errorf("%s: %w", entry.Filename, ErrAlreadyExists)
	}

	if err := os.MkdirAll(filepath.Dir(dest), os.FileMode(0o755)); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	src, err := os.Open(entry.Path)
	if err != nil {
		return fmt.Errorf("opening artifact %s: %w", entry.Path, err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating index file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("copying artifact to index: %w", err)
	}
	return nil
}
