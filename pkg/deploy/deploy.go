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

// Package deploy builds the release distributions and publishes them
// to a package index. Publication is gated on the run trigger, only
// tag pushes upload anything.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/release-utils/hash"

	"sigs.k8s.io/malacate/pkg/exec"
	"sigs.k8s.io/malacate/pkg/index"
	"sigs.k8s.io/malacate/pkg/run"
	"sigs.k8s.io/malacate/pkg/sbom"
	"sigs.k8s.io/malacate/pkg/secrets"
	"sigs.k8s.io/malacate/pkg/toolchain"
	"sigs.k8s.io/malacate/pkg/trigger"
)

// DefaultUsername is the index username signalling token
// authentication, the token itself travels as the password
const DefaultUsername = "__token__"

type Deployer struct {
	Options   Options
	Runner    *exec.Runner
	Index     index.Index
	toolchain toolchain.Toolchain
	secrets   *secrets.Store
}

type Options struct {
	Project       string
	WorkDir       string
	IndexURL      string
	Username      string
	PasswordVar   string
	Distributions []string
	SkipExisting  bool
	Edge          bool
	OnTagsOnly    bool
	SBOMPath      string
}

func New(opts Options, tc toolchain.Toolchain, store *secrets.Store) (*Deployer, error) {
	idx, err := index.New(opts.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("opening package index: %w", err)
	}
	runner := exec.NewRunner()
	runner.Options.CWD = opts.WorkDir
	return &Deployer{
		Options:   opts,
		Runner:    runner,
		Index:     idx,
		toolchain: tc,
		secrets:   store,
	}, nil
}

// ShouldUpload decides if the trigger warrants publishing and returns
// the reason either way. Pull request builds never publish.
func (d *Deployer) ShouldUpload(t trigger.Trigger) (bool, string) {
	if t.Event == trigger.EventPullRequest {
		return false, "pull request builds do not publish"
	}
	if d.Options.OnTagsOnly && t.Event != trigger.EventTag {
		return false, "publication restricted to tag pushes"
	}
	if t.Event == trigger.EventTag && t.Tag == "" {
		return false, "tag push carries no tag name"
	}
	return true, fmt.Sprintf("%s event qualifies for publication", t.Event)
}

// BuildDistributions runs the toolchain build producing the
// distribution files
func (d *Deployer) BuildDistributions(ctx context.Context) ([]run.StepResult, error) {
	steps, err := d.toolchain.BuildSteps(d.Options.Distributions)
	if err != nil {
		return nil, fmt.Errorf("composing build steps: %w", err)
	}
	return d.Runner.RunSteps(ctx, steps)
}

// CollectArtifacts hashes everything the build left in the dist
// directory. When the pipeline generated an SBOM, artifacts it
// describes get folded in as well.
func (d *Deployer) CollectArtifacts(ctx context.Context) ([]run.Artifact, error) {
	distDir := filepath.Join(d.Options.WorkDir, d.toolchain.DistDir())

	paths := []string{}
	if err := filepath.WalkDir(distDir, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			return nil
		}
		paths = append(paths, path)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("walking dist directory: %w", err)
	}

	artifacts := []run.Artifact{}
	var mtx sync.Mutex
	var wg errgroup.Group
	for _, path := range paths {
		path := path
		wg.Go(func() error {
			hashValue, err := hash.SHA256ForFile(path)
			if err != nil {
				return fmt.Errorf("hashing artifact: %w", err)
			}
			mtx.Lock()
			artifacts = append(artifacts, run.Artifact{
				Path:     path,
				Filename: filepath.Base(path),
				Checksum: map[string]string{"SHA256": hashValue},
				Time:     time.Now(),
			})
			mtx.Unlock()
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, fmt.Errorf("hashing artifacts: %w", err)
	}

	if d.Options.SBOMPath != "" {
		parser := sbom.Parser{Options: sbom.Options{CWD: d.Options.WorkDir}}
		described, err := parser.ReadArtifacts(d.Options.SBOMPath)
		if err != nil {
			return nil, fmt.Errorf("reading artifacts from SBOM: %w", err)
		}
		for _, a := range *described {
			if !containsArtifact(artifacts, a.Filename) {
				artifacts = append(artifacts, a)
			}
		}
	}
	return artifacts, nil
}

func containsArtifact(list []run.Artifact, filename string) bool {
	for _, a := range list {
		if a.Filename == filename {
			return true
		}
	}
	return false
}

// Upload publishes the run artifacts to the index, recording uploads
// and skips on the run. An artifact the index already has is skipped
// when skip-existing is on and fails the deployment when it is not.
// Every artifact gets exactly one upload attempt.
func (d *Deployer) Upload(ctx context.Context, r *run.Run) error {
	if d.Options.PasswordVar != "" {
		value, err := d.secrets.Demand(d.Options.PasswordVar)
		if err != nil {
			return fmt.Errorf("resolving index credentials: %w", err)
		}
		username := d.Options.Username
		if username == "" {
			username = DefaultUsername
		}
		d.Index.SetAuth(username, value.Plaintext())
	}

	for _, artifact := range r.Artifacts {
		entry := index.Entry{
			Project:  d.Options.Project,
			Version:  d.entryVersion(r.Trigger, artifact),
			Filename: artifact.Filename,
			Kind:     distributionKind(artifact.Filename),
			Path:     artifact.Path,
			Digest:   artifact.Checksum,
		}

		if d.Options.Edge {
			exists, err := d.Index.Exists(ctx, entry)
			if err != nil {
				return fmt.Errorf("preflighting %s: %w", entry.Filename, err)
			}
			if exists {
				if err := d.recordExisting(r, entry.Filename); err != nil {
					return err
				}
				continue
			}
		}

		err := d.Index.Upload(ctx, entry)
		if err == nil {
			r.Uploaded = append(r.Uploaded, entry.Filename)
			logrus.Infof("published %s to %s", entry.Filename, d.Index.SpecURL)
			continue
		}
		if errors.Is(err, index.ErrAlreadyExists) {
			if err := d.recordExisting(r, entry.Filename); err != nil {
				return err
			}
			continue
		}
		return fmt.Errorf("publishing %s: %w", entry.Filename, err)
	}
	return nil
}

// recordExisting handles an artifact the index already carries
func (d *Deployer) recordExisting(r *run.Run, filename string) error {
	if !d.Options.SkipExisting {
		return fmt.Errorf("%s: %w", filename, index.ErrAlreadyExists)
	}
	r.Skipped = append(r.Skipped, filename)
	logrus.Infof("index already has %s, skipping", filename)
	return nil
}

// entryVersion returns the version an artifact publishes under. Tag
// pushes strip the customary v prefix, anything else falls back to the
// version encoded in the artifact filename.
func (d *Deployer) entryVersion(t trigger.Trigger, artifact run.Artifact) string {
	if t.Tag != "" {
		return strings.TrimPrefix(t.Tag, "v")
	}
	return versionFromFilename(d.Options.Project, artifact.Filename)
}

// versionFromFilename digs the version out of a distribution filename
func versionFromFilename(project, filename string) string {
	if strings.HasSuffix(filename, ".whl") {
		parts := strings.Split(filename, "-")
		if len(parts) > 1 {
			return parts[1]
		}
		return ""
	}
	version := filename
	for _, ext := range []string{".tar.gz", ".tar.bz2", ".zip"} {
		version = strings.TrimSuffix(version, ext)
	}
	// sdist names normalize underscores to dashes both ways
	for _, prefix := range []string{project + "-", strings.ReplaceAll(project, "-", "_") + "-"} {
		if strings.HasPrefix(version, prefix) {
			return strings.TrimPrefix(version, prefix)
		}
	}
	if i := strings.LastIndex(version, "-"); i >= 0 {
		return version[i+1:]
	}
	return version
}

// distributionKind maps a filename to the distribution type the index
// records for it
func distributionKind(filename string) string {
	if strings.HasSuffix(filename, ".whl") {
		return "bdist_wheel"
	}
	return "sdist"
}
