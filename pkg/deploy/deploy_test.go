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

package deploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sigs.k8s.io/malacate/pkg/index"
	"sigs.k8s.io/malacate/pkg/run"
	"sigs.k8s.io/malacate/pkg/secrets"
	"sigs.k8s.io/malacate/pkg/toolchain"
	"sigs.k8s.io/malacate/pkg/trigger"
)

func testDeployer(t *testing.T, opts Options) *Deployer {
	t.Helper()
	if opts.Project == "" {
		opts.Project = "orbit-ml"
	}
	if opts.IndexURL == "" {
		opts.IndexURL = "file://" + t.TempDir()
	}
	tc, err := toolchain.New("python:3.7")
	require.NoError(t, err)
	d, err := New(opts, tc, secrets.FromEnv())
	require.NoError(t, err)
	return d
}

func tagRun(t *testing.T, workdir string, filenames ...string) *run.Run {
	t.Helper()
	r := run.New(trigger.Trigger{
		Event:      trigger.EventTag,
		Ref:        "v1.0.15",
		Tag:        "v1.0.15",
		Commit:     "a2cc86229c2c1bbe3a4b38434a029d03a488f069",
		Repository: "uber/orbit",
	})
	for _, name := range filenames {
		path := filepath.Join(workdir, name)
		require.NoError(t, os.WriteFile(path, []byte(name+" data"), 0o644))
		r.Artifacts = append(r.Artifacts, run.Artifact{
			Path:     path,
			Filename: name,
			Checksum: map[string]string{"SHA256": "1111111111111111"},
		})
	}
	return r
}

func TestShouldUpload(t *testing.T) {
	for _, tc := range []struct {
		name       string
		onTagsOnly bool
		trig       trigger.Trigger
		expected   bool
	}{
		{"tag-push", true, trigger.Trigger{Event: trigger.EventTag, Tag: "v1.0.15"}, true},
		{"branch-push", true, trigger.Trigger{Event: trigger.EventPush, Ref: "master"}, false},
		{"pull-request", true, trigger.Trigger{Event: trigger.EventPullRequest}, false},
		{"pull-request-unrestricted", false, trigger.Trigger{Event: trigger.EventPullRequest}, false},
		{"push-unrestricted", false, trigger.Trigger{Event: trigger.EventPush, Ref: "master"}, true},
		{"nameless-tag", true, trigger.Trigger{Event: trigger.EventTag}, false},
	} {
		d := testDeployer(t, Options{OnTagsOnly: tc.onTagsOnly})
		upload, reason := d.ShouldUpload(tc.trig)
		require.Equal(t, tc.expected, upload, tc.name)
		require.NotEmpty(t, reason, tc.name)
	}
}

func TestUpload(t *testing.T) {
	indexDir := t.TempDir()
	d := testDeployer(t, Options{IndexURL: "file://" + indexDir, SkipExisting: true})

	r := tagRun(t, t.TempDir(),
		"orbit-ml-1.0.15.tar.gz", "orbit_ml-1.0.15-py3-none-any.whl",
	)
	require.NoError(t, d.Upload(context.Background(), r))
	require.Len(t, r.Uploaded, 2)
	require.Empty(t, r.Skipped)

	require.FileExists(t, filepath.Join(
		indexDir, "orbit-ml", "1.0.15", "orbit-ml-1.0.15.tar.gz",
	))
	require.FileExists(t, filepath.Join(
		indexDir, "orbit-ml", "1.0.15", "orbit_ml-1.0.15-py3-none-any.whl",
	))
}

func TestUploadSkipsExisting(t *testing.T) {
	indexDir := t.TempDir()
	d := testDeployer(t, Options{IndexURL: "file://" + indexDir, SkipExisting: true})
	workdir := t.TempDir()

	r := tagRun(t, workdir, "orbit-ml-1.0.15.tar.gz")
	require.NoError(t, d.Upload(context.Background(), r))
	require.Len(t, r.Uploaded, 1)

	// publishing the same artifacts again must skip, not fail
	again := tagRun(t, workdir, "orbit-ml-1.0.15.tar.gz")
	require.NoError(t, d.Upload(context.Background(), again))
	require.Empty(t, again.Uploaded)
	require.Equal(t, []string{"orbit-ml-1.0.15.tar.gz"}, again.Skipped)
}

func TestUploadExistingFails(t *testing.T) {
	indexDir := t.TempDir()
	d := testDeployer(t, Options{IndexURL: "file://" + indexDir, SkipExisting: false})
	workdir := t.TempDir()

	r := tagRun(t, workdir, "orbit-ml-1.0.15.tar.gz")
	require.NoError(t, d.Upload(context.Background(), r))

	again := tagRun(t, workdir, "orbit-ml-1.0.15.tar.gz")
	err := d.Upload(context.Background(), again)
	require.Error(t, err)
	require.ErrorIs(t, err, index.ErrAlreadyExists)
}

func TestUploadWithheldCredentials(t *testing.T) {
	t.Setenv("PYPI_TOKEN", "pypi-AgEIcHlwaS5vcmc")
	store := secrets.FromEnv("PYPI_TOKEN").ForTrigger(trigger.Trigger{
		Event:      trigger.EventTag,
		Tag:        "v1.0.15",
		ForkOrigin: true,
	})

	tc, err := toolchain.New("python:3.7")
	require.NoError(t, err)
	d, err := New(Options{
		Project:     "orbit-ml",
		IndexURL:    "file://" + t.TempDir(),
		PasswordVar: "PYPI_TOKEN",
	}, tc, store)
	require.NoError(t, err)

	r := tagRun(t, t.TempDir(), "orbit-ml-1.0.15.tar.gz")
	err = d.Upload(context.Background(), r)
	require.Error(t, err)
	require.ErrorIs(t, err, secrets.ErrWithheld)
	require.Empty(t, r.Uploaded)
}

// spyDriver records index traffic without storing anything
type spyDriver struct {
	exists     bool
	preflights int
	uploads    int
}

func (s *spyDriver) Exists(_ context.Context, _ index.Entry) (bool, error) {
	s.preflights++
	return s.exists, nil
}

func (s *spyDriver) Upload(_ context.Context, _ index.Entry) error {
	s.uploads++
	return nil
}

func TestUploadEdgePreflight(t *testing.T) {
	d := testDeployer(t, Options{Edge: true, SkipExisting: true})
	spy := &spyDriver{exists: true}
	d.Index.Driver = spy

	r := tagRun(t, t.TempDir(), "orbit-ml-1.0.15.tar.gz")
	require.NoError(t, d.Upload(context.Background(), r))

	// the edge uploader checks first and never attempts the upload
	require.Equal(t, 1, spy.preflights)
	require.Zero(t, spy.uploads)
	require.Equal(t, []string{"orbit-ml-1.0.15.tar.gz"}, r.Skipped)

	spy.exists = false
	again := tagRun(t, t.TempDir(), "orbit-ml-1.0.15.tar.gz")
	require.NoError(t, d.Upload(context.Background(), again))
	require.Equal(t, 1, spy.uploads)
	require.Equal(t, []string{"orbit-ml-1.0.15.tar.gz"}, again.Uploaded)
}

func TestCollectArtifacts(t *testing.T) {
	workdir := t.TempDir()
	distDir := filepath.Join(workdir, "dist")
	require.NoError(t, os.MkdirAll(distDir, 0o755))
	for _, name := range []string{
		"orbit-ml-1.0.15.tar.gz", "orbit_ml-1.0.15-py3-none-any.whl",
	} {
		require.NoError(t, os.WriteFile(
			filepath.Join(distDir, name), []byte(name), 0o644,
		))
	}

	d := testDeployer(t, Options{WorkDir: workdir})
	artifacts, err := d.CollectArtifacts(context.Background())
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	for _, a := range artifacts {
		require.NotEmpty(t, a.Filename)
		require.Len(t, a.Checksum["SHA256"], 64)
	}
}

func TestEntryVersion(t *testing.T) {
	d := testDeployer(t, Options{})
	tagged := trigger.Trigger{Event: trigger.EventTag, Tag: "v1.0.15"}
	require.Equal(t, "1.0.15", d.entryVersion(tagged, run.Artifact{
		Filename: "orbit-ml-9.9.9.tar.gz",
	}))

	// without a tag the filename decides
	push := trigger.Trigger{Event: trigger.EventPush}
	for _, tc := range []struct {
		filename string
		expected string
	}{
		{"orbit-ml-1.0.15.tar.gz", "1.0.15"},
		{"orbit_ml-1.0.15-py3-none-any.whl", "1.0.15"},
		{"orbit_ml-1.0.15.tar.gz", "1.0.15"},
		{"other-2.0.tar.gz", "2.0"},
	} {
		require.Equal(t, tc.expected, d.entryVersion(push, run.Artifact{
			Filename: tc.filename,
		}), tc.filename)
	}
}

func TestDistributionKind(t *testing.T) {
	require.Equal(t, "bdist_wheel", distributionKind("orbit_ml-1.0.15-py3-none-any.whl"))
	require.Equal(t, "sdist", distributionKind("orbit-ml-1.0.15.tar.gz"))
	require.Equal(t, "sdist", distributionKind("orbit-ml-1.0.15.zip"))
}
