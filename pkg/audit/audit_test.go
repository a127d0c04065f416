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

package audit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"sigs.k8s.io/malacate/pkg/exec"
	"sigs.k8s.io/malacate/pkg/run"
	"sigs.k8s.io/malacate/pkg/secrets"
	"sigs.k8s.io/malacate/pkg/trigger"
)

// recordingImplementation captures steps instead of executing them
type recordingImplementation struct {
	steps []run.Step
	fail  bool
}

func (ri *recordingImplementation) CreateInvocation(
	_ context.Context, _ *exec.Options, step *run.Step,
) (*exec.Invocation, error) {
	ri.steps = append(ri.steps, *step)
	return &exec.Invocation{Step: step}, nil
}

func (ri *recordingImplementation) Execute(_ *exec.Options, i *exec.Invocation) error {
	if ri.fail {
		i.ExitCode = 1
		return errors.New("synthetic step failure")
	}
	i.Output.WriteString("ok\n")
	return nil
}

func testScanner(t *testing.T, opts Options, store *secrets.Store) (*Scanner, *recordingImplementation) {
	t.Helper()
	if store == nil {
		store = secrets.FromEnv()
	}
	scanner := NewScanner(opts, store)
	rec := &recordingImplementation{}
	scanner.Runner.SetImplementation(rec)
	return scanner, rec
}

func TestInstallTool(t *testing.T) {
	var cacheHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cacheHeader = r.Header.Get("Cache-Control")
		fmt.Fprintln(w, "#!/bin/sh")
	}))
	defer srv.Close()

	// the default installer runs under sudo
	scanner, rec := testScanner(t, Options{InstallerURL: srv.URL, Sudo: true}, nil)
	res, err := scanner.InstallTool(context.Background())
	require.NoError(t, err)
	require.Equal(t, run.StatusSuccess, res.Status)

	// installer fetches must bypass intermediary caches
	require.Equal(t, "no-cache", cacheHeader)

	require.Len(t, rec.steps, 1)
	require.Equal(t, "sudo", rec.steps[0].Command)
	require.Equal(t, "bash", rec.steps[0].Params[0])

	scanner, rec = testScanner(t, Options{InstallerURL: srv.URL}, nil)
	_, err = scanner.InstallTool(context.Background())
	require.NoError(t, err)
	require.Equal(t, "bash", rec.steps[0].Command)
}

func TestInstallToolHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	scanner, rec := testScanner(t, Options{InstallerURL: srv.URL}, nil)
	_, err := scanner.InstallTool(context.Background())
	require.Error(t, err)
	require.Empty(t, rec.steps)
}

func TestAnalyze(t *testing.T) {
	t.Setenv("FOSSA_API_KEY", "fossa-0123456789")
	store := secrets.FromEnv("FOSSA_API_KEY")

	scanner, rec := testScanner(t, Options{WorkDir: "/src/project"}, store)
	res, err := scanner.Analyze(context.Background())
	require.NoError(t, err)
	require.Equal(t, run.StatusSuccess, res.Status)

	require.Len(t, rec.steps, 1)
	require.Equal(t, "fossa", rec.steps[0].Command)
	require.Equal(t, []string{"analyze"}, rec.steps[0].Params)
	require.Equal(t, "/src/project", rec.steps[0].Dir)
	require.Equal(t, "fossa-0123456789", rec.steps[0].Environment["FOSSA_API_KEY"])
}

func TestAnalyzeWithheldKey(t *testing.T) {
	t.Setenv("FOSSA_API_KEY", "fossa-0123456789")
	store := secrets.FromEnv("FOSSA_API_KEY").ForTrigger(trigger.Trigger{
		Event:      trigger.EventPullRequest,
		ForkOrigin: true,
	})

	scanner, rec := testScanner(t, Options{}, store)
	_, err := scanner.Analyze(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, secrets.ErrWithheld)
	require.Empty(t, rec.steps)
}

func TestAnalyzeMissingKey(t *testing.T) {
	store := secrets.FromEnv()
	scanner, rec := testScanner(t, Options{}, store)
	_, err := scanner.Analyze(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, secrets.ErrWithheld)
	require.Empty(t, rec.steps)
}

func TestInitAndVerify(t *testing.T) {
	t.Setenv("FOSSA_API_KEY", "fossa-0123456789")
	store := secrets.FromEnv("FOSSA_API_KEY")

	scanner, rec := testScanner(t, Options{Binary: "license-scan"}, store)
	_, err := scanner.Init(context.Background())
	require.NoError(t, err)
	_, err = scanner.Verify(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.steps, 2)
	require.Equal(t, "license-scan", rec.steps[0].Command)
	require.Equal(t, []string{"init"}, rec.steps[0].Params)
	require.Empty(t, rec.steps[0].Environment)
	require.Equal(t, []string{"test"}, rec.steps[1].Params)
	require.Equal(t, "fossa-0123456789", rec.steps[1].Environment["FOSSA_API_KEY"])
}
