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
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/release-sdk/github"

	ghapi "sigs.k8s.io/malacate/pkg/github"
)

type GitHubRelease struct {
	Owner      string
	Repository string
	Tag        string
	Options    GitHubReleaseOptions
	gh         *github.GitHub
	api        *ghapi.Client
}

type GitHubReleaseOptions struct {
	// TagPrefix rebuilds the release tag from an entry version when
	// the index URL does not pin one
	TagPrefix string
}

var DefaultGitHubReleaseOptions = GitHubReleaseOptions{
	TagPrefix: "v",
}

func NewGithub(specURL string) (*GitHubRelease, error) {
	u, err := url.Parse(specURL)
	if err != nil {
		return nil, fmt.Errorf("parsing github spec url: %w", err)
	}

	if u.Scheme != "github" {
		return nil, errors.New("spec url is not a github release url")
	}

	repoTag := strings.TrimSuffix(strings.TrimPrefix(u.Path, "/"), "/")
	parts := strings.Split(repoTag, "/")
	if parts[0] == "" {
		return nil, fmt.Errorf("unable to find repository in %s", u.Path)
	}

	ghr := &GitHubRelease{
		Owner:      u.Hostname(),
		Repository: parts[0],
		Options:    DefaultGitHubReleaseOptions,
		gh:         github.New(),
		api:        ghapi.New(),
	}
	if len(parts) > 1 {
		ghr.Tag = parts[1]
	}

	return ghr, nil
}

// entryTag returns the release tag an entry belongs to
func (ghr *GitHubRelease) entryTag(entry Entry) string {
	if ghr.Tag != "" {
		return ghr.Tag
	}
	return ghr.Options.TagPrefix + entry.Version
}

// Exists downloads the release assets and looks for the entry among
// them. The download also covers assets the API lists as pending, a
// plain listing would miss those.
func (ghr *GitHubRelease) Exists(ctx context.Context, entry Entry) (bool, error) {
	tmp, err := os.MkdirTemp("", "github-assets-")
	if err != nil {
		return false, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := ghr.gh.DownloadReleaseAssets(
		ghr.Owner, ghr.Repository, []string{ghr.entryTag(entry)}, tmp,
	); err != nil {
		return false, fmt.Errorf("downloading release assets: %w", err)
	}

	found := false
	if err := filepath.WalkDir(tmp, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Base(path) == entry.Filename {
			found = true
		}
		return nil
	}); err != nil {
		return false, fmt.Errorf("walking path: %w", err)
	}
	return found, nil
}

// Upload attaches the entry to the release matching its tag. The
// release has to exist already, malacate does not cut releases.
func (ghr *GitHubRelease) Upload(ctx context.Context, entry Entry) error {
	release, err := ghr.api.Release(ctx, ghr.Owner, ghr.Repository, ghr.entryTag(entry))
	if err != nil {
		return fmt.Errorf("fetching release %s: %w", ghr.entryTag(entry), err)
	}

	for _, asset := range release.Assets {
		if asset.Name == entry.Filename {
			return fmt.Errorf("%s: %w", entry.Filename, ErrAlreadyExists)
		}
	}

	f, err := os.Open(entry.Path)
	if err != nil {
		return fmt.Errorf("opening artifact %s: %w", entry.Path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("reading artifact size: %w", err)
	}

	// upload_url comes back as a hypermedia template
	uploadURL, _, _ := strings.Cut(release.UploadURL, "{")
	uploadURL += "?name=" + url.QueryEscape(entry.Filename)

	res, err := ghr.api.UploadAsset(ctx, uploadURL, f, info.Size())
	if err != nil {
		return fmt.Errorf("uploading release asset: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusUnprocessableEntity:
		// the API answers 422 when an asset with the same name raced us
		return fmt.Errorf("%s: %w", entry.Filename, ErrAlreadyExists)
	}
	return fmt.Errorf("http error %d uploading %s", res.StatusCode, entry.Filename)
}
