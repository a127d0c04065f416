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

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
)

const DefaultAPIEndpoint = "https://api.github.com"

// Client talks to the slice of the GitHub API the publisher needs:
// reading releases and attaching assets to them. Requests carry the
// token from GITHUB_TOKEN when the environment has one.
type Client struct {
	APIEndpoint string
	client      *http.Client
}

func New() *Client {
	return &Client{
		APIEndpoint: DefaultAPIEndpoint,
		client:      &http.Client{},
	}
}

func (c *Client) authorize(req *http.Request) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("token %s", token))
		return
	}
	logrus.Warn("making unauthenticated request to github")
}

// Release fetches the release published under a tag
func (c *Client) Release(ctx context.Context, owner, repo, tag string) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s", c.APIEndpoint, owner, repo, tag)
	logrus.Debugf("GitHubAPI[GET]: %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating http request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	c.authorize(req)

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing http request to GitHub API: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http error %d fetching release %s", res.StatusCode, tag)
	}

	release := &Release{}
	if err := json.NewDecoder(res.Body).Decode(release); err != nil {
		return nil, fmt.Errorf("unmarshalling release data: %w", err)
	}
	return release, nil
}

// UploadAsset streams data to the asset uploads endpoint of a release.
// Unlike reads, an upload never runs unauthenticated.
func (c *Client) UploadAsset(ctx context.Context, url string, data io.Reader, size int64) (*http.Response, error) {
	if os.Getenv("GITHUB_TOKEN") == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN not set, cannot upload release assets")
	}
	logrus.Debugf("GitHubAPI[POST]: %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, data)
	if err != nil {
		return nil, fmt.Errorf("creating http request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/octet-stream")
	c.authorize(req)
	req.ContentLength = size

	res, err := c.client.Do(req)
	if err != nil {
		return res, fmt.Errorf("executing http request to GitHub API: %w", err)
	}
	return res, nil
}
