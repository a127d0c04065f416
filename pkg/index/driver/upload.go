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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Upload talks to a package index over its legacy upload API, the
// protocol twine speaks. Existence preflights go through the read side
// JSON API when the index has one.
type Upload struct {
	Endpoint string
	CheckURL string
	Username string
	token    string
	client   *http.Client
}

func NewUpload(specURL string) (*Upload, error) {
	u, err := url.Parse(specURL)
	if err != nil {
		return nil, fmt.Errorf("parsing SpecURL %s: %w", specURL, err)
	}
	return &Upload{
		Endpoint: specURL,
		CheckURL: deriveCheckURL(u.Hostname()),
		client:   &http.Client{},
	}, nil
}

// deriveCheckURL maps known upload hosts to their read side API. An
// index we don't know gets no preflight, duplicates then surface from
// the upload response.
func deriveCheckURL(host string) string {
	switch host {
	case "upload.pypi.org":
		return "https://pypi.org/pypi"
	case "test.pypi.org":
		return "https://test.pypi.org/pypi"
	}
	return ""
}

// SetAuth stores the credentials sent with every upload
func (up *Upload) SetAuth(username, token string) {
	up.Username = username
	up.token = token
}

// releaseFiles is the slice of the JSON API response we care about
type releaseFiles struct {
	URLs []struct {
		Filename string `json:"filename"`
	} `json:"urls"`
}

func (up *Upload) Exists(ctx context.Context, entry Entry) (bool, error) {
	if up.CheckURL == "" {
		logrus.Debugf("index %s has no read API, skipping existence preflight", up.Endpoint)
		return false, nil
	}

	checkURL := fmt.Sprintf(
		"%s/%s/%s/json", strings.TrimSuffix(up.CheckURL, "/"), entry.Project, entry.Version,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return false, fmt.Errorf("creating http request: %w", err)
	}

	res, err := up.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("querying index for %s %s: %w", entry.Project, entry.Version, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if res.StatusCode != http.StatusOK {
		return false, fmt.Errorf("http error %d querying the index", res.StatusCode)
	}

	release := releaseFiles{}
	if err := json.NewDecoder(res.Body).Decode(&release); err != nil {
		return false, fmt.Errorf("unmarshalling index response: %w", err)
	}
	for _, f := range release.URLs {
		if f.Filename == entry.Filename {
			return true, nil
		}
	}
	return false, nil
}

// Upload POSTs the entry as a file_upload multipart form. Credentials
// are required, an index upload never falls back to anonymous.
func (up *Upload) Upload(ctx context.Context, entry Entry) error {
	if up.Username == "" || up.token == "" {
		return fmt.Errorf("no credentials set for index %s", up.Endpoint)
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	fields := map[string]string{
		":action":          "file_upload",
		"protocol_version": "1",
		"metadata_version": "2.1",
		"name":             entry.Project,
		"version":          entry.Version,
		"filetype":         entry.Kind,
		"pyversion":        pyVersion(entry),
	}
	if digest := entry.SHA256(); digest != "" {
		fields["sha256_digest"] = digest
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return fmt.Errorf("writing form field %s: %w", name, err)
		}
	}

	part, err := form.CreateFormFile("content", entry.Filename)
	if err != nil {
		return fmt.Errorf("creating form file: %w", err)
	}
	f, err := os.Open(entry.Path)
	if err != nil {
		return fmt.Errorf("opening artifact %s: %w", entry.Path, err)
	}
	defer f.Close()
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("reading artifact data: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("finalizing upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, up.Endpoint, body)
	if err != nil {
		return fmt.Errorf("creating http request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.SetBasicAuth(up.Username, up.token)

	res, err := up.client.Do(req)
	if err != nil {
		return fmt.Errorf("uploading %s to index: %w", entry.Filename, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		logrus.Infof("uploaded %s to %s", entry.Filename, up.Endpoint)
		return nil
	case res.StatusCode == http.StatusConflict:
		return fmt.Errorf("%s: %w", entry.Filename, ErrAlreadyExists)
	}

	msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	// Indexes speaking the legacy API answer duplicates with a 400
	// and a message instead of a conflict status
	if res.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(string(msg)), "already exist") {
		return fmt.Errorf("%s: %w", entry.Filename, ErrAlreadyExists)
	}
	return fmt.Errorf(
		"http error %d uploading %s: %s", res.StatusCode, entry.Filename, strings.TrimSpace(string(msg)),
	)
}

// pyVersion fills the form field the index expects for the
// distribution type: sdists are "source", wheels carry the python tag
// from their filename.
func pyVersion(entry Entry) string {
	if entry.Kind == "sdist" {
		return "source"
	}
	name := strings.TrimSuffix(entry.Filename, ".whl")
	parts := strings.Split(name, "-")
	// name-version-pytag-abitag-platform
	if len(parts) >= 3 {
		return parts[len(parts)-3]
	}
	return ""
}
