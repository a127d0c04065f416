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

import "time"

// Release is the release structure returned by the API
type Release struct {
	ID         int64          `json:"id"`
	TagName    string         `json:"tag_name"`
	Name       string         `json:"name"`
	Draft      bool           `json:"draft"`
	Prerelease bool           `json:"prerelease"`
	UploadURL  string         `json:"upload_url"`
	CreatedAt  time.Time      `json:"created_at"`
	Assets     []ReleaseAsset `json:"assets"`
	Author     Actor          `json:"author"`
}

// ReleaseAsset is an artifact attached to a release
type ReleaseAsset struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Size        int       `json:"size"`
	State       string    `json:"state"`
	ContentType string    `json:"content_type"`
	DownloadURL string    `json:"browser_download_url"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Actor struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	URL   string `json:"url"`
}
