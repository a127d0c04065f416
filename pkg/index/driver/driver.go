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

import "errors"

// ErrAlreadyExists is the one condition callers branch on: the index
// already has this exact entry. Drivers never overwrite.
var ErrAlreadyExists = errors.New("artifact already exists in the index")

// Entry is an artifact addressed the way package indexes address
// them: project, version, filename.
type Entry struct {
	Project  string
	Version  string
	Filename string

	// Kind is the distribution type, sdist or bdist_wheel
	Kind string

	// Path is where the file lives locally
	Path string

	Digest map[string]string
}

// SHA256 returns the entry's sha256 digest when it was hashed
func (e *Entry) SHA256() string {
	for _, key := range []string{"SHA256", "sha256"} {
		if v, ok := e.Digest[key]; ok {
			return v
		}
	}
	return ""
}
