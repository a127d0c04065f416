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

package index

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"sigs.k8s.io/malacate/pkg/index/driver"
)

// Entry is one artifact as the package index sees it
type Entry = driver.Entry

// ErrAlreadyExists reports an upload the index already has
var ErrAlreadyExists = driver.ErrAlreadyExists

// Index is a package index malacate can publish artifacts to
type Index struct {
	SpecURL string
	Driver  Implementation
}

// Implementation answers whether an entry is already published and
// publishes new ones. Upload never overwrites: a duplicate surfaces as
// ErrAlreadyExists, whether that is tolerable is the deployer's call.
type Implementation interface {
	Exists(ctx context.Context, entry driver.Entry) (bool, error)
	Upload(ctx context.Context, entry driver.Entry) error
}

// New builds an index from its spec URL
func New(specURL string) (s Index, err error) {
	s = Index{SpecURL: specURL}
	u, err := url.Parse(specURL)
	if err != nil {
		return s, fmt.Errorf("parsing index spec URL %s: %w", specURL, err)
	}

	var impl Implementation
	switch u.Scheme {
	case "file":
		impl, err = driver.NewDirectory(specURL)
	case "http", "https":
		impl, err = driver.NewUpload(specURL)
	case "gs":
		impl, err = driver.NewGCS(specURL)
	case "github":
		impl, err = driver.NewGithub(specURL)
	case "oci":
		impl, err = driver.NewOCI(specURL)
	default:
		return s, fmt.Errorf("%s is not a package index URL", specURL)
	}
	if err != nil {
		return s, fmt.Errorf("building index driver: %w", err)
	}
	s.Driver = impl

	return s, nil
}

// SetAuth hands credentials to drivers that take them and reports
// whether the driver did. Drivers with ambient credentials (keychains,
// application default credentials) ignore this.
func (s *Index) SetAuth(username, token string) bool {
	if d, ok := s.Driver.(interface{ SetAuth(string, string) }); ok {
		d.SetAuth(username, token)
		return true
	}
	logrus.Debugf("index driver for %s takes no explicit credentials", s.SpecURL)
	return false
}

// Exists checks whether the index already has the entry
func (s *Index) Exists(ctx context.Context, entry Entry) (bool, error) {
	return s.Driver.Exists(ctx, entry)
}

// Upload publishes the entry
func (s *Index) Upload(ctx context.Context, entry Entry) error {
	return s.Driver.Upload(ctx, entry)
}
