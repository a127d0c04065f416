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
	"net/url"
	"os"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/static"
	"github.com/google/go-containerregistry/pkg/v1/types"
)

const distributionMediaType types.MediaType = "application/vnd.malacate.distribution.v1"

type OCI struct {
	Repository string
	Image      string
}

func NewOCI(specURL string) (*OCI, error) {
	u, err := url.Parse(specURL)
	if err != nil {
		return nil, fmt.Errorf("parsing SpecURL %s: %w", specURL, err)
	}
	if u.Path == "" {
		return nil, errors.New("spec url is not well formed")
	}
	oci := &OCI{}
	parts := strings.Split(u.Path, "/")
	oci.Image = parts[len(parts)-1]
	oci.Repository = u.Hostname()
	if len(parts) > 1 {
		oci.Repository += strings.Join(parts[0:len(parts)-1], "/")
	}
	return oci, nil
}

// entryTag derives the registry tag an entry is pushed under. Registry
// tags cannot carry every filename character, the unsupported ones
// collapse to dashes.
func (oci *OCI) entryTag(entry Entry) string {
	tag := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '-'
	}, entry.Filename)
	return strings.Trim(tag, ".-")
}

func (oci *OCI) reference(entry Entry) string {
	return oci.Repository + "/" + oci.Image + ":" + oci.entryTag(entry)
}

func (oci *OCI) Exists(ctx context.Context, entry Entry) (bool, error) {
	tags, err := crane.ListTags(
		oci.Repository+"/"+oci.Image, crane.WithAuthFromKeychain(authn.DefaultKeychain),
	)
	if err != nil {
		return false, fmt.Errorf("fetching tags from registry: %w", err)
	}
	want := oci.entryTag(entry)
	for _, t := range tags {
		if t == want {
			return true, nil
		}
	}
	return false, nil
}

// Upload wraps the artifact in a single layer image and pushes it
// tagged with the entry filename
func (oci *OCI) Upload(ctx context.Context, entry Entry) error {
	exists, err := oci.Exists(ctx, entry)
	if err != nil {
		return fmt.Errorf("checking registry for %s: %w", entry.Filename, err)
	}
	if exists {
		return fmt.Errorf("%s: %w", entry.Filename, ErrAlreadyExists)
	}

	data, err := os.ReadFile(entry.Path)
	if err != nil {
		return fmt.Errorf("reading artifact %s: %w", entry.Path, err)
	}

	layer := static.NewLayer(data, distributionMediaType)
	img, err := mutate.AppendLayers(empty.Image, layer)
	if err != nil {
		return fmt.Errorf("appending artifact layer: %w", err)
	}

	if err := crane.Push(
		img, oci.reference(entry), crane.WithAuthFromKeychain(authn.DefaultKeychain),
	); err != nil {
		return fmt.Errorf("pushing %s to registry: %w", entry.Filename, err)
	}
	return nil
}
