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
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
)

func NewGCS(specURL string) (*GCS, error) {
	u, err := url.Parse(specURL)
	if err != nil {
		return nil, fmt.Errorf("parsing SpecURL %s: %w", specURL, err)
	}

	ctx := context.Background()
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	logrus.Infof("GCS driver init: Bucket: %s Path: %s", u.Hostname(), u.Path)
	return &GCS{
		Bucket: u.Hostname(),
		Path:   u.Path,
		client: client,
	}, nil
}

type GCS struct {
	Bucket string
	Path   string
	client *storage.Client
}

// objectName returns the object path an entry lives at in the bucket
func (gcs *GCS) objectName(entry Entry) string {
	return path.Join(
		strings.TrimPrefix(gcs.Path, "/"), entry.Project, entry.Version, entry.Filename,
	)
}

func (gcs *GCS) Exists(ctx context.Context, entry Entry) (bool, error) {
	if gcs.Bucket == "" {
		return false, fmt.Errorf("gcs index has no bucket defined")
	}
	name := gcs.objectName(entry)
	logrus.WithField("driver", "gcs").Debugf("Checking object %s", name)
	_, err := gcs.client.Bucket(gcs.Bucket).Object(name).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("reading object attributes: %w", err)
}

// Upload copies the artifact to the bucket. The write carries a
// DoesNotExist precondition so a concurrent or previous upload of the
// same object surfaces as ErrAlreadyExists rather than a silent
// overwrite.
func (gcs *GCS) Upload(ctx context.Context, entry Entry) error {
	if gcs.Bucket == "" {
		return fmt.Errorf("gcs index has no bucket defined")
	}

	f, err := os.Open(entry.Path)
	if err != nil {
		return fmt.Errorf("opening artifact %s: %w", entry.Path, err)
	}
	defer f.Close()

	name := gcs.objectName(entry)
	logrus.WithField("driver", "gcs").Debugf("Writing object %s", name)
	obj := gcs.client.Bucket(gcs.Bucket).Object(name).If(
		storage.Conditions{DoesNotExist: true},
	)

	w := obj.NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("copying artifact data: %w", err)
	}
	if err := w.Close(); err != nil {
		var apierr *googleapi.Error
		if errors.As(err, &apierr) && apierr.Code == http.StatusPreconditionFailed {
			return fmt.Errorf("%s: %w", entry.Filename, ErrAlreadyExists)
		}
		return fmt.Errorf("closing object writer: %w", err)
	}
	return nil
}
