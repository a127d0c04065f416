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

package sbom

import (
	"fmt"
	"path/filepath"
	"time"

	"sigs.k8s.io/bom/pkg/spdx"
	util "sigs.k8s.io/release-utils/helpers"

	"sigs.k8s.io/malacate/pkg/run"
)

// Parser reads artifact data from SPDX documents shipped alongside the
// built distributions
type Parser struct {
	Options Options
}

type Options struct {
	CWD string
}

// ReadArtifacts returns the artifacts an SBOM describes. Packages the
// document lists but that are not on disk are dropped, the document may
// describe more than this build produced.
func (parser *Parser) ReadArtifacts(path string) (*[]run.Artifact, error) {
	doc, err := spdx.OpenDoc(path)
	if err != nil {
		return nil, fmt.Errorf("opening doc: %w", err)
	}

	list := []run.Artifact{}

	for _, p := range doc.Packages {
		artifactPath := filepath.Join(parser.Options.CWD, p.FileName)
		if !util.Exists(artifactPath) {
			continue
		}

		list = append(list, run.Artifact{
			Path:     artifactPath,
			Filename: filepath.Base(p.FileName),
			Checksum: p.Checksum,
			Time:     time.Time{},
		})
	}
	return &list, nil
}
