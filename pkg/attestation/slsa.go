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

package attestation

import (
	"time"

	"github.com/in-toto/in-toto-golang/in_toto/slsa_provenance/common"
	slsa "github.com/in-toto/in-toto-golang/in_toto/slsa_provenance/v0.2"
)

// SLSAPredicate is the 0.2 provenance predicate. The generator fills
// its fields directly, the type only guarantees the nested structs it
// writes to exist.
type SLSAPredicate struct {
	slsa.ProvenancePredicate
}

func NewSLSAPredicate() *SLSAPredicate {
	return &SLSAPredicate{
		ProvenancePredicate: slsa.ProvenancePredicate{
			Builder: common.ProvenanceBuilder{},
			Invocation: slsa.ProvenanceInvocation{
				ConfigSource: slsa.ConfigSource{
					Digest: common.DigestSet{},
				},
			},
			Metadata: &slsa.ProvenanceMetadata{
				Completeness: slsa.ProvenanceComplete{
					Parameters: true,
				},
			},
			Materials: []common.ProvenanceMaterial{},
		},
	}
}

func (pred *SLSAPredicate) Type() string {
	return slsa.PredicateSLSAProvenance
}

func (pred *SLSAPredicate) SetBuilderID(id string) {
	pred.Builder.ID = id
}

func (pred *SLSAPredicate) SetBuilderType(buildType string) {
	pred.BuildType = buildType
}

func (pred *SLSAPredicate) SetInvocationID(id string) {
	pred.Metadata.BuildInvocationID = id
}

func (pred *SLSAPredicate) SetConfigSource(uri, entryPoint string, digest map[string]string) {
	pred.Invocation.ConfigSource.URI = uri
	pred.Invocation.ConfigSource.EntryPoint = entryPoint
	for algo, value := range digest {
		pred.Invocation.ConfigSource.Digest[algo] = value
	}
}

func (pred *SLSAPredicate) SetParameters(params any) {
	pred.Invocation.Parameters = params
}

func (pred *SLSAPredicate) SetEnvironment(env any) {
	pred.Invocation.Environment = env
}

func (pred *SLSAPredicate) SetStartedOn(d *time.Time) {
	pred.Metadata.BuildStartedOn = d
}

func (pred *SLSAPredicate) SetFinishedOn(d *time.Time) {
	pred.Metadata.BuildFinishedOn = d
}

func (pred *SLSAPredicate) AddMaterial(uri string, digest map[string]string) {
	ds := common.DigestSet{}
	for algo, value := range digest {
		ds[algo] = value
	}
	pred.Materials = append(pred.Materials, common.ProvenanceMaterial{
		URI:    uri,
		Digest: ds,
	})
}
