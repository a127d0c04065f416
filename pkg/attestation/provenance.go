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
	"fmt"
	"strings"

	v1 "github.com/in-toto/attestation/go/v1"

	"sigs.k8s.io/malacate/pkg/run"
)

const (
	DefaultBuilderID = "https://sigs.k8s.io/malacate@v1"
	DefaultBuildType = "https://sigs.k8s.io/malacate/pipeline@v1"
)

// Options steers provenance generation
type Options struct {
	// SLSAVersion selects the provenance predicate, 0.2 or 1.0
	SLSAVersion string

	BuilderID string
	BuildType string

	// VCSURL locates the source the pipeline ran from
	VCSURL string

	// ConfigFile is the pipeline definition inside the repository
	ConfigFile string
}

// Default fills the option zero values
func (o *Options) Default() {
	if o.SLSAVersion == "" {
		o.SLSAVersion = "0.2"
	}
	if o.BuilderID == "" {
		o.BuilderID = DefaultBuilderID
	}
	if o.BuildType == "" {
		o.BuildType = DefaultBuildType
	}
}

// FromRun derives a provenance attestation from a finished pipeline
// run. Published artifacts become the statement subjects, a run that
// published nothing attests everything it built.
func FromRun(r *run.Run, opts Options) (*Attestation, error) {
	opts.Default()

	att := New()
	switch opts.SLSAVersion {
	case "0.2":
		att.SLSA()
	case "1", "1.0":
		att.SLSAv1()
	default:
		return nil, fmt.Errorf("%s is not a supported provenance version", opts.SLSAVersion)
	}

	for _, artifact := range subjectArtifacts(r) {
		att.AddSubject(artifact.Filename, artifact.Checksum)
	}

	uri := opts.VCSURL
	if uri == "" && r.Trigger.Repository != "" {
		uri = "https://github.com/" + r.Trigger.Repository
	}
	if uri != "" && !strings.HasPrefix(uri, "git+") {
		uri = "git+" + uri
	}
	digest := map[string]string{}
	if r.Trigger.Commit != "" {
		digest["sha1"] = r.Trigger.Commit
	}

	switch pred := att.Predicate.(type) {
	case *SLSAPredicate:
		pred.SetBuilderID(opts.BuilderID)
		pred.SetBuilderType(opts.BuildType)
		pred.SetInvocationID(r.ID)
		pred.SetConfigSource(uri, opts.ConfigFile, digest)
		pred.SetParameters(r.Trigger)
		pred.SetEnvironment(stageStatuses(r))
		pred.SetStartedOn(&r.StartTime)
		pred.SetFinishedOn(&r.EndTime)
		if uri != "" {
			pred.AddMaterial(uri, digest)
		}
	case *SLSAPredicateV1:
		pred.SetBuilderID(opts.BuilderID)
		pred.SetBuilderType(opts.BuildType)
		pred.SetInvocationID(r.ID)
		src := &v1.ResourceDescriptor{Uri: uri, Digest: digest}
		pred.SetConfigSource(src)
		pred.SetEntryPoint(opts.ConfigFile)
		pred.SetExternalParameter("event", string(r.Trigger.Event))
		pred.SetExternalParameter("ref", r.Trigger.Ref)
		if r.Trigger.Tag != "" {
			pred.SetExternalParameter("tag", r.Trigger.Tag)
		}
		pred.SetInternalParameters(stageStatuses(r))
		pred.SetStartedOn(&r.StartTime)
		pred.SetFinishedOn(&r.EndTime)
		if uri != "" {
			pred.AddDependency(src)
		}
	}
	return att, nil
}

// subjectArtifacts picks the artifacts the statement speaks about
func subjectArtifacts(r *run.Run) []run.Artifact {
	if len(r.Uploaded) == 0 {
		return r.Artifacts
	}
	published := []run.Artifact{}
	for _, artifact := range r.Artifacts {
		for _, name := range r.Uploaded {
			if artifact.Filename == name {
				published = append(published, artifact)
				break
			}
		}
	}
	return published
}

// stageStatuses summarizes the pipeline outcome per stage
func stageStatuses(r *run.Run) map[string]any {
	statuses := map[string]any{}
	for _, stage := range r.Stages {
		statuses[stage.Name] = string(stage.Status)
	}
	return statuses
}
