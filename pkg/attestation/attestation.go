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
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	intoto "github.com/in-toto/in-toto-golang/in_toto"
	"github.com/in-toto/in-toto-golang/in_toto/slsa_provenance/common"
	slsa "github.com/in-toto/in-toto-golang/in_toto/slsa_provenance/v0.2"
)

// Predicate is the payload of an attestation statement
type Predicate interface {
	Type() string
}

type Attestation struct {
	intoto.StatementHeader
	Predicate Predicate `json:"predicate"`
}

func New() *Attestation {
	attestation := &Attestation{
		StatementHeader: intoto.StatementHeader{
			Type:          intoto.StatementInTotoV01,
			PredicateType: slsa.PredicateSLSAProvenance,
			Subject:       []intoto.Subject{},
		},
	}
	return attestation
}

func (att *Attestation) SLSA() *Attestation {
	pred := NewSLSAPredicate()
	att.PredicateType = pred.Type()
	att.Predicate = pred
	return att
}

func (att *Attestation) SLSAv1() *Attestation {
	pred := NewSLSAV1Predicate()
	att.PredicateType = pred.Type()
	att.Predicate = pred
	return att
}

// AddSubject registers an artifact the statement speaks about. Digest
// algorithm names normalize to lowercase on the way in.
func (att *Attestation) AddSubject(name string, checksums map[string]string) {
	digest := common.DigestSet{}
	for algo, value := range checksums {
		digest[strings.ToLower(algo)] = value
	}
	att.Subject = append(att.Subject, intoto.Subject{
		Name:   name,
		Digest: digest,
	})
}

func (att *Attestation) ToJSON() ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	if err := enc.Encode(att); err != nil {
		return nil, fmt.Errorf("encoding attestation: %w", err)
	}
	return b.Bytes(), nil
}

// Write stores the attestation at path as plain JSON
func (att *Attestation) Write(path string) error {
	data, err := att.ToJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing attestation to %s: %w", path, err)
	}
	return nil
}
