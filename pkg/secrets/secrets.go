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

package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"sigs.k8s.io/malacate/pkg/trigger"
)

// Redacted replaces secret material anywhere it would be printed
const Redacted = "(redacted)"

// ErrWithheld is returned when a secret exists but origin gating
// removed it from the run
var ErrWithheld = errors.New("secret withheld from fork-origin run")

// Value is a named secret. It stringifies and serializes as redacted,
// the plaintext has to be asked for explicitly.
type Value struct {
	name      string
	plaintext string
}

func (v *Value) Name() string { return v.name }

// Plaintext returns the secret material
func (v *Value) Plaintext() string { return v.plaintext }

func (v *Value) String() string { return Redacted }

func (v *Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(Redacted)
}

// Store holds the secrets a run may use. A store gated for a
// fork-origin trigger keeps the values for log redaction but refuses
// to hand them out.
type Store struct {
	values   map[string]*Value
	withheld map[string]struct{}
}

// FromEnv loads the named variables from the process environment.
// Unset names are noted and skipped, whether that is fatal depends on
// the stage that asks for them.
func FromEnv(names ...string) *Store {
	s := &Store{
		values:   map[string]*Value{},
		withheld: map[string]struct{}{},
	}
	for _, name := range names {
		val, ok := os.LookupEnv(name)
		if !ok || val == "" {
			logrus.Debugf("secret variable %s not set in the environment", name)
			continue
		}
		s.values[name] = &Value{name: name, plaintext: val}
	}
	return s
}

// ForTrigger applies origin gating: fork-origin triggers get a store
// that refuses every secret
func (s *Store) ForTrigger(t trigger.Trigger) *Store {
	if !t.ForkOrigin {
		return s
	}

	gated := &Store{
		values:   s.values,
		withheld: map[string]struct{}{},
	}
	for name := range s.values {
		gated.withheld[name] = struct{}{}
	}
	if len(gated.withheld) > 0 {
		logrus.Warnf(
			"withholding secrets from fork-origin run: %s",
			strings.Join(gated.Names(), ", "),
		)
	}
	return gated
}

// Get returns a secret when it is loaded and not withheld
func (s *Store) Get(name string) (*Value, bool) {
	if _, gated := s.withheld[name]; gated {
		return nil, false
	}
	v, ok := s.values[name]
	return v, ok
}

// Demand returns a secret or an error saying why it is unavailable
func (s *Store) Demand(name string) (*Value, error) {
	if _, gated := s.withheld[name]; gated {
		return nil, fmt.Errorf("%s: %w", name, ErrWithheld)
	}
	v, ok := s.values[name]
	if !ok {
		return nil, fmt.Errorf("secret %s is not set in the environment", name)
	}
	return v, nil
}

// Names lists the loaded secret names, withheld or not
func (s *Store) Names() []string {
	names := []string{}
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Env returns the available secrets as process environment variables
func (s *Store) Env() map[string]string {
	env := map[string]string{}
	for name, v := range s.values {
		if _, gated := s.withheld[name]; gated {
			continue
		}
		env[name] = v.plaintext
	}
	return env
}

// Redact scrubs any loaded secret material from a string, including
// withheld values, the process environment still carries those.
func (s *Store) Redact(msg string) string {
	for _, v := range s.values {
		// Very short values would redact half the alphabet
		if len(v.plaintext) < 4 {
			continue
		}
		msg = strings.ReplaceAll(msg, v.plaintext, Redacted)
	}
	return msg
}
