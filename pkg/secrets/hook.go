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

import "github.com/sirupsen/logrus"

// RedactingHook scrubs secret material from every log entry. Attach it
// to the logger before the first stage runs.
type RedactingHook struct {
	store *Store
}

func NewRedactingHook(store *Store) *RedactingHook {
	return &RedactingHook{store: store}
}

func (h *RedactingHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *RedactingHook) Fire(entry *logrus.Entry) error {
	entry.Message = h.store.Redact(entry.Message)
	for key, value := range entry.Data {
		if str, ok := value.(string); ok {
			entry.Data[key] = h.store.Redact(str)
		}
	}
	return nil
}
