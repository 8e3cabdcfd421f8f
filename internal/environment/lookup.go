/*
   Copyright 2026 The labuh authors

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

// Package environment implements the Environment Lookup (EL)
// collaborator (spec.md §2 item 11): a per-(stack, service) map of
// environment variable overrides consumed read-only during deployment.
// Out of scope for this module's correctness testing per spec.md §1;
// specified only at this interface.
package environment

import (
	"context"
	"sort"
)

// Lookup resolves environment overrides for one compose service.
type Lookup interface {
	// EnvMapFor returns the override map for (stackID, serviceName). An
	// absent entry and an empty map are both valid "no overrides"
	// results; callers treat a lookup error as "no overrides" too
	// (spec.md §4.2: ".unwrap_or_default()" in the prototype).
	EnvMapFor(ctx context.Context, stackID, serviceName string) (map[string]string, error)
}

// staticLookup is a trivial in-memory Lookup, useful for tests and for
// wiring a fixed set of per-stack overrides without a database.
type staticLookup struct {
	byStackService map[string]map[string]string
}

// NewStaticLookup returns a Lookup backed by a fixed nested map, keyed
// "stackID/serviceName" -> env map.
func NewStaticLookup(byStackService map[string]map[string]string) Lookup {
	return &staticLookup{byStackService: byStackService}
}

func (s *staticLookup) EnvMapFor(_ context.Context, stackID, serviceName string) (map[string]string, error) {
	return s.byStackService[stackID+"/"+serviceName], nil
}

// MergeEnv merges overrides over base, preserving base's first-seen
// list position: an override for a key already present in base replaces
// it in place; an override for a key absent from base is appended
// (spec.md §4.2 create: "EL wins, appended if key absent, replaced in
// place if key present").
func MergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	merged := append([]string(nil), base...)
	seen := make(map[string]int, len(merged))
	for i, kv := range merged {
		if key, _, ok := splitKV(kv); ok {
			seen[key] = i
		}
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		entry := k + "=" + overrides[k]
		if idx, ok := seen[k]; ok {
			merged[idx] = entry
		} else {
			merged = append(merged, entry)
			seen[k] = len(merged) - 1
		}
	}
	return merged
}

func splitKV(kv string) (key, value string, ok bool) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return "", "", false
}
