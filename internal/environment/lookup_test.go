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

package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeEnv_ReplacesInPlace(t *testing.T) {
	base := []string{"A=1", "B=2"}
	merged := MergeEnv(base, map[string]string{"A": "override"})
	assert.Equal(t, []string{"A=override", "B=2"}, merged)
}

func TestMergeEnv_AppendsAbsentKeys(t *testing.T) {
	base := []string{"A=1"}
	merged := MergeEnv(base, map[string]string{"C": "3"})
	assert.Equal(t, []string{"A=1", "C=3"}, merged)
}

func TestMergeEnv_NoOverridesReturnsBaseUnchanged(t *testing.T) {
	base := []string{"A=1"}
	merged := MergeEnv(base, nil)
	assert.Equal(t, base, merged)
}
