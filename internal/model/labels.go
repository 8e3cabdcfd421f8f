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

package model

// Container label keys written by the engine on every container it
// creates, and read back as the sole signal of tenancy at the runtime
// layer. Named after docker/compose's pkg/api/labels.go convention, but
// scoped to this project's own "labuh.*" namespace (spec.md §6).
const (
	// LabelStackID is the primary ownership key: it ties a container back
	// to the stack row that owns it.
	LabelStackID = "labuh.stack.id"
	// LabelStackName is informational; it is never used for ownership
	// decisions, only for naming and log lines.
	LabelStackName = "labuh.stack.name"
	// LabelServiceName is informational; the compose service name.
	LabelServiceName = "labuh.service.name"
	// ComposeServiceLabel is not written by this engine, but is read when
	// present on imported/pre-existing containers to recover a service
	// name when LabelServiceName is absent (spec.md §6).
	ComposeServiceLabel = "com.docker.compose.service"
)
