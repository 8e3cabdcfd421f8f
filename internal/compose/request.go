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

package compose

import (
	"fmt"

	"github.com/HasanH47/labuh/internal/model"
)

// ToContainerRequest converts a parsed service into the canonical
// ContainerRequest for the given owning stack (spec.md §3). The three
// labuh.* labels always win over any user-declared compose label of the
// same key.
func ToContainerRequest(svc model.ParsedService, stackID, stackName string) model.ContainerRequest {
	labels := make(map[string]string, len(svc.Labels)+3)
	for k, v := range svc.Labels {
		labels[k] = v
	}
	labels[model.LabelStackID] = stackID
	labels[model.LabelStackName] = stackName
	labels[model.LabelServiceName] = svc.Name

	cmd := svc.Command
	if cmd == nil {
		cmd = svc.Entrypoint
	}

	return model.ContainerRequest{
		Name:    fmt.Sprintf("%s-%s", stackName, svc.Name),
		Image:   svc.Image,
		Env:     svc.Env,
		Cmd:     cmd,
		Ports:   svc.Ports,
		Volumes: svc.Volumes,
		Labels:  labels,
	}
}
