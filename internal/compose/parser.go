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

// Package compose implements the Compose Parser (CP): a pure function
// from Docker-Compose-shaped YAML text to a canonical model.ParsedStack.
//
// Unlike the teacher (docker/compose), which delegates to the full
// compose-spec/compose-go loader, this parser only recognizes the
// reduced key set spec.md §4.1 names and performs its own shorthand
// normalization — the loader's project-merge, extends, profiles and
// interpolation machinery is out of scope for a single-document,
// single-host deploy target.
package compose

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/HasanH47/labuh/internal/labuherr"
	"github.com/HasanH47/labuh/internal/model"
)

// rawFile mirrors the recognized top-level compose keys (spec.md §4.1).
// Unknown keys are ignored rather than rejected.
type rawFile struct {
	Version  string                   `yaml:"version"`
	Services map[string]rawService    `yaml:"services"`
	Networks map[string]yaml.Node     `yaml:"networks"`
	Volumes  map[string]yaml.Node     `yaml:"volumes"`
}

type rawService struct {
	Image         string            `yaml:"image"`
	Build         yaml.Node         `yaml:"build"`
	Environment   yaml.Node         `yaml:"environment"`
	Ports         []string          `yaml:"ports"`
	Volumes       []string          `yaml:"volumes"`
	DependsOn     yaml.Node         `yaml:"depends_on"`
	Networks      []string          `yaml:"networks"`
	ContainerName string            `yaml:"container_name"`
	Restart       string            `yaml:"restart"`
	Labels        map[string]string `yaml:"labels"`
	Command       yaml.Node         `yaml:"command"`
	Entrypoint    yaml.Node         `yaml:"entrypoint"`
}

// Parse parses yamlContent into a model.ParsedStack, or returns an error
// wrapping labuherr.ErrValidation naming the offending service.
func Parse(yamlContent []byte) (*model.ParsedStack, error) {
	var raw rawFile
	if err := yaml.Unmarshal(yamlContent, &raw); err != nil {
		return nil, labuherr.Validationf("invalid compose document: %v", err)
	}

	services := make([]model.ParsedService, 0, len(raw.Services))
	for name, svc := range raw.Services {
		ps, err := normalizeService(name, svc)
		if err != nil {
			return nil, err
		}
		services = append(services, ps)
	}

	services = orderServices(services)

	networks := make([]string, 0, len(raw.Networks))
	for name := range raw.Networks {
		networks = append(networks, name)
	}
	sort.Strings(networks)

	return &model.ParsedStack{Services: services, Networks: networks}, nil
}

func normalizeService(name string, svc rawService) (model.ParsedService, error) {
	image, err := resolveImage(name, svc)
	if err != nil {
		return model.ParsedService{}, err
	}

	env, err := normalizeEnvironment(svc.Environment)
	if err != nil {
		return model.ParsedService{}, labuherr.Validationf("service %q: invalid environment: %v", name, err)
	}

	ports := normalizePorts(svc.Ports)
	volumes := normalizeVolumes(svc.Volumes)
	dependsOn, err := normalizeDependsOn(svc.DependsOn)
	if err != nil {
		return model.ParsedService{}, labuherr.Validationf("service %q: invalid depends_on: %v", name, err)
	}

	command, err := normalizeCommand(svc.Command)
	if err != nil {
		return model.ParsedService{}, labuherr.Validationf("service %q: invalid command: %v", name, err)
	}
	entrypoint, err := normalizeCommand(svc.Entrypoint)
	if err != nil {
		return model.ParsedService{}, labuherr.Validationf("service %q: invalid entrypoint: %v", name, err)
	}

	return model.ParsedService{
		Name:          name,
		Image:         image,
		Env:           env,
		Ports:         ports,
		Volumes:       volumes,
		DependsOn:     dependsOn,
		Labels:        svc.Labels,
		Command:       command,
		Entrypoint:    entrypoint,
		ContainerName: svc.ContainerName,
		Restart:       svc.Restart,
	}, nil
}

// resolveImage implements spec.md §4.1's "Image resolution": reject a
// build-only service by name, reject a service with neither image nor
// build.
func resolveImage(name string, svc rawService) (string, error) {
	hasBuild := svc.Build.Kind != 0
	if svc.Image != "" {
		return svc.Image, nil
	}
	if hasBuild {
		return "", labuherr.Validationf("service %q uses build context which is not supported; use a pre-built image", name)
	}
	return "", labuherr.Validationf("service %q must have an image", name)
}

// normalizeEnvironment accepts absence, list form, or map form
// (spec.md §4.1 "Environment"). Map form with a null value is dropped;
// map form with a value becomes "K=V"; list form passes through.
func normalizeEnvironment(node yaml.Node) ([]string, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	case yaml.MappingNode:
		var m map[string]*string
		if err := node.Decode(&m); err != nil {
			return nil, err
		}
		// Preserve YAML key order rather than Go map iteration order.
		keys := make([]string, 0, len(node.Content)/2)
		for i := 0; i < len(node.Content); i += 2 {
			keys = append(keys, node.Content[i].Value)
		}
		var out []string
		for _, k := range keys {
			v := m[k]
			if v == nil {
				continue
			}
			out = append(out, fmt.Sprintf("%s=%s", k, *v))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported environment shape")
	}
}

// normalizePorts implements spec.md §4.1 "Ports": "H:C" or "H:C/proto"
// map to container-port (without "/proto") -> host-port. Other forms,
// including the IP-qualified "IP:H:C" form, are skipped.
func normalizePorts(raw []string) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]string)
	for _, p := range raw {
		segments := strings.Split(p, ":")
		if len(segments) != 2 {
			continue
		}
		host, containerAndProto := segments[0], segments[1]
		containerPort, _, _ := cut(containerAndProto, "/")
		out[containerPort] = host
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeVolumes implements spec.md §4.1 "Volumes": "SRC:DST[:flags]"
// maps to SRC -> DST. Other forms are skipped.
func normalizeVolumes(raw []string) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]string)
	for _, v := range raw {
		src, rest, ok := cut(v, ":")
		if !ok {
			continue
		}
		dst, _, _ := cut(rest, ":")
		if dst == "" {
			dst = rest
		}
		out[src] = dst
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeDependsOn(node yaml.Node) (map[string]struct{}, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	var names []string
	switch node.Kind {
	case yaml.SequenceNode:
		if err := node.Decode(&names); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		// Extended form: depends_on: { svc: { condition: ... } }
		var m map[string]yaml.Node
		if err := node.Decode(&m); err != nil {
			return nil, err
		}
		for k := range m {
			names = append(names, k)
		}
	default:
		return nil, fmt.Errorf("unsupported depends_on shape")
	}
	if len(names) == 0 {
		return nil, nil
	}
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out, nil
}

func normalizeCommand(node yaml.Node) ([]string, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return nil, err
		}
		return splitShellWords(s), nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unsupported shape")
	}
}

// splitShellWords is a minimal whitespace tokenizer for the scalar form
// of command/entrypoint. It does not attempt full shell quoting — any
// service that needs that should use the exec (list) form, as compose
// itself recommends.
func splitShellWords(s string) []string {
	var words []string
	var cur []rune
	inQuote := rune(0)
	for _, r := range s {
		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
			} else {
				cur = append(cur, r)
			}
		case r == '\'' || r == '"':
			inQuote = r
		case r == ' ' || r == '\t':
			if len(cur) > 0 {
				words = append(words, string(cur))
				cur = nil
			}
		default:
			cur = append(cur, r)
		}
	}
	if len(cur) > 0 {
		words = append(words, string(cur))
	}
	return words
}

func cut(s, sep string) (before, after string, found bool) {
	for i := 0; i+len(sep) <= len(s); i++ {
		if s[i:i+len(sep)] == sep {
			return s[:i], s[i+len(sep):], true
		}
	}
	return s, "", false
}

// orderServices implements spec.md §4.1 "Ordering": a stable sort where
// a precedes b iff b.DependsOn contains a.Name, otherwise alphabetical.
// Cycles are not detected; the sort degenerates to alphabetical, which
// is accepted (spec.md §9 open question (a)).
func orderServices(services []model.ParsedService) []model.ParsedService {
	sort.SliceStable(services, func(i, j int) bool {
		a, b := services[i], services[j]
		if _, ok := b.DependsOn[a.Name]; ok {
			return true
		}
		if _, ok := a.DependsOn[b.Name]; ok {
			return false
		}
		return a.Name < b.Name
	})
	return services
}
