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

// Package registry implements the Registry Credential Lookup (RCL)
// collaborator (spec.md §2 item 11): resolving registry credentials for
// an image reference ahead of a pull. The default implementation
// delegates to go-containerregistry's authn package, the way
// hectolitro-yeet's image-push path resolves credentials from the
// ambient Docker config / credential helpers rather than hand-rolling
// config.json parsing.
package registry

import (
	"context"

	"github.com/google/go-containerregistry/pkg/authn"
	gcrname "github.com/google/go-containerregistry/pkg/name"

	"github.com/HasanH47/labuh/internal/labuherr"
	"github.com/HasanH47/labuh/internal/runtime"
)

// Lookup resolves pull credentials for an image, scoped to a caller
// (user or team) that may have private registry credentials configured.
// Out of scope for this module's correctness testing per spec.md §1;
// specified only at this interface.
type Lookup interface {
	CredentialsFor(ctx context.Context, ownerID, image string) (*runtime.PullCredentials, error)
}

// keychainLookup is the default Lookup: it resolves credentials from
// the local Docker config / platform credential helpers via
// authn.DefaultKeychain, ignoring ownerID (no per-tenant registry
// credential store is implemented here; see Non-goals).
type keychainLookup struct {
	keychain authn.Keychain
}

// NewKeychainLookup returns a Lookup backed by the ambient Docker
// credential store.
func NewKeychainLookup() Lookup {
	return &keychainLookup{keychain: authn.DefaultKeychain}
}

func (k *keychainLookup) CredentialsFor(ctx context.Context, ownerID, image string) (*runtime.PullCredentials, error) {
	ref, err := gcrname.ParseReference(image)
	if err != nil {
		return nil, labuherr.Validationf("invalid image reference %q: %v", image, err)
	}

	auth, err := k.keychain.Resolve(ref.Context())
	if err != nil {
		return nil, labuherr.Internalf("resolve registry credentials for %q: %v", image, err)
	}
	if auth == authn.Anonymous {
		return nil, nil
	}

	cfg, err := auth.Authorization()
	if err != nil {
		return nil, labuherr.Internalf("read registry authorization for %q: %v", image, err)
	}
	if cfg.Username == "" && cfg.Password == "" {
		return nil, nil
	}
	return &runtime.PullCredentials{Username: cfg.Username, Password: cfg.Password}, nil
}
