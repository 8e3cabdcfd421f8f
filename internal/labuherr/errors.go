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

// Package labuherr defines the error taxonomy shared by every component of
// the orchestrator. It follows the sentinel-error-plus-Is-helper shape used
// throughout docker/compose's pkg/api, rather than a custom error type
// hierarchy: components return errors.Wrap(ErrXxx, "context") and callers
// classify with the Is* helpers.
package labuherr

import "github.com/pkg/errors"

var (
	// ErrValidation is returned when a compose document is malformed or uses
	// an unsupported construct (build-only service, missing image).
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a stack is missing, not owned by the
	// caller, or a webhook token does not match, or a named service does not
	// exist on the stack.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a container carries no ownership label,
	// or is owned by a different caller than the one making the request.
	ErrForbidden = errors.New("forbidden")
	// ErrBadRequest is returned for caller errors that aren't a validation
	// failure, e.g. a rollback requested with no stable snapshot.
	ErrBadRequest = errors.New("bad request")
	// ErrRuntime wraps any failure surfaced by the Runtime Port.
	ErrRuntime = errors.New("runtime error")
	// ErrInternal covers encode/decode failures and other defects not
	// attributable to the caller or the runtime.
	ErrInternal = errors.New("internal error")
)

// IsValidation reports whether err (or its chain) is ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err (or its chain) is ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsForbidden reports whether err (or its chain) is ErrForbidden.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsBadRequest reports whether err (or its chain) is ErrBadRequest.
func IsBadRequest(err error) bool { return errors.Is(err, ErrBadRequest) }

// IsRuntime reports whether err (or its chain) is ErrRuntime.
func IsRuntime(err error) bool { return errors.Is(err, ErrRuntime) }

// IsInternal reports whether err (or its chain) is ErrInternal.
func IsInternal(err error) bool { return errors.Is(err, ErrInternal) }

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

// Forbiddenf wraps ErrForbidden with a formatted message.
func Forbiddenf(format string, args ...any) error {
	return errors.Wrapf(ErrForbidden, format, args...)
}

// BadRequestf wraps ErrBadRequest with a formatted message.
func BadRequestf(format string, args ...any) error {
	return errors.Wrapf(ErrBadRequest, format, args...)
}

// Runtimef wraps ErrRuntime with a formatted message.
func Runtimef(format string, args ...any) error {
	return errors.Wrapf(ErrRuntime, format, args...)
}

// Internalf wraps ErrInternal with a formatted message.
func Internalf(format string, args ...any) error {
	return errors.Wrapf(ErrInternal, format, args...)
}
