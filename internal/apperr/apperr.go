// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package apperr defines the error taxonomy shared by every AgentOS
// subsystem (spec.md §7). Every boundary-crossing error is a *Error
// carrying one of the Kind values below, so callers can branch with
// errors.Is/errors.As instead of string-matching messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to branch on it (retry,
// surface to a human reviewer, abort a scan, etc).
type Kind string

const (
	// NotFound: the referenced entity (memory, agent, task...) does not exist.
	NotFound Kind = "not_found"

	// ValidationFailure: caller-supplied data failed Validate().
	ValidationFailure Kind = "validation_failure"

	// StalePrecondition: an optimistic-concurrency check failed — the
	// entity changed since the caller last read it.
	StalePrecondition Kind = "stale_precondition"

	// StoreError: the underlying SQLite/vector/graph store returned an
	// unexpected error.
	StoreError Kind = "store_error"

	// UpstreamFailure: an injected collaborator (Embedder, LLMClient,
	// FileSystem) failed.
	UpstreamFailure Kind = "upstream_failure"

	// Conflict: the operation would create or could not resolve a
	// detected conflict.
	Conflict Kind = "conflict"

	// Cancelled: the operation's context was cancelled or timed out.
	Cancelled Kind = "cancelled"

	// Fatal: an invariant was violated; the caller should not retry.
	Fatal Kind = "fatal"
)

// Error is the concrete error type every AgentOS package returns across a
// package boundary.
type Error struct {
	Kind    Kind
	Op      string // the operation that failed, e.g. "graphstore.UpsertNode"
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so
// errors.Is(err, apperr.New(apperr.NotFound, "", "")) style sentinel checks
// work without matching Op/Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an *Error wrapping an existing error.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err's Kind equals kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
