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

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmmproject/agentos/internal/apperr"
)

// exitCoder lets a Run method request a specific process exit code instead
// of the generic "1" every non-nil error otherwise gets. kong's
// FatalIfErrorf only ever exits 1, so main checks for this interface itself.
type exitCoder interface {
	error
	ExitCode() int
}

// cliError pairs an error with the exit code its Kind maps to (not found ->
// 3, invalid input -> 2, stale precondition -> 4, cancelled -> 5, anything
// else -> 1), so a command's Run can just `return cliErr(err)` and have the
// right thing happen whether or not --json was passed.
type cliError struct {
	err  error
	code int
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }
func (e *cliError) ExitCode() int { return e.code }

func cliErr(err error) error {
	if err == nil {
		return nil
	}
	kind, ok := apperr.KindOf(err)
	if !ok {
		return &cliError{err: err, code: 1}
	}
	switch kind {
	case apperr.ValidationFailure:
		return &cliError{err: err, code: 2}
	case apperr.NotFound:
		return &cliError{err: err, code: 3}
	case apperr.StalePrecondition:
		return &cliError{err: err, code: 4}
	case apperr.Cancelled:
		return &cliError{err: err, code: 5}
	default:
		return &cliError{err: err, code: 1}
	}
}

// errorEnvelope is the `{"error": {...}}` shape spec.md §7 requires for
// --json output on failure, mirroring internal/httpapi's errorResponse.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// printError writes the one-line human summary every command prints to
// stderr on failure, or the --json error envelope when asJSON is set.
func printError(err error, asJSON bool) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		kind = apperr.Fatal
	}
	if asJSON {
		_ = json.NewEncoder(os.Stderr).Encode(errorEnvelope{
			Error: errorBody{Kind: string(kind), Message: err.Error()},
		})
		return
	}
	fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
}

// printJSON writes v to stdout as indented JSON, the shape every command's
// --json flag produces on success.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
