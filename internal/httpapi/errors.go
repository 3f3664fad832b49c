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

package httpapi

import (
	"net/http"

	"github.com/dmmproject/agentos/internal/apperr"
)

// classifyError maps an apperr.Kind to the HTTP status spec.md §7's
// exit-code table implies for the CLI (not_found -> 3, invalid input -> 2,
// stale precondition -> 4): the same taxonomy, translated to HTTP
// semantics instead of process exit codes.
func classifyError(err error) (apperr.Kind, int) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		return apperr.StoreError, http.StatusInternalServerError
	}

	switch kind {
	case apperr.NotFound:
		return kind, http.StatusNotFound
	case apperr.ValidationFailure:
		return kind, http.StatusBadRequest
	case apperr.StalePrecondition:
		return kind, http.StatusPreconditionFailed
	case apperr.Conflict:
		return kind, http.StatusConflict
	case apperr.UpstreamFailure:
		return kind, http.StatusBadGateway
	case apperr.Cancelled:
		return kind, 499
	case apperr.Fatal:
		return kind, http.StatusInternalServerError
	default:
		return kind, http.StatusInternalServerError
	}
}
