// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package memory

import "errors"

var (
	// ErrNotFound is returned when an operation targets a record id that
	// does not exist. Delete-by-id treats the same condition as a no-op.
	ErrNotFound = errors.New("memory record not found")

	// ErrNotConfigured is returned when an operation requires an embedding
	// model and none is configured.
	ErrNotConfigured = errors.New("embedding model not configured")
)
