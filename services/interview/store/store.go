// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store provides the two session state stores behind the
// interview engine: an in-process cache with TTL eviction and a durable
// BadgerDB checkpoint.
//
// Both implement flow.StateStore and speak the same JSON wire format,
// so the engine's reconciler can merge reads from either. The cache may
// evict or lose entries at any time; the checkpoint is the durable
// source the engine recovers from.
package store

import (
	"fmt"
)

// StoreError wraps a transient store failure. Callers may retry the
// whole request; the engine guarantees no partial mutation was
// persisted before the error.
type StoreError struct {
	// Store names the failing store ("cache" or "checkpoint").
	Store string

	// Op is the failing operation ("load", "save", "delete").
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store %s: %v", e.Store, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
