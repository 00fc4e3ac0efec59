// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/calderahealth/intake/services/interview/flow"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenBadgerStore(InMemoryBadgerConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerStore_SaveLoad(t *testing.T) {
	s := newTestBadgerStore(t)
	ctx := context.Background()

	state := flow.NewSessionState()
	state.Record("AA_1", "yes")
	state.Record("BA_1", "a persistent headache")
	state.Present("BA_2")

	require.NoError(t, s.Save(ctx, "s1", state))

	got, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "yes", got.Answers["AA_1"])
	require.Equal(t, "BA_2", got.CurrentLabel)
	require.Contains(t, got.Answered, "BA_1")
	// Decoding re-established the set invariants.
	require.Contains(t, got.Asked, "BA_2")
}

func TestBadgerStore_LoadAbsent(t *testing.T) {
	s := newTestBadgerStore(t)

	_, err := s.Load(context.Background(), "missing")
	require.ErrorIs(t, err, flow.ErrStateNotFound)
}

func TestBadgerStore_SaveOverwrites(t *testing.T) {
	s := newTestBadgerStore(t)
	ctx := context.Background()

	first := flow.NewSessionState()
	first.Record("AA_1", "original")
	require.NoError(t, s.Save(ctx, "s1", first))

	second := flow.NewSessionState()
	second.Record("AA_1", "revised")
	require.NoError(t, s.Save(ctx, "s1", second))

	got, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "revised", got.Answers["AA_1"])
}

func TestBadgerStore_Delete(t *testing.T) {
	s := newTestBadgerStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "s1", flow.NewSessionState()))
	require.NoError(t, s.Delete(ctx, "s1"))

	_, err := s.Load(ctx, "s1")
	require.ErrorIs(t, err, flow.ErrStateNotFound)
}

func TestBadgerStore_DeleteAbsent(t *testing.T) {
	s := newTestBadgerStore(t)
	require.NoError(t, s.Delete(context.Background(), "missing"))
}

func TestBadgerStore_CorruptPayload(t *testing.T) {
	s := newTestBadgerStore(t)
	ctx := context.Background()

	// Plant a payload that is not valid JSON under the session key.
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key("s1"), []byte("{truncated"))
	})
	require.NoError(t, err)

	_, err = s.Load(ctx, "s1")
	require.ErrorIs(t, err, flow.ErrStateCorrupt)
}

func TestBadgerStore_WrongTypePayload(t *testing.T) {
	s := newTestBadgerStore(t)
	ctx := context.Background()

	// Valid JSON, wrong shape: also corrupt, not transient.
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key("s1"), []byte(`{"answers": 42}`))
	})
	require.NoError(t, err)

	_, err = s.Load(ctx, "s1")
	require.ErrorIs(t, err, flow.ErrStateCorrupt)
}

func TestBadgerStore_KeyNamespacing(t *testing.T) {
	s := newTestBadgerStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "s1", flow.NewSessionState()))

	// The raw key carries the session prefix, so other record types
	// can share the database.
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("session/s1"))
		return err
	})
	require.NoError(t, err)
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadgerStore(DefaultBadgerConfig(dir))
	require.NoError(t, err)

	state := flow.NewSessionState()
	state.Record("AA_1", "yes")
	require.NoError(t, s.Save(ctx, "s1", state))
	require.NoError(t, s.Close())

	reopened, err := OpenBadgerStore(DefaultBadgerConfig(dir))
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "yes", got.Answers["AA_1"])
}

func TestOpenBadgerStore_RequiresPath(t *testing.T) {
	_, err := OpenBadgerStore(BadgerConfig{})
	require.Error(t, err)
}

func TestStoreError_Unwrap(t *testing.T) {
	cause := errors.New("disk failure")
	err := &StoreError{Store: "checkpoint", Op: "save", Err: cause}
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "checkpoint")
	require.Contains(t, err.Error(), "save")
}
