// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/calderahealth/intake/services/interview/flow"
)

// sessionKeyPrefix namespaces session records inside the database, so
// future record types can share the same Badger instance.
const sessionKeyPrefix = "session/"

// BadgerConfig configures the durable checkpoint store.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files. Required unless
	// InMemory is true. Created with 0750 if absent.
	Path string

	// InMemory opens the database without disk persistence. Tests only.
	InMemory bool

	// SyncWrites forces an fsync per write. Default true in
	// DefaultBadgerConfig; the checkpoint is the store sessions are
	// recovered from, so durability beats write latency here.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. If nil, Badger's
	// logging is disabled.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns production defaults.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path, SyncWrites: true}
}

// InMemoryBadgerConfig returns a configuration for tests: no disk I/O,
// no fsync.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore is the durable session checkpoint, backed by an embedded
// BadgerDB instance. Session states are stored as JSON values under
// "session/<id>".
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions provide isolation and
// the engine serializes writers per session above this layer.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the checkpoint database.
// Call Close during shutdown.
func OpenBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent checkpoint store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create checkpoint directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Load implements flow.StateStore.
//
// A missing key maps to flow.ErrStateNotFound; a value that fails JSON
// decoding maps to flow.ErrStateCorrupt so the engine can discard it
// and restart the session fresh. Everything else is a transient
// StoreError the caller may retry.
func (s *BadgerStore) Load(_ context.Context, sessionID string) (*flow.SessionState, error) {
	var state flow.SessionState
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	switch {
	case err == nil:
		return &state, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, flow.ErrStateNotFound
	case isDecodeError(err):
		return nil, fmt.Errorf("%w: %v", flow.ErrStateCorrupt, err)
	default:
		return nil, &StoreError{Store: "checkpoint", Op: "load", Err: err}
	}
}

// Save implements flow.StateStore.
func (s *BadgerStore) Save(_ context.Context, sessionID string, state *flow.SessionState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(sessionID), payload)
	})
	if err != nil {
		return &StoreError{Store: "checkpoint", Op: "save", Err: err}
	}
	return nil
}

// Delete implements flow.StateStore. Deleting an absent session is not
// an error.
func (s *BadgerStore) Delete(_ context.Context, sessionID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key(sessionID))
	})
	if err != nil {
		return &StoreError{Store: "checkpoint", Op: "delete", Err: err}
	}
	return nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) key(sessionID string) []byte {
	return []byte(sessionKeyPrefix + sessionID)
}

// isDecodeError reports whether err came from JSON decoding rather than
// the storage layer.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
