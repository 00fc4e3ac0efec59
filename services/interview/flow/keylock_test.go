// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flow

import (
	"sync"
	"testing"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	const workers = 50
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("session-1")
			defer km.Unlock("session-1")
			counter++
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("counter = %d, want %d", counter, workers)
	}
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()

	km.Lock("session-1")
	done := make(chan struct{})
	go func() {
		km.Lock("session-2")
		km.Unlock("session-2")
		close(done)
	}()
	// If distinct keys shared a lock, this would deadlock; the test
	// timeout catches that.
	<-done
	km.Unlock("session-1")
}

func TestKeyedMutex_CleansUpEntries(t *testing.T) {
	km := newKeyedMutex()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n%5))
			km.Lock(key)
			km.Unlock(key)
		}(i)
	}
	wg.Wait()

	km.mu.Lock()
	remaining := len(km.locks)
	km.mu.Unlock()
	if remaining != 0 {
		t.Errorf("lock map has %d leftover entries, want 0", remaining)
	}
}

func TestKeyedMutex_Reentrant_SequentialUse(t *testing.T) {
	km := newKeyedMutex()
	for i := 0; i < 10; i++ {
		km.Lock("session-1")
		km.Unlock("session-1")
	}
}
