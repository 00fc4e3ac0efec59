// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flow

// Reconcile merges a session read from the cache with one read from the
// checkpoint into a single authoritative state. Either input may be nil
// (absent from that store).
//
// Policy:
//
//   - Cache absent: the checkpoint is authoritative. This recovers from
//     cache eviction and process restart.
//   - Both present: the cache's current question pointer wins, and the
//     answer sets are the union of both sources. An answer present in
//     either store is never dropped. Unioning is what prevents a session
//     from being misclassified as fresh because one store had not yet
//     observed a pointer set through the other.
//   - Complete is sticky: if either store says the interview finished,
//     it finished.
//
// Reconcile is a pure function; it never mutates its inputs. Callers
// must write the result back to both stores (write-through) before
// acting on it, so subsequent reads observe a consistent value.
func Reconcile(cache, checkpoint *SessionState) *SessionState {
	switch {
	case cache == nil && checkpoint == nil:
		return NewSessionState()
	case cache == nil:
		merged := checkpoint.Clone()
		merged.Normalize()
		return merged
	case checkpoint == nil:
		merged := cache.Clone()
		merged.Normalize()
		return merged
	}

	merged := cache.Clone()
	for label, answer := range checkpoint.Answers {
		if _, ok := merged.Answers[label]; !ok {
			merged.Answers[label] = answer
		}
	}
	for label := range checkpoint.Answered {
		merged.Answered[label] = struct{}{}
	}
	for label := range checkpoint.Asked {
		merged.Asked[label] = struct{}{}
	}
	if merged.CurrentLabel == "" {
		merged.CurrentLabel = checkpoint.CurrentLabel
	}
	if checkpoint.Complete {
		merged.Complete = true
	}
	if checkpoint.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = checkpoint.UpdatedAt
	}
	merged.Normalize()
	return merged
}
