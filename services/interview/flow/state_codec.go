// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flow

import (
	"encoding/json"
	"sort"
	"time"
)

// sessionStateWire is the JSON wire form shared by both state stores.
// Sets are serialized as sorted string lists so payloads are stable and
// diffable in store dumps.
type sessionStateWire struct {
	Answers      map[string]string `json:"answers"`
	Answered     []string          `json:"answered"`
	Asked        []string          `json:"asked"`
	CurrentLabel string            `json:"current_label"`
	Complete     bool              `json:"complete"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// MarshalJSON implements json.Marshaler.
func (s *SessionState) MarshalJSON() ([]byte, error) {
	wire := sessionStateWire{
		Answers:      s.Answers,
		Answered:     setToSorted(s.Answered),
		Asked:        setToSorted(s.Asked),
		CurrentLabel: s.CurrentLabel,
		Complete:     s.Complete,
		UpdatedAt:    s.UpdatedAt,
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler. The decoded state is
// normalized so downstream code can rely on the set invariants even
// when the payload was written by an older or partially-updated writer.
func (s *SessionState) UnmarshalJSON(data []byte) error {
	var wire sessionStateWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.Answers = wire.Answers
	s.Answered = sortedToSet(wire.Answered)
	s.Asked = sortedToSet(wire.Asked)
	s.CurrentLabel = wire.CurrentLabel
	s.Complete = wire.Complete
	s.UpdatedAt = wire.UpdatedAt
	s.Normalize()
	return nil
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedToSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, k := range list {
		set[k] = struct{}{}
	}
	return set
}
