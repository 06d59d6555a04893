package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// discriminator reads just the "type" tag off a raw entry object.
type discriminator struct {
	Type EntryKind `json:"type"`
}

// strictUnmarshal decodes data into v, rejecting unknown fields — matching
// the memory-file schema's "unknown fields at the top level are rejected"
// invariant, and likewise for each entry variant.
func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// UnmarshalJSON parses a memory entry, dispatching on its "type" tag before
// decoding the arm-specific fields. An unknown tag is rejected.
func (e *MemoryEntry) UnmarshalJSON(data []byte) error {
	var d discriminator
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("entry: %w", err)
	}

	switch d.Type {
	case EntryPostSeen:
		var body struct {
			Type EntryKind `json:"type"`
			PostSeenEntry
		}
		if err := strictUnmarshal(data, &body); err != nil {
			return fmt.Errorf("entry(post_seen): %w", err)
		}
		e.Type = EntryPostSeen
		e.PostSeen = &body.PostSeenEntry
	case EntryPostMade:
		var body struct {
			Type EntryKind `json:"type"`
			PostMadeEntry
		}
		if err := strictUnmarshal(data, &body); err != nil {
			return fmt.Errorf("entry(post_made): %w", err)
		}
		e.Type = EntryPostMade
		e.PostMade = &body.PostMadeEntry
	case EntryThreadTracked:
		var body struct {
			Type EntryKind `json:"type"`
			ThreadTrackedEntry
		}
		if err := strictUnmarshal(data, &body); err != nil {
			return fmt.Errorf("entry(thread_tracked): %w", err)
		}
		e.Type = EntryThreadTracked
		e.ThreadTracked = &body.ThreadTrackedEntry
	default:
		return fmt.Errorf("entry: unknown variant tag %q", d.Type)
	}

	return nil
}

// MarshalJSON emits the active variant with its "type" tag restored.
func (e MemoryEntry) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EntryPostSeen:
		return json.Marshal(struct {
			Type EntryKind `json:"type"`
			PostSeenEntry
		}{e.Type, *e.PostSeen})
	case EntryPostMade:
		return json.Marshal(struct {
			Type EntryKind `json:"type"`
			PostMadeEntry
		}{e.Type, *e.PostMade})
	case EntryThreadTracked:
		return json.Marshal(struct {
			Type EntryKind `json:"type"`
			ThreadTrackedEntry
		}{e.Type, *e.ThreadTracked})
	default:
		return nil, fmt.Errorf("entry: marshal of unset variant")
	}
}

// activeValue returns the struct value of whichever variant is populated,
// so the validator can dive into its field tags.
func (e MemoryEntry) activeValue() any {
	switch e.Type {
	case EntryPostSeen:
		return e.PostSeen
	case EntryPostMade:
		return e.PostMade
	case EntryThreadTracked:
		return e.ThreadTracked
	default:
		return nil
	}
}
