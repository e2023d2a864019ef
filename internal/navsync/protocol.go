// Package navsync models the navigation synchronization protocol between a
// host page and an embedded deck, and ships the browser scripts that speak it.
//
// Both parties keep a non-negative position index mirrored in their location
// fragment. The embedded deck reports changes with a slidechange message; the
// host adopts it and replaces its own fragment without adding history. All
// handlers are idempotent so duplicate or reordered signals converge.
package navsync

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Wire constants.
const (
	TypeSlideChange     = "slidechange"
	EventContentUpdate  = "slide-content-update"
	EventManifestUpdate = "manifest-update"
)

// Message is posted by the embedded deck to its host.
type Message struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// SlideChange returns the message announcing index.
func SlideChange(index int) Message {
	return Message{Type: TypeSlideChange, Index: index}
}

// ParseMessage decodes a navigation message. ok is false for anything that is
// not a slidechange carrying a non-negative integer index; such input is to
// be discarded.
func ParseMessage(data []byte) (Message, bool) {
	var raw struct {
		Type  string          `json:"type"`
		Index json.RawMessage `json:"index"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, false
	}
	if raw.Type != TypeSlideChange || len(raw.Index) == 0 {
		return Message{}, false
	}
	// Quoted, fractional and exponent forms are rejected by Atoi.
	idx, err := strconv.Atoi(string(raw.Index))
	if err != nil || idx < 0 {
		return Message{}, false
	}
	return SlideChange(idx), true
}

// ContentUpdate is the artifact-change signal pushed to live hosts.
type ContentUpdate struct {
	Event string            `json:"event"`
	Data  ContentUpdateData `json:"data"`
}

// ContentUpdateData carries the rebuilt deck's id.
type ContentUpdateData struct {
	SlideID string `json:"slideId"`
}

// NewContentUpdate returns the signal for a rebuilt deck.
func NewContentUpdate(slideID string) ContentUpdate {
	return ContentUpdate{Event: EventContentUpdate, Data: ContentUpdateData{SlideID: slideID}}
}

// Marshal encodes the signal as compact JSON.
func (u ContentUpdate) Marshal() []byte {
	b, _ := json.Marshal(u)
	return b
}

// ParseContentUpdate decodes an artifact-change signal.
func ParseContentUpdate(data []byte) (ContentUpdate, bool) {
	var u ContentUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		return ContentUpdate{}, false
	}
	if u.Event != EventContentUpdate || u.Data.SlideID == "" {
		return ContentUpdate{}, false
	}
	return u, true
}

// ManifestUpdate tells live pages that the deck catalog changed, so listings
// can reload it. Framed decks ignore it.
type ManifestUpdate struct {
	Event string             `json:"event"`
	Data  ManifestUpdateData `json:"data"`
}

type ManifestUpdateData struct {
	Entries int    `json:"entries"`
	Digest  string `json:"digest"`
}

func NewManifestUpdate(entries int, digest string) ManifestUpdate {
	return ManifestUpdate{Event: EventManifestUpdate, Data: ManifestUpdateData{Entries: entries, Digest: digest}}
}

func (u ManifestUpdate) Marshal() []byte {
	b, _ := json.Marshal(u)
	return b
}

// ParseFragment reads a position index from a location fragment, with or
// without its leading '#'. Empty, non-decimal or negative fragments yield
// fallback.
func ParseFragment(fragment string, fallback int) int {
	fragment = strings.TrimPrefix(fragment, "#")
	if fragment == "" {
		return fallback
	}
	idx, err := strconv.Atoi(fragment)
	if err != nil || idx < 0 || strings.HasPrefix(fragment, "+") {
		return fallback
	}
	return idx
}

// FormatFragment renders index as a fragment value (without '#').
func FormatFragment(index int) string {
	return strconv.Itoa(index)
}
