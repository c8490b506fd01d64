// Copyright 2024-2026 Aiku AI

// Package rcexport reads Rocket.Chat message exports.
//
// An export is a stream of JSON objects written back to back, one per
// historical event, without an enclosing array. [Parse] turns such a stream
// into an ordered list of [Record] values.
package rcexport

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout is the layout of the ts field in exported records.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// timestampParseLayout accepts fractional seconds of any precision after the
// seconds field, but only the literal UTC designator.
const timestampParseLayout = "2006-01-02T15:04:05Z"

// Known values of Record.Type.
const (
	TypeUserJoined         = "uj"
	TypeUserRemoved        = "ru"
	TypeUserAdded          = "au"
	TypeMessagePinned      = "message_pinned"
	TypeRoleAdded          = "subscription-role-added"
	TypeRoomChangedPrivacy = "room_changed_privacy"
	TypeDiscussionCreated  = "discussion-created"
)

// Record is one exported chat event.
type Record struct {
	Username    string       `json:"username"`
	Timestamp   Timestamp    `json:"ts"`
	Message     string       `json:"msg"`
	Type        string       `json:"type,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// HasType reports whether the record carries a system message type tag. An
// empty "type" value counts as no tag: such a record is a plain message.
func (r *Record) HasType() bool {
	return r.Type != ""
}

// Attachment is a file or link attached to an exported message.
type Attachment struct {
	FileID      string `json:"fileId,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	MessageLink string `json:"message_link,omitempty"`
	Remote      bool   `json:"remote,omitempty"`
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
}

// IsLocal reports whether the attachment refers to a file in the export's
// assets directory. Link and remote attachments are never uploaded.
func (a *Attachment) IsLocal() bool {
	return a.MessageLink == "" && !a.Remote
}

// Timestamp is an export timestamp. The raw value is kept so it can be
// written back unchanged.
type Timestamp struct {
	time.Time
	Raw string
}

// ParseTimestamp parses an export timestamp. Fractional seconds of any
// precision are accepted. Zone offsets are not: exports are always in UTC.
func ParseTimestamp(raw string) (Timestamp, error) {
	t, err := time.Parse(timestampParseLayout, raw)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: %w", raw, err)
	}
	return Timestamp{Time: t, Raw: raw}, nil
}

// IsZero reports whether no timestamp was read.
func (ts Timestamp) IsZero() bool {
	return ts.Raw == "" && ts.Time.IsZero()
}

// Formatted renders the timestamp as "YYYY-MM-DD hh:mm:ss" in UTC.
func (ts Timestamp) Formatted() string {
	return ts.Time.UTC().Format(time.DateTime)
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.Raw != "" {
		return json.Marshal(ts.Raw)
	}
	return json.Marshal(ts.Time.UTC().Format(TimestampLayout))
}
