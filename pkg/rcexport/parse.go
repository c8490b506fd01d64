// Copyright 2024-2026 Aiku AI

package rcexport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Parse decodes a stream of back-to-back JSON objects into records, keeping
// the order of the stream. Whitespace between objects is allowed. Any value
// that isn't an object, any malformed object, or a record without a ts field
// fails the whole parse.
func Parse(r io.Reader) ([]*Record, error) {
	dec := json.NewDecoder(r)
	var records []*Record
	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to decode record #%d: %w", len(records)+1, err)
		}
		if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, fmt.Errorf("record #%d is not a JSON object", len(records)+1)
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record #%d: %w", len(records)+1, err)
		}
		if rec.Timestamp.IsZero() {
			return nil, fmt.Errorf("record #%d has no timestamp", len(records)+1)
		}
		records = append(records, &rec)
	}
	return records, nil
}

// ParseFile opens and parses an export file.
func ParseFile(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
