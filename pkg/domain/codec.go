package domain

import (
	"encoding/json"
	"fmt"
)

// MarshalDocument renders the document as indented JSON. Derived values such
// as order totals are never written.
func MarshalDocument(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// UnmarshalDocument parses a persisted document. Property names are matched
// case-insensitively. Sparse payloads are normalized; structurally corrupt
// ones are rejected.
func UnmarshalDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	doc.Normalize()
	if err := doc.Validate(); err != nil {
		return Document{}, fmt.Errorf("corrupt document: %w", err)
	}
	return doc, nil
}
