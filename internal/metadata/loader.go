// Package metadata loads episode metadata documents and flattens them into
// the task, source and episode records kept by the catalog.
package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Document is a parsed metadata document. Members are kept as raw JSON so
// that nested maps can be re-serialized without losing their key order.
type Document map[string]json.RawMessage

// ParseError reports a document that is not a JSON object
type ParseError struct {
	FilePath string
	Line     int
	Column   int
	Message  string
	Err      error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	location := e.FilePath
	if location == "" {
		location = "<input>"
	}
	if e.Line > 0 {
		location = fmt.Sprintf("%s (line %d, col %d)", location, e.Line, e.Column)
	}
	return fmt.Sprintf("invalid metadata document %s: %s", location, e.Message)
}

// Unwrap returns the underlying decoder error
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads and parses the metadata document at path
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	doc, err := Parse(data)
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			parseErr.FilePath = path
		}
		return nil, err
	}

	return doc, nil
}

// Parse decodes a metadata document from raw JSON
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, wrapJSONError(data, err)
	}
	if doc == nil {
		// literal null at the top level
		return nil, &ParseError{Message: "top-level value must be an object"}
	}
	return doc, nil
}

// Has reports whether key is present with a non-null value
func (d Document) Has(key string) bool {
	raw, ok := d[key]
	return ok && !isNull(raw)
}

// Object returns the member at key as a nested document. Absent, null and
// non-object members yield an empty document.
func (d Document) Object(key string) Document {
	raw, ok := d[key]
	if !ok || isNull(raw) {
		return Document{}
	}
	var nested Document
	if err := json.Unmarshal(raw, &nested); err != nil || nested == nil {
		return Document{}
	}
	return nested
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// wrapJSONError converts decoder errors into a ParseError with a position.
func wrapJSONError(data []byte, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := position(data, syntaxErr.Offset)
		return &ParseError{Line: line, Column: col, Message: syntaxErr.Error(), Err: err}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ParseError{
			Message: fmt.Sprintf("top-level value must be an object, got %s", typeErr.Value),
			Err:     err,
		}
	}

	return &ParseError{Message: err.Error(), Err: err}
}

// position converts a byte offset into a 1-based line and column.
func position(data []byte, offset int64) (int, int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	line, col := 1, 1
	for _, b := range data[:offset] {
		if b == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
