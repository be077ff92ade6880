// Package pyjson renders JSON values in the text form used for opaque
// blobs in the catalog: the layout Python's json.dumps produces with its
// default arguments, so rows written by older tooling compare equal.
package pyjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"
)

const hexDigits = "0123456789abcdef"

// Format re-encodes a single JSON value. Object keys keep their document
// order and numbers keep their source literal.
func Format(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var sb strings.Builder
	if err := writeValue(&sb, dec); err != nil {
		return "", err
	}

	// Trailing data means raw held more than one value
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("unexpected data after JSON value")
	}

	return sb.String(), nil
}

// Str renders a value the way str() would: strings are returned bare,
// booleans and null use their Python spelling, containers go through Format.
func Str(raw []byte) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty JSON value")
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("invalid JSON string: %w", err)
		}
		return s, nil
	case 't':
		return "True", nil
	case 'f':
		return "False", nil
	case 'n':
		return "None", nil
	default:
		return Format(trimmed)
	}
}

func writeValue(sb *strings.Builder, dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("unexpected end of JSON input")
		}
		return err
	}
	return writeToken(sb, dec, tok)
}

func writeToken(sb *strings.Builder, dec *json.Decoder, tok json.Token) error {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return writeObject(sb, dec)
		case '[':
			return writeArray(sb, dec)
		default:
			return fmt.Errorf("unexpected delimiter %q", v)
		}
	case string:
		writeString(sb, v)
	case json.Number:
		sb.WriteString(v.String())
	case bool:
		if v {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case nil:
		sb.WriteString("null")
	default:
		return fmt.Errorf("unsupported JSON token %T", tok)
	}
	return nil
}

func writeObject(sb *strings.Builder, dec *json.Decoder) error {
	sb.WriteByte('{')
	first := true
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("object key is %T, not string", keyTok)
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		writeString(sb, key)
		sb.WriteString(": ")
		if err := writeValue(sb, dec); err != nil {
			return err
		}
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return err
	}
	sb.WriteByte('}')
	return nil
}

func writeArray(sb *strings.Builder, dec *json.Decoder) error {
	sb.WriteByte('[')
	first := true
	for dec.More() {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		if err := writeValue(sb, dec); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	sb.WriteByte(']')
	return nil
}

// writeString quotes s with ASCII-only output.
func writeString(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		default:
			switch {
			case r < 0x20 || (r >= 0x7f && r <= 0xffff):
				writeUnicodeEscape(sb, r)
			case r > 0xffff:
				hi, lo := utf16.EncodeRune(r)
				writeUnicodeEscape(sb, hi)
				writeUnicodeEscape(sb, lo)
			default:
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
}

func writeUnicodeEscape(sb *strings.Builder, r rune) {
	sb.WriteString(`\u`)
	sb.WriteByte(hexDigits[(r>>12)&0xf])
	sb.WriteByte(hexDigits[(r>>8)&0xf])
	sb.WriteByte(hexDigits[(r>>4)&0xf])
	sb.WriteByte(hexDigits[r&0xf])
}
