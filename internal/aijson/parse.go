package aijson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrorMarker is inserted into diagnostic context at the parser failure point.
const ErrorMarker = "<<<ERROR HERE>>>"

// contextRadius is how many characters of context surround a parse failure.
const contextRadius = 100

var (
	specialToken   = regexp.MustCompile(`<\|[^|]*\|>`)
	fencedBlock    = regexp.MustCompile("(?s)```(?:json|JSON)?[ \\t]*\\r?\\n?(.*?)```")
	trailingComma  = regexp.MustCompile(`,\s*([\]}])`)
	quotedString   = `"(?:[^"\\]|\\.)*"`
	missingColon   = regexp.MustCompile(`(` + quotedString + `)\s+(")`)
	missingColonOb = regexp.MustCompile(`(` + quotedString + `)\s+([\[{])`)
	stringSpan     = regexp.MustCompile(quotedString)
	greedyObject   = regexp.MustCompile(`(?s)\{.*\}`)
)

// Parse extracts, repairs and decodes the first JSON object in raw.
// It returns *InvalidOutputError when nothing valid can be recovered.
func Parse(raw string) (map[string]any, error) {
	var out map[string]any
	if err := ParseInto(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, &InvalidOutputError{Message: UserMessage, Offset: -1, Candidate: raw}
	}
	return out, nil
}

// ParseInto is Parse decoding into v.
func ParseInto(raw string, v any) error {
	candidate := Extract(raw)
	if candidate == "" {
		return &InvalidOutputError{Message: UserMessage, Offset: -1, Candidate: candidate}
	}

	// Valid output is decoded as-is so repairs never touch well-formed strings.
	if err := decode(candidate, v); err == nil {
		return nil
	}

	repaired := Repair(candidate)
	err := decode(repaired, v)
	if err == nil {
		return nil
	}

	offset := int64(-1)
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.Is(err, io.ErrUnexpectedEOF):
		offset = int64(len(repaired))
	}
	diag := FailureContext(repaired, offset)
	log.Printf("[aijson] parse failed at offset %d: %v\n%s", offset, err, diag)

	if m := greedyObject.FindString(repaired); m != "" && m != repaired {
		if retryErr := decode(Repair(m), v); retryErr == nil {
			return nil
		}
	}

	return &InvalidOutputError{
		Message:   UserMessage,
		Offset:    offset,
		Context:   diag,
		Candidate: repaired,
		Cause:     err,
	}
}

// Extract strips model control tokens and fences and returns the first
// balanced {...} object, or the cleaned text when no object is found.
func Extract(raw string) string {
	text := specialToken.ReplaceAllString(raw, "")

	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = strings.TrimSpace(text)

	if obj, ok := balancedObject(text); ok {
		text = obj
	}

	return specialToken.ReplaceAllString(text, "")
}

// Repair fixes the malformations models commonly emit: trailing commas,
// missing colons after keys and raw newlines inside string values.
func Repair(text string) string {
	text = trailingComma.ReplaceAllString(text, "$1")
	text = missingColon.ReplaceAllString(text, "$1: $2")
	text = missingColonOb.ReplaceAllString(text, "$1: $2")
	text = stringSpan.ReplaceAllStringFunc(text, func(s string) string {
		if !strings.ContainsAny(s, "\r\n") {
			return s
		}
		s = strings.ReplaceAll(s, "\r\n", " ")
		return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
	})
	return text
}

// FailureContext returns up to contextRadius characters either side of
// offset with ErrorMarker at the failure point. An offset inside a
// multi-byte character moves back to its first byte.
func FailureContext(text string, offset int64) string {
	if offset < 0 {
		return ""
	}
	pos := min(int(offset), len(text))
	for pos > 0 && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	before, after := text[:pos], text[pos:]

	start := len(before)
	for n := 0; n < contextRadius && start > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(before[:start])
		start -= size
	}
	end := 0
	for n := 0; n < contextRadius && end < len(after); n++ {
		_, size := utf8.DecodeRuneInString(after[end:])
		end += size
	}
	return before[start:] + ErrorMarker + after[:end]
}

// balancedObject finds the first '{' and its matching '}', honouring strings.
func balancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func decode(text string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	if err := dec.Decode(v); err != nil {
		return err
	}
	// Anything after the object means the candidate was not a single value.
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON object at offset %d", dec.InputOffset())
	}
	return nil
}
