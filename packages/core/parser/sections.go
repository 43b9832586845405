package parser

import "strings"

// Assertion keys, compared case-insensitively.
const (
	keyJSONPathExists = "jsonpathexists"
	keyJSONPathValue  = "jsonpathvalue"
	keyHeaderExists   = "headerexists"
	keyHeaderValue    = "headervalue"
)

// isContinuation reports whether line belongs to the section opened above it.
func isContinuation(line string) bool {
	return strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t")
}

// splitKV cuts line at its first ':' and trims both halves.
func splitKV(line string) (key, value string, ok bool) {
	key, value, ok = strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(key), strings.TrimSpace(value), true
}

// ParseHeaders builds a Headers map from the continuation lines of a headers
// section. Errors report Line relative to lines, starting at 1.
func ParseHeaders(lines []string) (Headers, error) {
	m, err := parseKVLines(lines, ErrHeaderExpectsKV)
	return Headers(m), err
}

// ParsePayload builds a Payload map from the continuation lines of a payload section.
func ParsePayload(lines []string) (Payload, error) {
	m, err := parseKVLines(lines, ErrPayloadExpectsKV)
	return Payload(m), err
}

func parseKVLines(lines []string, kind error) (map[string]string, error) {
	m := make(map[string]string, len(lines))
	for i, line := range lines {
		key, value, ok := splitKV(line)
		if !ok {
			return nil, &ParseError{Line: i + 1, Kind: kind}
		}
		m[key] = value
	}
	return m, nil
}

// ParseAssertions builds Assertions from the continuation lines of an assertions
// section. Lines without a ':' carry no entry and are skipped.
func ParseAssertions(lines []string) (Assertions, error) {
	var a Assertions
	for i, line := range lines {
		key, value, ok := splitKV(line)
		if !ok {
			continue
		}

		switch strings.ToLower(key) {
		case keyJSONPathExists:
			a.JSONPathExists = append(a.JSONPathExists, Expr(value))
		case keyJSONPathValue:
			a.JSONPathValue = append(a.JSONPathValue, Expr(value))
		case keyHeaderExists:
			a.HeaderExists = value
		case keyHeaderValue:
			a.HeaderValue = append(a.HeaderValue, Expr(value))
		default:
			return Assertions{}, &ParseError{
				Line:  i + 1,
				Kind:  ErrInvalidAssertionKey,
				Value: strings.ToLower(key),
			}
		}
	}
	return a, nil
}
