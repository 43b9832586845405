package parser

import (
	"sort"
	"strings"
)

// TestCase is one parsed block of a test definition document.
// It is never modified after Parse returns it.
type TestCase struct {
	Name        string
	Description string
	Author      *string
	Method      Method
	URL         string
	StatusCode  uint16
	Headers     Headers
	Payload     Payload
	Assertions  Assertions
	Block       int
}

// HasAuthor reports whether the block contained an author line.
func (tc *TestCase) HasAuthor() bool {
	return tc.Author != nil
}

type Method string

const (
	MethodUnset   Method = ""
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodHead    Method = "HEAD"
	MethodTrace   Method = "TRACE"
	MethodOptions Method = "OPTIONS"
	MethodConnect Method = "CONNECT"
)

var methods = map[string]Method{
	"GET":     MethodGet,
	"POST":    MethodPost,
	"PUT":     MethodPut,
	"PATCH":   MethodPatch,
	"DELETE":  MethodDelete,
	"HEAD":    MethodHead,
	"TRACE":   MethodTrace,
	"OPTIONS": MethodOptions,
	"CONNECT": MethodConnect,
}

// ParseMethod matches value case-insensitively against the supported methods.
func ParseMethod(value string) (Method, bool) {
	m, ok := methods[strings.ToUpper(strings.TrimSpace(value))]
	return m, ok
}

func (m Method) IsSet() bool {
	return m != MethodUnset
}

func (m Method) String() string {
	if m == MethodUnset {
		return "<unset>"
	}
	return string(m)
}

type Headers map[string]string

func (h Headers) Len() int {
	return len(h)
}

// Keys returns the header names in sorted order.
func (h Headers) Keys() []string {
	return sortedKeys(h)
}

type Payload map[string]string

func (p Payload) Len() int {
	return len(p)
}

func (p Payload) Keys() []string {
	return sortedKeys(p)
}

// Expr is an assertion expression kept exactly as written.
type Expr string

type Assertions struct {
	JSONPathExists []Expr
	JSONPathValue  []Expr
	HeaderExists   string
	HeaderValue    []Expr
}

// Len counts the list entries plus one slot for HeaderExists, whether or not it is set.
func (a Assertions) Len() int {
	return len(a.JSONPathExists) + len(a.JSONPathValue) + len(a.HeaderValue) + 1
}

// Count is the number of assertion entries actually written.
func (a Assertions) Count() int {
	if a.IsEmpty() {
		return 0
	}
	n := len(a.JSONPathExists) + len(a.JSONPathValue) + len(a.HeaderValue)
	if a.HeaderExists != "" {
		n++
	}
	return n
}

// IsEmpty reports whether no assertion entry was parsed.
func (a Assertions) IsEmpty() bool {
	return len(a.JSONPathExists) == 0 &&
		len(a.JSONPathValue) == 0 &&
		len(a.HeaderValue) == 0 &&
		a.HeaderExists == ""
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
