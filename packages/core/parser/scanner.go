package parser

import (
	"strconv"
	"strings"
)

type scanState int

const (
	stateTopLevel scanState = iota
	stateHeaders
	statePayload
	stateAssertions
)

// scanner walks a block once, top to bottom. Section states collect the
// indented lines that follow their marker and hand them to the section
// builders when the section ends.
type scanner struct {
	lines []string
	tc    *TestCase

	state       scanState
	sectionLine int
	pending     []string
}

func newScanner(block string) *scanner {
	return &scanner{
		lines: strings.Split(block, "\n"),
		tc:    &TestCase{Headers: Headers{}, Payload: Payload{}},
	}
}

func (s *scanner) scan() (*TestCase, error) {
	for i, line := range s.lines {
		if s.state != stateTopLevel {
			if isContinuation(line) {
				s.pending = append(s.pending, line)
				continue
			}
			if err := s.closeSection(); err != nil {
				return nil, err
			}
		}
		if err := s.topLevel(i+1, line); err != nil {
			return nil, err
		}
	}
	if err := s.closeSection(); err != nil {
		return nil, err
	}
	return s.tc, nil
}

func (s *scanner) topLevel(lineNo int, line string) error {
	key, value, ok := splitKV(line)
	if !ok {
		return nil
	}

	switch key = strings.ToLower(key); key {
	case "testcase":
		s.tc.Name = value
	case "description":
		s.tc.Description = value
	case "author":
		author := value
		s.tc.Author = &author
	case "url":
		s.tc.URL = value
	case "statuscode":
		code, err := parseStatusCode(value)
		if err != nil {
			return &ParseError{Line: lineNo, Kind: ErrInvalidStatusCode, Value: value}
		}
		s.tc.StatusCode = code
	case "method":
		m, ok := ParseMethod(value)
		if !ok {
			return &ParseError{Line: lineNo, Kind: ErrInvalidMethod, Value: value}
		}
		s.tc.Method = m
	case "headers":
		s.openSection(stateHeaders, lineNo)
	case "payload":
		s.openSection(statePayload, lineNo)
	case "assertions":
		s.openSection(stateAssertions, lineNo)
	default:
		return &ParseError{Line: lineNo, Kind: ErrInvalidSection, Value: key}
	}
	return nil
}

func (s *scanner) openSection(state scanState, lineNo int) {
	s.state = state
	s.sectionLine = lineNo
	s.pending = nil
}

// closeSection builds the open section from its collected lines. A repeated
// section replaces the earlier one.
func (s *scanner) closeSection() error {
	var err error
	switch s.state {
	case stateTopLevel:
		return nil
	case stateHeaders:
		var h Headers
		if h, err = ParseHeaders(s.pending); err == nil {
			s.tc.Headers = h
		}
	case statePayload:
		var p Payload
		if p, err = ParsePayload(s.pending); err == nil {
			s.tc.Payload = p
		}
	case stateAssertions:
		var a Assertions
		if a, err = ParseAssertions(s.pending); err == nil {
			s.tc.Assertions = a
		}
	}

	if pe, ok := err.(*ParseError); ok {
		pe.Line += s.sectionLine
	}
	s.state = stateTopLevel
	s.pending = nil
	return err
}

// parseStatusCode accepts a decimal in the uint16 range with an optional
// leading '+'.
func parseStatusCode(value string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(value, "+"), 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}
