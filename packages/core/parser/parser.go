package parser

import (
	"errors"
	"os"
)

// File is a parsed test definition document.
type File struct {
	Path  string
	Cases []*TestCase
}

func ParseFile(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(content), path)
}

// Parse filters comments, splits the document into blocks and parses each
// block in order. The first failing block aborts the parse.
func Parse(input, filename string) (*File, error) {
	blocks := SplitBlocks(FilterComments(input))

	file := &File{
		Path:  filename,
		Cases: make([]*TestCase, 0, len(blocks)),
	}
	for i, block := range blocks {
		tc, err := ParseBlock(block, i+1)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.File = filename
			}
			return nil, err
		}
		file.Cases = append(file.Cases, tc)
	}
	return file, nil
}

// ParseBlock parses one test case. index is the 1-based block position used
// in errors and stored on the result.
func ParseBlock(block string, index int) (*TestCase, error) {
	tc, err := newScanner(block).scan()
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Block = index
		}
		return nil, err
	}
	tc.Block = index
	return tc, nil
}
