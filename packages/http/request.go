package http

import (
	"github.com/abdul-hamid-achik/apicase/packages/core/parser"
)

// Request carries only what a test case sends: no body is attached.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// BuildRequestFromTestCase builds the request for tc from its method, URL and
// headers, passing the URL and header values through resolver. The payload
// section is not sent.
func BuildRequestFromTestCase(tc *parser.TestCase, resolver func(string) string) *Request {
	if resolver == nil {
		resolver = func(s string) string { return s }
	}

	r := NewRequest(string(tc.Method), resolver(tc.URL))
	for k, v := range tc.Headers {
		r.SetHeader(k, resolver(v))
	}
	return r
}
