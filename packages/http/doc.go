// Package http sends the requests built from parsed test cases.
//
// It wraps the standard library client with configurable timeouts, redirect
// handling, TLS verification, proxies and default headers. Every call takes a
// context so a run can be cancelled as a whole.
package http
