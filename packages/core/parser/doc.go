// Package parser turns apicase test definition documents into TestCase values.
//
// A document holds one or more blocks separated by lines containing only "---".
// Lines whose first non-blank character is '#' are comments. Each block is a
// sequence of "key: value" lines:
//
//	testcase: get user
//	method: GET
//	url: https://api.example.com/users/1
//	statuscode: 200
//	headers:
//	  Accept: application/json
//	assertions:
//	  jsonPathExists: $.id
//
// The headers, payload and assertions keys open a section. Lines indented by
// two spaces or a tab belong to the open section; the first unindented line
// closes it.
//
// Parse stops at the first malformed block and returns a *ParseError that
// wraps one of the Err* sentinels.
package parser
