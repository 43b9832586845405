// Package env resolves {{name}} placeholders in request URLs and header values.
//
// Values come from the config file's variables, an optional .env file, the
// process environment ({{$HOME}}) and a few built-ins ({{uuid()}},
// {{timestamp()}}, {{timestampMs()}}, {{now()}}). Placeholders are resolved
// when a request is sent; parsed test cases keep the text as written.
package env
