// Package config loads apicase settings from .apicase.json, apicase.json,
// .apicase.yaml, .apicase.yml or .apicase.toml.
//
// Boolean settings are pointers so that Merge can tell an explicit false from
// an absent value; use the Get* accessors to read them with their defaults.
package config
