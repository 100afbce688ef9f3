// Package config loads, validates, and normalizes the scribe configuration
// file. Configuration lives in a single TOML document; Load applies defaults,
// expands ~ in path fields, and rejects unusable values before anything else
// in the daemon starts.
package config
