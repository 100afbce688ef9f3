// Package transcribe runs whisper over a local audio file and parses its
// JSON output into a transcript plus time-aligned segments.
package transcribe
