// Package subtitle builds the caption document attached to completed tasks
// from the transcriber's time-aligned segments.
package subtitle
