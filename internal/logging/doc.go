// Package logging wires log/slog into the daemon: console or JSON handlers,
// stdout plus log-file fanout, and the standardized attribute helpers shared
// by the worker, store, and API layers.
//
// Every stage transition and stage failure in the worker emits a structured
// record through this package, which is what makes the scribed.log file in
// the log directory usable as an operational event stream.
package logging
