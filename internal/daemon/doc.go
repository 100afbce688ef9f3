// Package daemon ties the worker loop and the HTTP API into a single
// long-running process guarded by a file lock so only one instance serves
// a data directory at a time.
package daemon
