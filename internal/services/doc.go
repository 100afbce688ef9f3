// Package services defines shared error utilities consumed by the worker
// pipeline stages and external integrations.
//
// Stage logic wraps failures with one of the exported sentinel markers so the
// worker can decide between retrying a task later and failing it terminally
// without inspecting error strings.
package services
