// Package queue persists transcription tasks in SQLite and is the single
// source of truth for task state.
//
// The Store manages the database connection, schema initialization, the
// atomic claim operation the worker depends on, and the single-field updates
// each pipeline stage performs. Tasks are never deleted; the table doubles as
// the history consumed by the results listing and the statistics view.
//
// Claiming is a select-and-mark inside one transaction, so a task handed to
// one claimer is never handed to another even if several worker processes
// share the database.
package queue
