// Package api exposes the task queue over a JSON HTTP interface.
//
// The server is read-mostly: it accepts new task submissions and serves
// task state, transcripts, and subtitle documents. All processing happens
// in the worker; handlers only touch the store.
package api
