// Command scribe is the operator CLI for the transcription queue. It talks
// directly to the queue database, so most commands work whether or not the
// scribed daemon is running.
package main
