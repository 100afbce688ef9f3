// Package worker runs the background transcription loop.
//
// The manager claims pending tasks in batches, drives each one through the
// acquire, transcribe, and persist stages, and hands finished tasks to the
// notification service. A task whose stage fails is released back to the
// queue for another attempt until the configured attempt budget is spent,
// at which point it is marked failed and left for operator review.
package worker
