// Package media turns remote video URLs into local audio files by driving
// yt-dlp. The command runner is injectable so tests never spawn the real
// binary.
package media
