// Package playback decides which remote playback command to issue.
//
// # Query
//
// [DescribeCurrent] reads one snapshot and renders the current item as a
// single line: "Artist - Title" for tracks, "Show - Title" for episodes.
//
// # Controller
//
// [Controller] wraps a [services.Player] and implements the three mutating
// commands. Each performs at most one snapshot read followed by at most one
// write and never polls to confirm the result:
//
//   - SkipNext always skips forward.
//   - PreviousOrRestart skips back only when the current item has played for
//     fewer than the given number of whole seconds; otherwise it seeks to 0.
//   - TogglePlayPause pauses when playing and resumes otherwise.
//
// Both conditional commands are silent no-ops when nothing is playing.
package playback
