// Package ui holds the lipgloss styles used for interactive prompts and auth status output.
//
// Playback commands print unstyled single lines so their output stays scriptable.
package ui
