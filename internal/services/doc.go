// Package services defines the [Player] interface for remote playback control and implements it for Spotify.
//
// # Player Interface
//
// The playback package depends on [Player] only.
//
// # Spotify Implementation
//
// [SpotifyService] is bound to an authenticated [http.Client] produced by the session package.
// Mutations (next, previous, seek, pause, resume) go through the zmb3/spotify client.
// The currently-playing read is issued directly so that podcast episodes decode into [Episode]
// rather than being forced into a track shape.
//
// # Error Handling
//
// Every failed call is wrapped in [shared.ErrAPIRequest]. Nothing is retried.
//
// # Playable Items
//
// [PlayableItem] is a closed union of [Track] and [Episode]; callers switch on the concrete type.
package services
