// Package session owns the Spotify OAuth2 credential lifecycle.
//
// # Token Cache
//
// [TokenStore] persists a single [CachedToken] as TOML. A missing or unreadable file is reported as absent,
// never as an error, so a corrupt cache silently leads to re-authorization.
//
// # Session Manager
//
// [Manager.Session] resolves a usable token in this order:
//  1. cached token with the required [Scopes] and not near expiry: used as-is
//  2. cached token near expiry with a refresh token: refreshed and written back
//  3. anything else: interactive authorization through the injected [CodePrompt]
//
// Exchange and refresh failures are returned wrapped in [shared.ErrAuthFailed] or [shared.ErrRefreshFailed].
// Nothing is retried.
//
// The [Session] HTTP client refreshes transparently and writes changed tokens back to the store.
package session
