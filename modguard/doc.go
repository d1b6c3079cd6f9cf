// Community abuse-mitigation engine: message-rate anti-spam with warn/mute escalation, voice
// presence tracking with idle relocation, and periodic cleanup of both.
//
// This package (`github.com/wardenbot/warden/modguard`) re-exports the main types of its
// sub-packages. Settings are resolved per community and channel (`settings`), message rates are
// counted in fixed windows (`ratestore`), and the `engine` package coordinates escalation and
// carries out actions through the platform bridge (`platform`).
//
// See `cmd/warden` for a daemon built on this package.
package modguard
