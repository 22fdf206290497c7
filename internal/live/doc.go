// Package live owns the push side of the sync engine: the persistent
// websocket channel for one conversation and the merger that applies its
// frames to the timeline.
//
// # Channel
//
// One Channel exists per active conversation. It is established when the
// operator opens the conversation and closed when they switch away; there
// is no automatic reconnect. Outbound frames are agent_typing presence
// signals and send-message frames; sends on a closed channel fail with
// ErrNotConnected so the caller keeps the draft.
//
// # Merger
//
// The Merger decodes each payload into the closed variant set from the
// wire package and applies it:
//
//   - ping/pong: counted, otherwise ignored
//   - contact_updated: external refresh signal only
//   - typing: presence callback only, never enters the timeline
//   - message (bare or wrapped): deduplicated by id, appended at the live
//     edge
//
// Malformed payloads are logged at Warn and dropped without touching the
// timeline.
package live
