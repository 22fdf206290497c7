// Package draft persists unsent operator text per conversation so a draft
// survives switching conversations and coming back.
//
// # Storage
//
// Drafts are stored one row per (conversation_id, field) pair where field
// is "reply" or "note". The text is raw and absence is equivalent to the
// empty string, so empty drafts are removed rather than written.
//
// # Session
//
// The Session layers editing semantics on top of the store:
//
//   - switch-away: trimmed non-empty text is persisted synchronously,
//     empty text removes the stored entry
//   - switch-in: the new conversation's text is loaded and a short
//     suppression window inhibits autosave, so a stale debounce timer
//     from the previous conversation cannot overwrite it
//   - autosave: edits debounce before flushing; clear-on-send bypasses
//     the debounce entirely
package draft
