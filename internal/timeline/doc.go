// Package timeline holds the message model and the history cache for one
// conversation.
//
// # Cache
//
// The Cache merges two sources into a single oldest-first timeline:
//
//   - history pages fetched backward with a cursor (BeginFetch /
//     CompleteFetch / AbortFetch)
//   - live messages pushed over the persistent channel (AppendLive)
//
// Pages arrive newest-first on the wire and are normalized to oldest-first
// on ingest. The cursor for the next older page is always the id of the
// oldest message of the most recently appended page, and cursor
// computation is serialized with fetch admission so concurrent fetchOlder
// attempts cannot skew pagination.
//
// # Invariants
//
//   - no two cached messages share an id
//   - previously ingested pages are never reordered; only the newest page
//     grows at its tail
//   - a page shorter than the limit terminates pagination permanently
package timeline
