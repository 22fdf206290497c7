// Package session arbitrates which conversation the operator console is
// showing and coordinates everything that changes when that answer
// changes.
//
// # Switching
//
// SelectConversation runs a fixed sequence: the outgoing conversation's
// typing burst is flushed and its channel closed, its draft is persisted
// synchronously, pagination and scroll state reset, the first history
// page loads, the live channel attaches, and finally the incoming
// conversation's draft is restored. Restoring strictly after the flush
// means rapid A-to-B switches can never bleed one conversation's text
// into another.
//
// # Epochs
//
// Every switch increments an epoch counter, and every asynchronous
// completion (history responses, push frames, disconnect notices)
// carries the epoch it was issued under. A completion whose epoch no
// longer matches is dropped, so a slow response for a conversation the
// operator already left can never touch the current view.
package session
