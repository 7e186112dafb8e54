// Package roomstate implements the Reconciliation Store component.
//
// The Reconciliation Store:
//   - Owns all per-room state; it is the only writer, readers get copies
//   - Keeps each room's timeline sorted ascending by creation time
//   - Matches locally-created optimistic messages against server-confirmed
//     ones (correlation id first, narrow content heuristic second)
//   - Tracks ephemeral substate: typing, presence, cursors, call roster
//   - De-duplicates paginated history batches against held message ids
package roomstate
