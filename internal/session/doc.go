// Package session implements the Connection Manager component.
//
// The Connection Manager:
//   - Drives the connection lifecycle state machine
//     (disconnected → connecting → authenticating → authenticated → error)
//   - Authenticates with the bearer credential as the first frame after open
//   - Sends heartbeat pings and closes connections with no timely pong
//   - Renews the presence lease on a fixed interval and on wake
//   - Reconnects with capped exponential backoff up to a bounded attempt
//     count, then gives up into the error state
//   - Queues outbound commands while unauthenticated and flushes them FIFO
//
// All session state is owned by a single run loop; public methods post
// operations onto the loop, so handlers run to completion and never
// interleave.
package session
