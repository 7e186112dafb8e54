// Package transport implements the Transport Socket component.
//
// The Transport Socket:
//   - Owns one bidirectional WebSocket connection to the Parley server
//   - Emits raw inbound frames with receive timestamps
//   - Accepts raw outbound frames with write deadlines
//   - Reports open/close/error; it knows nothing about frame semantics
//
// Authentication is NOT part of the handshake: the bearer credential is sent
// by the session layer as the first application-level frame, so it never
// appears in connection URLs or proxy access logs.
package transport
