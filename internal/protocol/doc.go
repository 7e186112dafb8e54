// Package protocol defines the Parley real-time wire protocol.
//
// Every WebSocket text message carries exactly one JSON frame:
//
//	{"type": "<namespace>.<name>", "payload": {...}}
//
// The namespace is the prefix before the first dot ("message", "room",
// "presence", ...). Frames without a dot are their own namespace ("auth",
// "ping", "pong", "error").
package protocol
