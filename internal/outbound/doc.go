// Package outbound is the command surface of the sync client. It turns
// application intents (send a message, start typing, join a call) into wire
// frames, and keeps the local room store consistent with what was requested.
package outbound
