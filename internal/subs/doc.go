// Package subs tracks which rooms the client wants delivery for, and which
// call it has joined, across the life of the process. The registry survives
// connection drops so the session can replay every subscription after
// re-authentication.
package subs
