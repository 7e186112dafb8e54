// Package events implements the Event Router component.
//
// The Event Router:
//   - Classifies inbound frames by their type tag
//   - Dispatches to exact-type, namespace-wildcard, and global-wildcard
//     listeners, in that order
//   - Routes unknown frame types to wildcard listeners only, never as errors
//   - Allows listener registration/removal during dispatch without affecting
//     the in-flight dispatch pass
package events
