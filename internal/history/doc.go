// Package history is the REST collaborator of the sync client. The socket
// only carries live traffic; room listings and older message pages come from
// the HTTP API and are merged into the room store.
package history
