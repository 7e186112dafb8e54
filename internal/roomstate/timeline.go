package roomstate

import (
	"sort"

	"github.com/parley-im/parley-go/internal/model"
)

// insert places a message at its sorted position by CreatedAt (ties broken
// by id for determinism). Never appends blindly.
func (r *roomState) insert(msg model.Message) {
	pos := sort.Search(len(r.messages), func(i int) bool {
		m := r.messages[i]
		if m.CreatedAt.Equal(msg.CreatedAt) {
			return m.ID >= msg.ID
		}
		return m.CreatedAt.After(msg.CreatedAt)
	})

	r.messages = append(r.messages, model.Message{})
	copy(r.messages[pos+1:], r.messages[pos:])
	r.messages[pos] = msg
	r.byID[msg.ID] = struct{}{}
}

// remove deletes a message by id. Absent ids are a no-op.
func (r *roomState) remove(messageID int64) {
	if _, ok := r.byID[messageID]; !ok {
		return
	}
	delete(r.byID, messageID)
	for i, m := range r.messages {
		if m.ID == messageID {
			r.messages = append(r.messages[:i], r.messages[i+1:]...)
			return
		}
	}
}

// replaceByID swaps the held copy of msg.ID for msg, re-sorting if the
// creation timestamp moved.
func (r *roomState) replaceByID(msg model.Message) {
	for i, m := range r.messages {
		if m.ID == msg.ID {
			if m.CreatedAt.Equal(msg.CreatedAt) {
				r.messages[i] = msg
				return
			}
			r.messages = append(r.messages[:i], r.messages[i+1:]...)
			delete(r.byID, msg.ID)
			r.insert(msg)
			return
		}
	}
}

// holdsCorrelation reports whether any held message carries the correlation id.
func (r *roomState) holdsCorrelation(correlationID string) bool {
	for _, m := range r.messages {
		if m.CorrelationID == correlationID {
			return true
		}
	}
	return false
}

// reconcile merges one server-confirmed message and reports the outcome.
//
// Order of attempts:
//  1. If the confirmed id is already held, drop the re-delivery. This must
//     run before any matching: a re-delivered message would otherwise
//     heuristically consume a different pending entry and duplicate its id.
//  2. Replace the unconfirmed entry with a matching correlation id.
//  3. Replace the most recent unconfirmed entry from the same sender with
//     identical content, or one that also carries an attachment when the
//     incoming message does. This narrow fallback covers messages sent
//     before the correlation id mechanism populated; two genuinely
//     different messages from the same sender must never merge.
//  4. Insert as a new message.
func (r *roomState) reconcile(msg model.Message) string {
	if _, dup := r.byID[msg.ID]; dup {
		return outcomeDuplicate
	}

	if msg.CorrelationID != "" {
		if i := r.findUnconfirmedByCorrelation(msg.CorrelationID); i >= 0 {
			r.swap(i, msg)
			return outcomeCorrelation
		}
	}

	if i := r.findUnconfirmedHeuristic(msg); i >= 0 {
		r.swap(i, msg)
		return outcomeHeuristic
	}

	r.insert(msg)
	return outcomeInsert
}

// swap removes the unconfirmed entry at index i and inserts msg in its
// sorted position.
func (r *roomState) swap(i int, msg model.Message) {
	old := r.messages[i]
	delete(r.byID, old.ID)
	r.messages = append(r.messages[:i], r.messages[i+1:]...)
	r.insert(msg)
}

// findUnconfirmedByCorrelation returns the index of the unconfirmed entry
// with the given correlation id, or -1.
func (r *roomState) findUnconfirmedByCorrelation(correlationID string) int {
	for i, m := range r.messages {
		if !m.Confirmed() && m.CorrelationID == correlationID {
			return i
		}
	}
	return -1
}

// findUnconfirmedHeuristic returns the index of the most recent unconfirmed
// entry from the same sender that matches msg by content, or by both
// carrying an attachment. Returns -1 when nothing matches.
//
// Known limitation: two identical unconfirmed messages from the same sender
// cannot be told apart; the most recent one wins.
func (r *roomState) findUnconfirmedHeuristic(msg model.Message) int {
	for i := len(r.messages) - 1; i >= 0; i-- {
		m := r.messages[i]
		if m.Confirmed() || m.SenderID != msg.SenderID {
			continue
		}
		if m.Content == msg.Content {
			return i
		}
		if msg.Attachment != nil && m.Attachment != nil {
			return i
		}
	}
	return -1
}
