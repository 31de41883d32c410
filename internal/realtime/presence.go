package realtime

import (
	"slices"
	"sync"
)

const presenceShards = 32

// PresenceTracker keeps, per document, the distinct users holding at least one
// open connection. Removal is decided by re-scanning the registry rather than
// by counting connections.
type PresenceTracker struct {
	shards [presenceShards]presenceShard
}

type presenceShard struct {
	mu   sync.Mutex
	docs map[int64]map[int64]struct{} // documentID -> userIDs
}

func NewPresenceTracker() *PresenceTracker {
	p := &PresenceTracker{}
	for i := range p.shards {
		p.shards[i].docs = make(map[int64]map[int64]struct{})
	}
	return p
}

func (p *PresenceTracker) shard(documentID int64) *presenceShard {
	return &p.shards[uint64(documentID)%presenceShards]
}

// OnConnectionAdded marks userID present on the document and reports whether
// the user was not present before. Anonymous connections (nil) never change presence.
func (p *PresenceTracker) OnConnectionAdded(documentID int64, userID *int64) bool {
	if userID == nil {
		return false
	}

	s := p.shard(documentID)
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.docs[documentID]
	if !ok {
		users = make(map[int64]struct{})
		s.docs[documentID] = users
	}
	if _, ok := users[*userID]; ok {
		return false
	}
	users[*userID] = struct{}{}
	return true
}

// OnConnectionRemoved drops userID from the document's presence unless another
// registered connection still belongs to that user. The closing connection
// must already be unsubscribed from registry.
//
// The scan runs under the shard lock, so a concurrent OnConnectionAdded for the
// same user either sees the user still present or re-adds it after removal.
func (p *PresenceTracker) OnConnectionRemoved(documentID int64, userID *int64, registry *Registry) bool {
	if userID == nil {
		return false
	}

	s := p.shard(documentID)
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.docs[documentID]
	if !ok {
		return false
	}
	if _, ok := users[*userID]; !ok {
		return false
	}

	for _, conn := range registry.Snapshot(documentID) {
		if uid, ok := conn.UserID(); ok && uid == *userID {
			return false
		}
	}

	delete(users, *userID)
	if len(users) == 0 {
		delete(s.docs, documentID)
	}
	return true
}

// Presence returns the users present on the document, sorted ascending.
func (p *PresenceTracker) Presence(documentID int64) []int64 {
	s := p.shard(documentID)
	s.mu.Lock()
	users := s.docs[documentID]
	out := make([]int64, 0, len(users))
	for uid := range users {
		out = append(out, uid)
	}
	s.mu.Unlock()

	slices.Sort(out)
	return out
}

// Count is the number of present users across all documents.
func (p *PresenceTracker) Count() int {
	n := 0
	for i := range p.shards {
		s := &p.shards[i]
		s.mu.Lock()
		for _, users := range s.docs {
			n += len(users)
		}
		s.mu.Unlock()
	}
	return n
}
