package realtime

import "sync"

const registryShards = 32

// Registry holds the live connections of every document. Documents are spread
// over shards so that unrelated documents never contend on the same lock.
type Registry struct {
	shards [registryShards]registryShard
}

type registryShard struct {
	mu   sync.RWMutex
	docs map[int64]map[string]*Connection // documentID -> connectionID -> connection
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].docs = make(map[int64]map[string]*Connection)
	}
	return r
}

func (r *Registry) shard(documentID int64) *registryShard {
	return &r.shards[uint64(documentID)%registryShards]
}

// Subscribe registers conn under documentID. Registering the same connection
// twice keeps a single entry.
func (r *Registry) Subscribe(documentID int64, conn *Connection) {
	s := r.shard(documentID)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.docs[documentID]
	if !ok {
		conns = make(map[string]*Connection)
		s.docs[documentID] = conns
	}
	conns[conn.ID()] = conn
}

// Unsubscribe removes conn and reports whether it was registered.
func (r *Registry) Unsubscribe(documentID int64, conn *Connection) bool {
	s := r.shard(documentID)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.docs[documentID]
	if !ok {
		return false
	}
	if _, ok := conns[conn.ID()]; !ok {
		return false
	}
	delete(conns, conn.ID())
	if len(conns) == 0 {
		delete(s.docs, documentID)
	}
	return true
}

// Snapshot returns a copy of the document's subscribers. The result is never
// touched by later Subscribe/Unsubscribe calls.
func (r *Registry) Snapshot(documentID int64) []*Connection {
	s := r.shard(documentID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	conns := s.docs[documentID]
	out := make([]*Connection, 0, len(conns))
	for _, conn := range conns {
		out = append(out, conn)
	}
	return out
}

// Documents lists the documents that currently have at least one subscriber.
func (r *Registry) Documents() []int64 {
	var out []int64
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for id := range s.docs {
			out = append(out, id)
		}
		s.mu.RUnlock()
	}
	return out
}

// Len is the number of registered connections across all documents.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, conns := range s.docs {
			n += len(conns)
		}
		s.mu.RUnlock()
	}
	return n
}
