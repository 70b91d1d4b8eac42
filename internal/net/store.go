package net

import "sort"

// Packet is an inbound envelope paired with the session that received it.
type Packet struct {
	Session *Session
	Inbound
}

// SessionStore holds the sessions known to the game loop.
// Accessed only from the game loop goroutine.
type SessionStore struct {
	sessions map[uint64]*Session
	buf      []Packet
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[uint64]*Session),
		buf:      make([]Packet, 0, 256),
	}
}

func (st *SessionStore) Add(s *Session) { st.sessions[s.ID()] = s }

func (st *SessionStore) Remove(id uint64) { delete(st.sessions, id) }

func (st *SessionStore) Get(id uint64) *Session { return st.sessions[id] }

func (st *SessionStore) Len() int { return len(st.sessions) }

// Each calls fn for every session in ascending id order.
func (st *SessionStore) Each(fn func(*Session)) {
	for _, s := range st.Sorted() {
		fn(s)
	}
}

// Sorted returns the sessions in ascending id order.
func (st *SessionStore) Sorted() []*Session {
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Drain takes what is queued on every session right now, at most limit per
// session (0 = no limit), and returns it in global receipt order. Frames
// arriving while Drain runs stay queued for the next call. The returned slice
// is reused by the next Drain.
func (st *SessionStore) Drain(limit int) []Packet {
	st.buf = st.buf[:0]
	for _, s := range st.sessions {
		n := len(s.InQueue)
		if limit > 0 && n > limit {
			n = limit
		}
		for i := 0; i < n; i++ {
			st.buf = append(st.buf, Packet{Session: s, Inbound: <-s.InQueue})
		}
	}
	sort.Slice(st.buf, func(i, j int) bool { return st.buf[i].Seq < st.buf[j].Seq })
	return st.buf
}
