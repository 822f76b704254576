package websocket

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultSessionTTL is how long a detached workspace can be resumed.
// Attached sessions do not expire.
const DefaultSessionTTL = 30 * time.Minute

// SessionStore keeps workspace sessions between connections. Expired
// sessions are closed, which discards anything still streaming.
type SessionStore struct {
	cache *cache.Cache
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	c := cache.New(ttl, ttl/3)
	c.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(*Session); ok && !s.Attached() {
			s.Close()
		}
	})
	return &SessionStore{cache: c}
}

// Save stores or refreshes a session, restarting its expiry.
func (r *SessionStore) Save(session *Session) {
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
}

// Hold stores a session without expiry while a socket is attached to it.
func (r *SessionStore) Hold(session *Session) {
	r.cache.Set(session.ID, session, cache.NoExpiration)
}

func (r *SessionStore) Get(sessionID string) (*Session, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*Session), true
	}
	return nil, false
}

func (r *SessionStore) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

func (r *SessionStore) Count() int {
	return r.cache.ItemCount()
}
