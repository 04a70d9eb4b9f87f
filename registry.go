package rtmp

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/calderab/rtmp/amf/amf0"
)

var ErrStreamKeyInUse = errors.New("registry: stream key is already being published")

// Registry is the process-wide session store: which sessions are live and
// which stream key each one owns. A stream key has at most one publisher at
// a time; a second publish against a live key is rejected.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	// owners maps a stream key to the session ID publishing it.
	owners map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		owners:   make(map[string]string),
	}
}

func (r *Registry) addSession(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
}

// removeSession drops the session and releases any stream key it owns.
func (r *Registry) removeSession(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	for key, owner := range r.owners {
		if owner == sessionID {
			delete(r.owners, key)
		}
	}
	r.mu.Unlock()
}

// acquireStream claims a stream key for a session.
func (r *Registry) acquireStream(streamKey, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, taken := r.owners[streamKey]; taken && owner != sessionID {
		return ErrStreamKeyInUse
	}
	r.owners[streamKey] = sessionID
	return nil
}

// StreamExists reports whether a session currently publishes the key.
func (r *Registry) StreamExists(streamKey string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.owners[streamKey]
	return exists
}

// SessionCount returns the number of live sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// guardValidator layers the registry's single-publisher rule on top of the
// configured policy: the inner validator runs first, then the stream key is
// claimed for the session.
type guardValidator struct {
	inner     Validator
	registry  *Registry
	sessionID string
}

func (g guardValidator) ValidateConnect(app string, info amf0.Object) error {
	return g.inner.ValidateConnect(app, info)
}

func (g guardValidator) ValidateReleaseStream(streamKey string) error {
	return g.inner.ValidateReleaseStream(streamKey)
}

func (g guardValidator) ValidatePublish(app, streamKey, publishingType string) error {
	if err := g.inner.ValidatePublish(app, streamKey, publishingType); err != nil {
		return err
	}
	return g.registry.acquireStream(streamKey, g.sessionID)
}

func (g guardValidator) ValidateSetDataFrame(values []interface{}) error {
	return g.inner.ValidateSetDataFrame(values)
}
