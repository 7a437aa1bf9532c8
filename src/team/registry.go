package team

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Protocol-Lattice/design-team/src/concurrent"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"k8s.io/klog/v2"
)

const (
	defaultSessionTTL      = 30 * time.Minute
	sessionCleanupInterval = 5 * time.Minute
	closeConcurrency       = 8
)

// SessionFactory builds a session for a credential.
type SessionFactory func(ctx context.Context, credential string) (*Session, error)

type registryEntry struct {
	fingerprint string
	session     *Session
	// detached marks an entry whose session is closed by the caller that
	// removed it, outside the registry lock, instead of by OnEvicted.
	detached atomic.Bool
}

// Registry hands out sessions by id. A session lives until it has been idle
// for the TTL; expired sessions are closed. Credentials are only kept as a
// SHA-256 fingerprint.
type Registry struct {
	mu       sync.Mutex
	factory  SessionFactory
	sessions *cache.Cache // id -> *registryEntry
	byKey    *cache.Cache // fingerprint -> id
	ttl      time.Duration
}

// NewRegistry creates a registry; a non-positive ttl uses 30 minutes.
func NewRegistry(factory SessionFactory, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	r := &Registry{
		factory:  factory,
		sessions: cache.New(ttl, sessionCleanupInterval),
		byKey:    cache.New(ttl, sessionCleanupInterval),
		ttl:      ttl,
	}
	r.sessions.OnEvicted(func(id string, v interface{}) {
		e, ok := v.(*registryEntry)
		if !ok || e.detached.Load() {
			return
		}
		klog.V(2).Infof("session %s expired", id)
		closeSession(id, e.session)
	})
	return r
}

func fingerprint(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// Open returns the live session for credential, creating one when none
// exists. Sessions are shared between callers presenting the same
// credential. The session is built without holding the registry lock.
func (r *Registry) Open(ctx context.Context, credential string) (string, *Session, error) {
	fp := fingerprint(credential)
	if id, e, ok := r.findByFingerprint(fp); ok {
		return id, e.session, nil
	}

	sess, err := r.factory(ctx, credential)
	if err != nil {
		return "", nil, err
	}

	r.mu.Lock()
	if id, e, ok := r.findByFingerprintLocked(fp); ok {
		r.mu.Unlock()
		// lost a race with a concurrent Open for the same credential
		closeSession("", sess)
		return id, e.session, nil
	}
	id := uuid.NewString()
	r.touch(id, &registryEntry{fingerprint: fp, session: sess})
	r.mu.Unlock()

	klog.V(2).Infof("session %s opened", id)
	return id, sess, nil
}

// Rebind points an existing session id at a credential. The session is
// rebuilt only when the credential differs from the one it was built with;
// on failure the old session is left untouched. The replaced session is
// closed after the registry lock is released.
func (r *Registry) Rebind(ctx context.Context, id, credential string) (*Session, error) {
	fp := fingerprint(credential)

	r.mu.Lock()
	if cur, ok := r.lookup(id); ok && cur.fingerprint == fp {
		r.touch(id, cur)
		r.mu.Unlock()
		return cur.session, nil
	}
	r.mu.Unlock()

	sess, err := r.factory(ctx, credential)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	old, exists := r.lookup(id)
	if exists && old.fingerprint == fp {
		r.touch(id, old)
		r.mu.Unlock()
		closeSession("", sess)
		return old.session, nil
	}
	if exists {
		old.detached.Store(true)
		r.forgetFingerprint(old.fingerprint, id)
	}
	// Set on a live key replaces it without firing OnEvicted.
	r.touch(id, &registryEntry{fingerprint: fp, session: sess})
	r.mu.Unlock()

	if exists {
		klog.V(2).Infof("session %s reinitialized for a new credential", id)
		closeSession(id, old.session)
	}
	return sess, nil
}

// Get returns the session for id and extends its lifetime.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.lookup(id)
	if !ok {
		return nil, false
	}
	r.touch(id, e)
	return e.session, true
}

// Remove forgets a session and closes it. Closing waits for a dispatch in
// flight on that session, but never blocks other registry callers.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.lookup(id)
	if ok {
		e.detached.Store(true)
		r.forgetFingerprint(e.fingerprint, id)
		r.sessions.Delete(id)
	}
	r.mu.Unlock()

	if ok {
		closeSession(id, e.session)
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	return r.sessions.ItemCount()
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	items := r.sessions.Items()
	entries := make([]*registryEntry, 0, len(items))
	for _, item := range items {
		if e, ok := item.Object.(*registryEntry); ok {
			e.detached.Store(true)
			entries = append(entries, e)
		}
	}
	// Flush does not fire OnEvicted.
	r.sessions.Flush()
	r.byKey.Flush()
	r.mu.Unlock()

	err := concurrent.ForEach(context.Background(), entries, func(e *registryEntry) error {
		return e.session.Close()
	}, closeConcurrency)
	if err != nil {
		klog.Warningf("registry close: %v", err)
	}
}

func (r *Registry) findByFingerprint(fp string) (string, *registryEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findByFingerprintLocked(fp)
}

func (r *Registry) findByFingerprintLocked(fp string) (string, *registryEntry, bool) {
	v, ok := r.byKey.Get(fp)
	if !ok {
		return "", nil, false
	}
	id := v.(string)
	e, ok := r.lookup(id)
	if !ok || e.fingerprint != fp {
		return "", nil, false
	}
	r.touch(id, e)
	return id, e, true
}

// forgetFingerprint drops the fingerprint index only while it still points
// at id.
func (r *Registry) forgetFingerprint(fp, id string) {
	if v, ok := r.byKey.Get(fp); ok && v.(string) == id {
		r.byKey.Delete(fp)
	}
}

func closeSession(id string, s *Session) {
	if err := s.Close(); err != nil {
		klog.Warningf("session %s close: %v", id, err)
	}
}

func (r *Registry) lookup(id string) (*registryEntry, bool) {
	v, ok := r.sessions.Get(id)
	if !ok {
		return nil, false
	}
	e, ok := v.(*registryEntry)
	return e, ok
}

func (r *Registry) touch(id string, e *registryEntry) {
	r.sessions.Set(id, e, r.ttl)
	r.byKey.Set(e.fingerprint, id, r.ttl)
}
