// SPDX-License-Identifier: EPL-2.0

package drm

import (
	"sort"
	"strings"
	"sync"

	"github.com/ik5/audrender/logger"
	"github.com/ik5/audrender/media"
)

// SessionManager hands out ClearKey sessions, sharing one live session between
// streams that announce the same key ids.
type SessionManager struct {
	provider  KeyProvider
	playClear bool
	log       logger.Logger

	mu       sync.Mutex
	sessions map[string]*ClearKeySession
}

// NewSessionManager creates a manager backed by provider. provider may be nil,
// in which case protected streams are reported as unsupported.
func NewSessionManager(provider KeyProvider, playClear bool, log logger.Logger) *SessionManager {
	return &SessionManager{
		provider:  provider,
		playClear: playClear,
		log:       logger.OrNoop(log),
		sessions:  make(map[string]*ClearKeySession),
	}
}

// CanHandle reports whether init can be served by this manager.
func (m *SessionManager) CanHandle(init *media.DrmInitData) bool {
	if m == nil || m.provider == nil || init == nil {
		return false
	}
	if init.SchemeType != "" && init.SchemeType != media.SchemeCENC {
		return false
	}
	return len(init.KeyIDs()) > 0
}

// AcquireSession returns a session for init with one reference held by the
// caller. A nil init returns a nil session.
func (m *SessionManager) AcquireSession(init *media.DrmInitData) (Session, error) {
	if init == nil {
		return nil, nil
	}
	if m == nil || m.provider == nil {
		return nil, ErrNoProvider
	}

	id := sessionKey(init.KeyIDs())

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		switch s.State() {
		case StateReleased, StateError:
			delete(m.sessions, id)
		default:
			s.Acquire()
			m.log.Debug("Reusing DRM session for %d key(s)", len(s.kids))
			return s, nil
		}
	}

	s, err := NewClearKeySession(init, m.provider,
		WithPlayClearSamplesWithoutKeys(m.playClear),
		WithLogger(m.log),
	)
	if err != nil {
		return nil, err
	}
	s.Acquire()
	m.sessions[id] = s

	return s, nil
}

func sessionKey(kids []media.KeyID) string {
	ids := make([]string, len(kids))
	for i, k := range kids {
		ids[i] = k.String()
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
