// SPDX-License-Identifier: EPL-2.0

package drm

import (
	"context"
	"fmt"
	"sync"

	"github.com/Eyevinn/mp4ff/mp4"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ik5/audrender/logger"
	"github.com/ik5/audrender/media"
)

// ClearKeySession is a Session for cenc content whose keys come from a
// KeyProvider. Keys are fetched on a background goroutine after the first
// Acquire; the session is released when its reference count drops to zero.
type ClearKeySession struct {
	kids      []media.KeyID
	provider  KeyProvider
	playClear bool
	log       logger.Logger

	mu     sync.Mutex
	state  State
	err    error
	keys   map[media.KeyID][]byte
	refs   int
	cancel context.CancelFunc
	done   chan struct{}
	crypto *clearKeyCrypto
}

// SessionOption configures a ClearKeySession.
type SessionOption func(*ClearKeySession)

// WithPlayClearSamplesWithoutKeys lets clear samples through before keys load.
func WithPlayClearSamplesWithoutKeys(v bool) SessionOption {
	return func(s *ClearKeySession) { s.playClear = v }
}

// WithLogger sets the session logger.
func WithLogger(l logger.Logger) SessionOption {
	return func(s *ClearKeySession) { s.log = l }
}

// NewClearKeySession creates an idle session for the keys announced by init.
func NewClearKeySession(init *media.DrmInitData, provider KeyProvider, opts ...SessionOption) (*ClearKeySession, error) {
	if init != nil && init.SchemeType != "" && init.SchemeType != media.SchemeCENC {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, init.SchemeType)
	}
	kids := init.KeyIDs()
	if len(kids) == 0 {
		return nil, ErrNoKeyIDs
	}
	if provider == nil {
		return nil, ErrNoProvider
	}

	s := &ClearKeySession{
		kids:     kids,
		provider: provider,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrNoop(s.log).WithComponent("drm")
	s.crypto = &clearKeyCrypto{session: s}

	return s, nil
}

func (s *ClearKeySession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ClearKeySession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *ClearKeySession) CryptoContext() CryptoContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateOpened, StateOpenedWithKeys:
		return s.crypto
	default:
		return nil
	}
}

func (s *ClearKeySession) PlayClearSamplesWithoutKeys() bool {
	return s.playClear
}

// KeyIDs returns the key ids the session loads.
func (s *ClearKeySession) KeyIDs() []media.KeyID {
	return s.kids
}

// Refs returns the current reference count.
func (s *ClearKeySession) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

func (s *ClearKeySession) Acquire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refs++
	if s.refs != 1 || s.state != StateIdle {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateOpening
	go s.load(ctx, s.done)
}

func (s *ClearKeySession) Release() {
	s.mu.Lock()
	if s.refs == 0 {
		s.mu.Unlock()
		return
	}
	s.refs--
	if s.refs > 0 {
		s.mu.Unlock()
		return
	}

	s.state = StateReleased
	s.keys = nil
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.log.Debug("DRM session released")
}

// Wait blocks until key loading finished or ctx is done.
func (s *ClearKeySession) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ClearKeySession) load(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.mu.Lock()
	if s.state != StateOpening {
		s.mu.Unlock()
		return
	}
	s.state = StateOpened
	s.mu.Unlock()
	s.log.Debug("DRM session opened for %d key(s)", len(s.kids))

	keys, err := s.provider.Keys(ctx, s.kids)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpened {
		return
	}
	if err == nil {
		missing := mapset.NewThreadUnsafeSet(s.kids...)
		for kid, key := range keys {
			if len(key) != 16 {
				err = fmt.Errorf("%w: %s", ErrInvalidKey, kid)
				break
			}
			missing.Remove(kid)
		}
		if err == nil && missing.Cardinality() > 0 {
			ids, _ := missing.Pop()
			err = fmt.Errorf("%w: %s", ErrKeyNotFound, ids)
		}
	}
	if err != nil {
		s.state = StateError
		s.err = err
		s.log.Warn("DRM session failed: %v", err)
		return
	}

	s.keys = keys
	s.state = StateOpenedWithKeys
	s.log.Debug("DRM keys loaded")
}

func (s *ClearKeySession) key(kid media.KeyID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys == nil {
		return nil, ErrNotOpened
	}
	if kid == (media.KeyID{}) && len(s.kids) == 1 {
		kid = s.kids[0]
	}
	key, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

type clearKeyCrypto struct {
	session *ClearKeySession
}

// Decrypt decrypts buf in place with AES-CTR and clears its encrypted flag.
// 8 byte IVs are zero extended.
func (c *clearKeyCrypto) Decrypt(buf *media.InputBuffer) error {
	if !buf.IsEncrypted() {
		return nil
	}
	info := buf.CryptoInfo

	key, err := c.session.key(info.KeyID)
	if err != nil {
		return err
	}

	iv := info.IV
	if len(iv) == 8 {
		iv = append(append(make([]byte, 0, 16), iv...), make([]byte, 8)...)
	}

	var subs []mp4.SubSamplePattern
	for _, ss := range info.SubSamples {
		subs = append(subs, mp4.SubSamplePattern{
			BytesOfClearData:     ss.Clear,
			BytesOfProtectedData: ss.Protected,
		})
	}

	if err := mp4.CryptSampleCenc(buf.Data, key, iv, subs); err != nil {
		return fmt.Errorf("decrypt sample at %dus: %w", buf.TimeUs, err)
	}
	buf.Flags &^= media.FlagEncrypted

	return nil
}
