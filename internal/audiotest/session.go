// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"sync"

	"github.com/ik5/audrender/drm"
	"github.com/ik5/audrender/media"
)

// FakeSession is a drm.Session whose state is set by the test.
type FakeSession struct {
	mu        sync.Mutex
	state     drm.State
	err       error
	refs      int
	playClear bool

	// Decrypted counts buffers passed to the crypto context.
	Decrypted int
}

// NewFakeSession returns a session in the given state.
func NewFakeSession(state drm.State) *FakeSession {
	return &FakeSession{state: state}
}

// SetState moves the session to state.
func (s *FakeSession) SetState(state drm.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Fail moves the session to the error state.
func (s *FakeSession) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = drm.StateError
	s.err = err
}

// SetPlayClearSamplesWithoutKeys sets the clear sample policy.
func (s *FakeSession) SetPlayClearSamplesWithoutKeys(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playClear = on
}

// Refs returns the reference count.
func (s *FakeSession) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

func (s *FakeSession) State() drm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *FakeSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *FakeSession) CryptoContext() drm.CryptoContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != drm.StateOpened && s.state != drm.StateOpenedWithKeys {
		return nil
	}
	return fakeCrypto{s}
}

func (s *FakeSession) PlayClearSamplesWithoutKeys() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playClear
}

func (s *FakeSession) Acquire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs++
}

func (s *FakeSession) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs--
}

type fakeCrypto struct {
	s *FakeSession
}

func (c fakeCrypto) Decrypt(buf *media.InputBuffer) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.Decrypted++
	buf.Flags &^= media.FlagEncrypted
	return nil
}
