// SPDX-License-Identifier: EPL-2.0

package drm

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	jose "github.com/go-jose/go-jose/v3"

	"github.com/ik5/audrender/media"
)

// KeyProvider resolves content keys for a set of key ids. Keys may be returned
// for a subset of kids; missing keys are reported by the session.
type KeyProvider interface {
	Keys(ctx context.Context, kids []media.KeyID) (map[media.KeyID][]byte, error)
}

// StaticKeys is an in-memory KeyProvider.
type StaticKeys map[media.KeyID][]byte

// ParseStaticKeys builds StaticKeys from hex encoded kid/key pairs.
func ParseStaticKeys(pairs map[string]string) (StaticKeys, error) {
	keys := make(StaticKeys, len(pairs))
	for kidHex, keyHex := range pairs {
		kid, err := ParseKeyID(kidHex)
		if err != nil {
			return nil, err
		}
		key, err := hex.DecodeString(strings.TrimSpace(keyHex))
		if err != nil {
			return nil, fmt.Errorf("key for %s: %w", kid, err)
		}
		if len(key) != 16 {
			return nil, fmt.Errorf("key for %s: %w", kid, ErrInvalidKey)
		}
		keys[kid] = key
	}
	return keys, nil
}

// ParseKeyID parses a 32 digit hex key id. Dashes are ignored.
func ParseKeyID(s string) (media.KeyID, error) {
	var kid media.KeyID
	raw, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	if err != nil {
		return kid, fmt.Errorf("key id %q: %w", s, err)
	}
	if len(raw) != len(kid) {
		return kid, fmt.Errorf("key id %q: %w", s, ErrInvalidKey)
	}
	copy(kid[:], raw)
	return kid, nil
}

func (s StaticKeys) Keys(ctx context.Context, kids []media.KeyID) (map[media.KeyID][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[media.KeyID][]byte, len(kids))
	for _, kid := range kids {
		if key, ok := s[kid]; ok {
			out[kid] = key
		}
	}
	return out, nil
}

// LicenseFile loads keys from a ClearKey JSON Web Key Set on disk. Delay
// simulates license server latency and is honoured with ctx.
type LicenseFile struct {
	Path  string
	Delay time.Duration
}

func (l LicenseFile) Keys(ctx context.Context, kids []media.KeyID) (map[media.KeyID][]byte, error) {
	if l.Delay > 0 {
		t := time.NewTimer(l.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read license: %w", err)
	}
	all, err := ParseJWKSet(data)
	if err != nil {
		return nil, err
	}

	wanted := mapset.NewThreadUnsafeSet(kids...)
	out := make(map[media.KeyID][]byte, len(kids))
	for kid, key := range all {
		if wanted.Contains(kid) {
			out[kid] = key
		}
	}
	return out, nil
}

// ParseJWKSet decodes a ClearKey license: a JSON Web Key Set of "oct" keys
// whose kid is the base64url encoded key id.
func ParseJWKSet(data []byte) (map[media.KeyID][]byte, error) {
	var set jose.JSONWebKeySet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse license: %w", err)
	}

	out := make(map[media.KeyID][]byte, len(set.Keys))
	for _, jwk := range set.Keys {
		key, ok := jwk.Key.([]byte)
		if !ok || len(key) != 16 {
			return nil, fmt.Errorf("license key %q: %w", jwk.KeyID, ErrInvalidKey)
		}
		rawKid, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(jwk.KeyID, "="))
		if err != nil {
			return nil, fmt.Errorf("license kid %q: %w", jwk.KeyID, err)
		}
		var kid media.KeyID
		if len(rawKid) != len(kid) {
			return nil, fmt.Errorf("license kid %q: %w", jwk.KeyID, ErrInvalidKey)
		}
		copy(kid[:], rawKid)
		out[kid] = key
	}
	return out, nil
}
