// SPDX-License-Identifier: EPL-2.0

package drm

import "errors"

var (
	// ErrUnsupportedScheme is returned for protection schemes other than cenc.
	ErrUnsupportedScheme = errors.New("drm: unsupported protection scheme")
	// ErrNoKeyIDs is returned when init data carries no key ids.
	ErrNoKeyIDs = errors.New("drm: no key ids in init data")
	// ErrKeyNotFound is returned when a required key is unavailable.
	ErrKeyNotFound = errors.New("drm: key not found")
	// ErrInvalidKey is returned for keys that are not 16 bytes long.
	ErrInvalidKey = errors.New("drm: invalid key")
	// ErrNotOpened is returned when decrypting on a session without keys.
	ErrNotOpened = errors.New("drm: session has no keys")
	// ErrNoProvider is returned when encrypted content is played without a key provider.
	ErrNoProvider = errors.New("drm: no key provider configured")
)
