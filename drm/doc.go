// SPDX-License-Identifier: EPL-2.0

/*
Package drm provides the content protection sessions consulted by the renderer.

A Session moves through idle, opening, opened and opened-with-keys, or ends in
error. Sessions are reference counted: every holder calls Acquire once and
Release once, and ReplaceSession swaps a holder slot acquiring the new session
before releasing the old one.

ClearKeySession implements the W3C ClearKey system for the cenc scheme. Keys are
supplied by a KeyProvider, either StaticKeys configured in memory or a
LicenseFile holding a JSON Web Key Set:

	{"keys":[{"kty":"oct","kid":"<base64url kid>","k":"<base64url key>"}]}

Samples are decrypted in place with AES-CTR, honouring sub-sample clear and
protected byte counts.

	mgr := drm.NewSessionManager(drm.LicenseFile{Path: "keys.json"}, false, nil)
	session, err := mgr.AcquireSession(format.DrmInitData)
	if err != nil {
		return err
	}
	defer session.Release()
*/
package drm
