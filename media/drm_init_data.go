// SPDX-License-Identifier: EPL-2.0

package media

import (
	"bytes"
	"encoding/hex"
)

// Well known protection scheme types.
const (
	SchemeCENC = "cenc"
	SchemeCBCS = "cbcs"
)

// ClearKeyUUID identifies the W3C ClearKey system.
var ClearKeyUUID = [16]byte{
	0xe2, 0x71, 0x9d, 0x58, 0xa9, 0x85, 0xb3, 0xc9,
	0x78, 0x1a, 0xb0, 0x30, 0xaf, 0x78, 0xd3, 0x0e,
}

// KeyID is a 16 byte content key identifier.
type KeyID [16]byte

func (k KeyID) String() string {
	return hex.EncodeToString(k[:])
}

// SchemeData is the DRM initialization data for one protection system.
type SchemeData struct {
	UUID     [16]byte
	MimeType string
	KeyIDs   []KeyID
	Data     []byte
}

// DrmInitData groups the scheme data attached to a protected stream.
type DrmInitData struct {
	SchemeType string
	Schemes    []SchemeData
}

// KeyIDs returns every key id announced by the init data, in order, without
// duplicates.
func (d *DrmInitData) KeyIDs() []KeyID {
	if d == nil {
		return nil
	}
	seen := make(map[KeyID]struct{})
	var out []KeyID
	for _, s := range d.Schemes {
		for _, k := range s.KeyIDs {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// Equal compares two init data values.
func (d *DrmInitData) Equal(o *DrmInitData) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.SchemeType != o.SchemeType || len(d.Schemes) != len(o.Schemes) {
		return false
	}
	for i := range d.Schemes {
		a, b := d.Schemes[i], o.Schemes[i]
		if a.UUID != b.UUID || a.MimeType != b.MimeType || !bytes.Equal(a.Data, b.Data) {
			return false
		}
		if len(a.KeyIDs) != len(b.KeyIDs) {
			return false
		}
		for j := range a.KeyIDs {
			if a.KeyIDs[j] != b.KeyIDs[j] {
				return false
			}
		}
	}
	return true
}
