// SPDX-License-Identifier: EPL-2.0

package renderer

import (
	"github.com/ik5/audrender/decoder"
	"github.com/ik5/audrender/drm"
	"github.com/ik5/audrender/media"
)

// FormatSupport is the level of support for a format, from least to most.
type FormatSupport int

const (
	FormatUnsupportedType FormatSupport = iota
	FormatUnsupportedSubtype
	// FormatUnsupportedDrm means the codec is supported but the protection is not.
	FormatUnsupportedDrm
	FormatExceedsCapabilities
	FormatHandled
)

func (s FormatSupport) String() string {
	switch s {
	case FormatUnsupportedType:
		return "unsupported type"
	case FormatUnsupportedSubtype:
		return "unsupported subtype"
	case FormatUnsupportedDrm:
		return "unsupported drm"
	case FormatExceedsCapabilities:
		return "exceeds capabilities"
	case FormatHandled:
		return "handled"
	default:
		return "unknown"
	}
}

// DecoderFamily is the codec specific part of the renderer.
type DecoderFamily interface {
	Name() string
	SupportsFormat(f *media.Format) FormatSupport
	// CreateDecoder builds a decoder for f. crypto is nil for clear content or
	// when the DRM session failed before opening.
	CreateDecoder(f *media.Format, crypto drm.CryptoContext) (decoder.Decoder, error)
	// OutputFormat reports the PCM format produced by d. It is called once d
	// produced its first output buffer and may return nil if still unknown.
	OutputFormat(d decoder.Decoder) *media.Format
	// CanKeepCodec reports whether a decoder created for old can continue with
	// next without being recreated.
	CanKeepCodec(old, next *media.Format) bool
}
