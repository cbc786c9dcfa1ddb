// SPDX-License-Identifier: EPL-2.0

package decoder

import "github.com/ik5/audrender/media"

// Decrypter decrypts an encrypted input buffer in place.
type Decrypter interface {
	Decrypt(buf *media.InputBuffer) error
}

type decryptingCodec struct {
	crypto Decrypter
	codec  Codec
}

// NewDecryptingCodec returns a Codec that decrypts encrypted inputs with crypto
// before handing them to codec. A nil crypto returns codec unchanged.
func NewDecryptingCodec(crypto Decrypter, codec Codec) Codec {
	if crypto == nil {
		return codec
	}
	return &decryptingCodec{crypto: crypto, codec: codec}
}

func (c *decryptingCodec) Decode(in *media.InputBuffer, out *media.OutputBuffer, reset bool) error {
	if in.IsEncrypted() {
		if err := c.crypto.Decrypt(in); err != nil {
			return err
		}
	}
	return c.codec.Decode(in, out, reset)
}
