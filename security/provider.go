/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package security wraps AES-CTR encrypt/decrypt and HMAC-SHA256
// sign/verify behind narrow interfaces, keyed by the {tokenId,
// publisherId, writerGroupId} tuple a caller resolves for us.
// DefaultCipher/DefaultSigner are the stdlib-backed implementations of
// those interfaces, not part of the codec's hard core.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// Cipher performs AES-CTR keystream XOR. Encrypt and Decrypt are the same
// operation for CTR mode ("Decryption is implemented by
// encrypting again").
type Cipher interface {
	XORKeyStream(key, nonce, data []byte) ([]byte, error)
}

// Signer computes and checks HMAC-SHA256 signatures.
type Signer interface {
	Sign(key, data []byte) ([]byte, error)
	Verify(key, data, sig []byte) bool
	// Size returns the signature length in bytes, appended after the
	// payload on encode and trimmed off before verification on decode.
	Size() int
}

// RandomSource supplies the per-message 4-byte nonce random.
type RandomSource interface {
	Read(p []byte) (int, error)
}

// DefaultCipher is the AES-CTR Cipher built on crypto/aes and crypto/cipher.
type DefaultCipher struct{}

// XORKeyStream encrypts (or, symmetrically, decrypts) data with AES in CTR
// mode using key and nonce as the initial counter block.
func (DefaultCipher) XORKeyStream(key, nonce, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: aes key: %w", err)
	}
	if len(nonce) != block.BlockSize() {
		return nil, fmt.Errorf("security: nonce must be %d bytes, got %d", block.BlockSize(), len(nonce))
	}
	out := make([]byte, len(data))
	cipher.NewCTR(block, nonce).XORKeyStream(out, data)
	return out, nil
}

// DefaultSigner is the HMAC-SHA256 Signer built on crypto/hmac and
// crypto/sha256.
type DefaultSigner struct{}

func (DefaultSigner) Sign(key, data []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, key)
	if _, err := mac.Write(data); err != nil {
		return nil, err
	}
	return mac.Sum(nil), nil
}

func (DefaultSigner) Verify(key, data, sig []byte) bool {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write(data)
	return hmac.Equal(mac.Sum(nil), sig)
}

func (DefaultSigner) Size() int { return sha256.Size }

// DefaultRandomSource reads from crypto/rand.
type DefaultRandomSource struct{}

func (DefaultRandomSource) Read(p []byte) (int, error) { return rand.Read(p) }
