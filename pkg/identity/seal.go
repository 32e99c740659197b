/*
 * Copyright 2025 Urko Serrano.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package identity

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// sealFormatVersion is the current version of the sealed blob format.
const sealFormatVersion = 1

// sealedBlob is the serialized structure holding the ciphertext and the KDF
// parameters used to derive its key.
type sealedBlob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// Tunables for scrypt key derivation.
func scryptParamsDefault() (n, r, p int) { return 1 << 15, 8, 1 }

// Seal encrypts plaintext under a key derived from password and returns the
// serialized blob.
func Seal(plaintext []byte, password string) (string, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return "", err
	}

	n, r, p := scryptParamsDefault()

	key, err := scrypt.Key([]byte(password), salt[:], n, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return "", err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", err
	}

	// Zero nonce: the key is bound to a fresh random salt per seal.
	var nonce [chacha20poly1305.NonceSize]byte
	ct := aead.Seal(nil, nonce[:], plaintext, salt[:])

	out, err := json.Marshal(sealedBlob{
		V:      sealFormatVersion,
		Salt:   salt[:],
		N:      n,
		R:      r,
		P:      p,
		Cipher: ct,
	})
	if err != nil {
		return "", err
	}

	return string(out), nil
}

// Unseal decrypts a sealed blob with the given password. It returns
// ErrWrongPassword when the password is incorrect or the blob was tampered
// with.
func Unseal(sealed, password string) ([]byte, error) {
	var blob sealedBlob
	if err := json.Unmarshal([]byte(sealed), &blob); err != nil {
		return nil, fmt.Errorf("malformed sealed profile: %w", err)
	}

	if blob.V > sealFormatVersion {
		return nil, fmt.Errorf("unsupported sealed profile version %d", blob.V)
	}

	key, err := scrypt.Key([]byte(password), blob.Salt, blob.N, blob.R, blob.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	var nonce [chacha20poly1305.NonceSize]byte

	pt, err := aead.Open(nil, nonce[:], blob.Cipher, blob.Salt)
	if err != nil {
		return nil, ErrWrongPassword
	}

	return pt, nil
}
