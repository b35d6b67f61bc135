// Package crypto implements the repository's authenticated encryption:
// AES-256-CTR for confidentiality and Poly1305-AES128 for integrity, laid
// out as IV || ciphertext || MAC. Adapted from restic's internal/crypto.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"

	"golang.org/x/crypto/poly1305"

	"github.com/dedupfs/corepack/internal/errors"
)

const (
	aesKeySize  = 32
	macKeySizeK = 16
	macKeySizeR = 16
	macKeySize  = macKeySizeK + macKeySizeR
	ivSize      = aes.BlockSize
	macSize     = poly1305.TagSize

	// Extension is the number of bytes a plaintext is enlarged by when
	// encrypted: one IV plus one MAC.
	Extension = ivSize + macSize
)

// ErrUnauthenticated is returned when ciphertext verification fails. It is
// the concrete cause behind the core's opaque CryptoError.
var ErrUnauthenticated = errors.New("ciphertext verification failed")

// ErrInvalidCiphertext reports that the same slice was used for plaintext
// and ciphertext. Encrypt always allocates its own output buffer and never
// returns it.
var ErrInvalidCiphertext = errors.New("invalid ciphertext, same slice used for plaintext")

// EncryptionKey is the AES-256 key used for confidentiality.
type EncryptionKey [aesKeySize]byte

// MACKey authenticates ciphertexts using Poly1305-AES128: K selects the
// per-message AES-128 keystream, R is the (masked) polynomial key.
type MACKey struct {
	K [macKeySizeK]byte
	R [macKeySizeR]byte

	masked bool
}

// Key bundles the encryption and MAC key material for one repository. It
// is immutable once constructed and may be shared freely across Packers.
type Key struct {
	MACKey        `json:"mac"`
	EncryptionKey `json:"encrypt"`
}

// poly1305KeyMask clears the bits poly1305 requires to be zero in R. See
// http://cr.yp.to/mac/poly1305-20050329.pdf.
var poly1305KeyMask = [16]byte{
	0xff, 0xff, 0xff, 0x0f,
	0xfc, 0xff, 0xff, 0x0f,
	0xfc, 0xff, 0xff, 0x0f,
	0xfc, 0xff, 0xff, 0x0f,
}

func maskKey(k *MACKey) {
	if k == nil || k.masked {
		return
	}
	for i := 0; i < len(k.R); i++ {
		k.R[i] &= poly1305KeyMask[i]
	}
	k.masked = true
}

// NewKeyFromBytes interprets a 64-byte KDF output block as encrypt‖mac: the
// first 32 bytes are the encryption key, the next 32 are k‖r for the MAC.
func NewKeyFromBytes(b [64]byte) *Key {
	k := &Key{}
	copy(k.EncryptionKey[:], b[:aesKeySize])
	copy(k.MACKey.K[:], b[aesKeySize:aesKeySize+macKeySizeK])
	copy(k.MACKey.R[:], b[aesKeySize+macKeySizeK:])
	maskKey(&k.MACKey)
	return k
}

// NewKeyFromFields builds a Key from three independently-supplied byte
// strings, as stored in a MasterKey record.
func NewKeyFromFields(encrypt, macK, macR []byte) (*Key, error) {
	k := &Key{}
	if len(encrypt) != aesKeySize {
		return nil, errors.Errorf("invalid encryption key length %d", len(encrypt))
	}
	if len(macK) != macKeySizeK || len(macR) != macKeySizeR {
		return nil, errors.Errorf("invalid mac key length %d/%d", len(macK), len(macR))
	}

	copy(k.EncryptionKey[:], encrypt)
	copy(k.MACKey.K[:], macK)
	copy(k.MACKey.R[:], macR)
	maskKey(&k.MACKey)
	return k, nil
}

// NewRandomKey returns a fresh, randomly generated Key.
func NewRandomKey() *Key {
	k := &Key{}

	if _, err := rand.Read(k.EncryptionKey[:]); err != nil {
		panic("unable to read enough random bytes for encryption key")
	}
	if _, err := rand.Read(k.MACKey.K[:]); err != nil {
		panic("unable to read enough random bytes for MAC key")
	}
	if _, err := rand.Read(k.MACKey.R[:]); err != nil {
		panic("unable to read enough random bytes for MAC key")
	}

	maskKey(&k.MACKey)
	return k
}

func newIV() []byte {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		panic("unable to read enough random bytes for iv")
	}
	return iv
}

func poly1305PrepareKey(nonce []byte, key *MACKey) [32]byte {
	var k [32]byte

	maskKey(key)

	c, err := aes.NewCipher(key.K[:])
	if err != nil {
		panic(err)
	}
	c.Encrypt(k[16:], nonce)
	copy(k[:16], key.R[:])

	return k
}

func poly1305MAC(msg, nonce []byte, key *MACKey) []byte {
	k := poly1305PrepareKey(nonce, key)

	var out [16]byte
	poly1305.Sum(&out, msg, &k)
	return out[:]
}

func poly1305Verify(msg, nonce []byte, key *MACKey, mac []byte) bool {
	k := poly1305PrepareKey(nonce, key)

	var m [16]byte
	copy(m[:], mac)
	return poly1305.Verify(&m, msg, &k)
}

// Valid reports whether k holds non-zero key material.
func (k *EncryptionKey) Valid() bool {
	var zero EncryptionKey
	return *k != zero
}

// Valid reports whether m holds non-zero key material.
func (m *MACKey) Valid() bool {
	var zeroK [macKeySizeK]byte
	var zeroR [macKeySizeR]byte
	return m.K != zeroK && m.R != zeroR
}

// Valid reports whether both halves of k hold non-zero key material.
func (k *Key) Valid() bool {
	return k.EncryptionKey.Valid() && k.MACKey.Valid()
}

type jsonMACKey struct {
	K []byte `json:"k"`
	R []byte `json:"r"`
}

// MarshalJSON encodes m as base64 k/r fields, matching the MasterKey
// on-disk record.
func (m MACKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonMACKey{K: m.K[:], R: m.R[:]})
}

// UnmarshalJSON decodes m from base64 k/r fields.
func (m *MACKey) UnmarshalJSON(data []byte) error {
	var j jsonMACKey
	if err := json.Unmarshal(data, &j); err != nil {
		return errors.Wrap(err, "Unmarshal")
	}
	copy(m.K[:], j.K)
	copy(m.R[:], j.R)
	maskKey(m)
	return nil
}

// MarshalJSON encodes k as a base64 string.
func (k EncryptionKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k[:])
}

// UnmarshalJSON decodes k from a base64 string.
func (k *EncryptionKey) UnmarshalJSON(data []byte) error {
	var d []byte
	if err := json.Unmarshal(data, &d); err != nil {
		return errors.Wrap(err, "Unmarshal")
	}
	copy(k[:], d)
	return nil
}

// Encrypt seals plaintext under k, returning IV || ciphertext || MAC. Two
// calls on identical input produce distinct outputs because the IV is
// freshly random each time.
func (k *Key) Encrypt(plaintext []byte) ([]byte, error) {
	if !k.Valid() {
		return nil, errors.WithKind(errors.KindCrypto, errors.New("invalid key"))
	}

	iv := newIV()
	ciphertext := make([]byte, ivSize, CiphertextLength(len(plaintext)))
	copy(ciphertext, iv)

	c, err := aes.NewCipher(k.EncryptionKey[:])
	if err != nil {
		return nil, errors.WithKind(errors.KindCrypto, errors.Wrap(err, "aes.NewCipher"))
	}

	ciphertext = ciphertext[:ivSize+len(plaintext)]
	cipher.NewCTR(c, iv).XORKeyStream(ciphertext[ivSize:], plaintext)

	mac := poly1305MAC(ciphertext[ivSize:], ciphertext[:ivSize], &k.MACKey)
	return append(ciphertext, mac...), nil
}

// Decrypt verifies and opens a buffer produced by Encrypt. It fails with
// ErrUnauthenticated if the MAC does not match, and never branches on any
// finer-grained cause than that.
func (k *Key) Decrypt(ciphertext []byte) ([]byte, error) {
	if !k.Valid() {
		return nil, errors.WithKind(errors.KindCrypto, errors.New("invalid key"))
	}

	if len(ciphertext) < Extension {
		return nil, errors.WithKind(errors.KindCrypto, errors.New("trying to decrypt invalid data: ciphertext too small"))
	}

	l := len(ciphertext) - macSize
	ciphertextWithIV, mac := ciphertext[:l], ciphertext[l:]
	iv, body := ciphertextWithIV[:ivSize], ciphertextWithIV[ivSize:]

	if !poly1305Verify(body, iv, &k.MACKey, mac) {
		return nil, errors.WithKind(errors.KindCrypto, ErrUnauthenticated)
	}

	c, err := aes.NewCipher(k.EncryptionKey[:])
	if err != nil {
		return nil, errors.WithKind(errors.KindCrypto, errors.Wrap(err, "aes.NewCipher"))
	}

	plaintext := make([]byte, len(body))
	cipher.NewCTR(c, iv).XORKeyStream(plaintext, body)

	return plaintext, nil
}
