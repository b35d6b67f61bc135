// Package keyfile unlocks a repository's master Key from a
// password-protected KeyFile record.
package keyfile

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/bits"
	"sort"

	"github.com/dedupfs/corepack/internal/backend"
	"github.com/dedupfs/corepack/internal/crypto"
	"github.com/dedupfs/corepack/internal/errors"
	"github.com/dedupfs/corepack/internal/id"
)

// KeyFile is the on-disk record written once at repository init and read
// thereafter to unlock the master Key. Field names are kept stable for
// interoperability; unknown fields are ignored by encoding/json.
type KeyFile struct {
	KDF  string `json:"kdf"`
	N    uint32 `json:"N"`
	R    uint32 `json:"r"`
	P    uint32 `json:"p"`
	Data string `json:"data"`
	Salt string `json:"salt"`
}

// masterKey is the plaintext JSON record sealed inside KeyFile.Data.
type masterKey struct {
	MAC struct {
		K string `json:"k"`
		R string `json:"r"`
	} `json:"mac"`
	Encrypt string `json:"encrypt"`
}

func (m *masterKey) key() (*crypto.Key, error) {
	encrypt, err := base64.StdEncoding.DecodeString(m.Encrypt)
	if err != nil {
		return nil, errors.Wrap(err, "decode encrypt field")
	}
	macK, err := base64.StdEncoding.DecodeString(m.MAC.K)
	if err != nil {
		return nil, errors.Wrap(err, "decode mac.k field")
	}
	macR, err := base64.StdEncoding.DecodeString(m.MAC.R)
	if err != nil {
		return nil, errors.Wrap(err, "decode mac.r field")
	}
	return crypto.NewKeyFromFields(encrypt, macK, macR)
}

// log2Exact returns log2(x) and whether x is an exact power of two. x == 0
// is never a power of two.
func log2Exact(x uint32) (uint8, bool) {
	if x == 0 {
		return 0, false
	}
	return uint8(bits.Len32(x) - 1), bits.OnesCount32(x) == 1
}

// KDFKey derives the scrypt key used to decrypt KeyFile.Data from a
// candidate password. It rejects N == 0 or any N that is not a power of
// two.
func (k *KeyFile) KDFKey(password string) (*crypto.Key, error) {
	if _, ok := log2Exact(k.N); !ok {
		return nil, errors.WithKind(errors.KindInvalidParameter, errors.Errorf("keyfile: N=%d is not a power of two", k.N))
	}

	salt, err := base64.StdEncoding.DecodeString(k.Salt)
	if err != nil {
		return nil, errors.Wrap(err, "decode salt")
	}

	params := crypto.Params{N: int(k.N), R: int(k.R), P: int(k.P)}
	return crypto.KDF(params, salt, password)
}

// KeyFromData decrypts KeyFile.Data with key (normally the output of
// KDFKey) and parses the resulting MasterKey record into a usable Key.
// A decrypt failure here is the WrongPassword case.
func (k *KeyFile) KeyFromData(key *crypto.Key) (*crypto.Key, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(k.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decode data field")
	}

	plaintext, err := key.Decrypt(ciphertext)
	if err != nil {
		return nil, errors.Wrap(err, "wrong password")
	}

	var mk masterKey
	if err := json.Unmarshal(plaintext, &mk); err != nil {
		return nil, errors.Wrap(err, "unmarshal master key")
	}

	return mk.key()
}

// KeyFromPassword is the full unlock: derive the KDF key from password,
// then use it to decrypt and parse the MasterKey record.
func (k *KeyFile) KeyFromPassword(password string) (*crypto.Key, error) {
	kdfKey, err := k.KDFKey(password)
	if err != nil {
		return nil, err
	}
	return k.KeyFromData(kdfKey)
}

// NewKeyFile seals masterKey behind password using crypto.DefaultParams
// and a freshly generated salt, producing the record written once at
// repository init time.
func NewKeyFile(key *crypto.Key, password string) (*KeyFile, error) {
	salt := crypto.NewSalt()

	kf := &KeyFile{
		KDF:  "scrypt",
		N:    uint32(crypto.DefaultParams.N),
		R:    uint32(crypto.DefaultParams.R),
		P:    uint32(crypto.DefaultParams.P),
		Salt: base64.StdEncoding.EncodeToString(salt),
	}

	kdfKey, err := kf.KDFKey(password)
	if err != nil {
		return nil, err
	}

	var mk masterKey
	mk.Encrypt = base64.StdEncoding.EncodeToString(key.EncryptionKey[:])
	mk.MAC.K = base64.StdEncoding.EncodeToString(key.MACKey.K[:])
	mk.MAC.R = base64.StdEncoding.EncodeToString(key.MACKey.R[:])

	plaintext, err := json.Marshal(mk)
	if err != nil {
		return nil, errors.Wrap(err, "marshal master key")
	}

	ciphertext, err := kdfKey.Encrypt(plaintext)
	if err != nil {
		return nil, errors.Wrap(err, "seal master key")
	}
	kf.Data = base64.StdEncoding.EncodeToString(ciphertext)

	return kf, nil
}

// FromBackend reads and parses a KeyFile record identified by keyID.
func FromBackend(ctx context.Context, be backend.Backend, keyID id.ID) (*KeyFile, error) {
	data, err := be.ReadFull(ctx, backend.Handle{Type: backend.KeyFile, Name: keyID})
	if err != nil {
		return nil, errors.WithKind(errors.KindBackend, errors.Wrap(err, "ReadFull"))
	}

	var kf KeyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, errors.WithKind(errors.KindFormat, errors.Wrap(err, "unmarshal keyfile"))
	}
	return &kf, nil
}

func keyFromBackend(ctx context.Context, be backend.Backend, keyID id.ID, password string) (*crypto.Key, error) {
	kf, err := FromBackend(ctx, be, keyID)
	if err != nil {
		return nil, err
	}
	return kf.KeyFromPassword(password)
}

// FindKeyInBackend locates the KeyFile matching password and returns its
// unlocked Key. If hint is non-nil, only that KeyFile is tried. Otherwise
// every KeyFile is tried in ascending id order (a deterministic order,
// so S6-style enumeration scenarios are reproducible) until one unlocks.
func FindKeyInBackend(ctx context.Context, be backend.Backend, password string, hint *id.ID) (*crypto.Key, error) {
	if hint != nil {
		return keyFromBackend(ctx, be, *hint, password)
	}

	ids, err := be.List(ctx, backend.KeyFile)
	if err != nil {
		return nil, errors.WithKind(errors.KindBackend, errors.Wrap(err, "List"))
	}

	sort.Slice(ids, func(i, j int) bool { return id.Less(ids[i], ids[j]) })

	for _, keyID := range ids {
		key, err := keyFromBackend(ctx, be, keyID, password)
		if err == nil {
			return key, nil
		}
	}

	return nil, errors.WithKind(errors.KindNoSuitableKey, errors.New("keyfile: no suitable key found"))
}
