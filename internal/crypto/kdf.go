package crypto

import (
	"crypto/rand"

	sscrypt "github.com/elithrar/simple-scrypt"
	"golang.org/x/crypto/scrypt"

	"github.com/dedupfs/corepack/internal/errors"
)

const saltLength = 64
const kdfKeyLength = macKeySize + aesKeySize

// Params are the scrypt cost parameters used to derive a Key from a
// password. N must be a power of two.
type Params struct {
	N, R, P int
}

// DefaultParams are the parameters used when creating a new KeyFile.
var DefaultParams = Params{
	N: sscrypt.DefaultParams.N,
	R: sscrypt.DefaultParams.R,
	P: sscrypt.DefaultParams.P,
}

// KDF derives a Key from password using scrypt with the given parameters
// and salt. Salt may be any length scrypt accepts; it is not required to
// match the length NewSalt generates, so keyfiles written by other
// implementations remain readable. KDF rejects params whose N is zero or
// not a power of two with InvalidParameter before ever touching the
// password.
func KDF(p Params, salt []byte, password string) (*Key, error) {
	if p.N <= 1 || p.N&(p.N-1) != 0 {
		return nil, errors.WithKind(errors.KindInvalidParameter, errors.Errorf("invalid scrypt parameters: N=%d is not a power of two greater than one", p.N))
	}

	check := sscrypt.Params{N: p.N, R: p.R, P: p.P, DKLen: kdfKeyLength, SaltLen: len(salt)}
	if err := check.Check(); err != nil {
		return nil, errors.WithKind(errors.KindInvalidParameter, errors.Wrap(err, "invalid scrypt parameters"))
	}

	derived, err := scrypt.Key([]byte(password), salt, p.N, p.R, p.P, kdfKeyLength)
	if err != nil {
		return nil, errors.Wrap(err, "scrypt.Key")
	}

	var block [kdfKeyLength]byte
	copy(block[:], derived)
	return NewKeyFromBytes(block), nil
}

// NewSalt returns fresh random salt bytes for use with KDF.
func NewSalt() []byte {
	buf := make([]byte, saltLength)
	if _, err := rand.Read(buf); err != nil {
		panic("unable to read enough random bytes for new salt")
	}
	return buf
}
