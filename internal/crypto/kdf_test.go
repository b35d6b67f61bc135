package crypto_test

import (
	"testing"

	"github.com/dedupfs/corepack/internal/crypto"
)

func TestKDFRoundTrip(t *testing.T) {
	salt := crypto.NewSalt()
	params := crypto.Params{N: 1024, R: 8, P: 1}

	k1, err := crypto.KDF(params, salt, "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	k2, err := crypto.KDF(params, salt, "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	if k1.EncryptionKey != k2.EncryptionKey || k1.MACKey.K != k2.MACKey.K || k1.MACKey.R != k2.MACKey.R {
		t.Fatal("KDF is not deterministic for identical inputs")
	}

	k3, err := crypto.KDF(params, salt, "hunter3")
	if err != nil {
		t.Fatal(err)
	}
	if k1.EncryptionKey == k3.EncryptionKey {
		t.Fatal("different passwords produced the same key")
	}
}

func TestKDFRejectsNonPowerOfTwoN(t *testing.T) {
	salt := crypto.NewSalt()

	if _, err := crypto.KDF(crypto.Params{N: 0, R: 8, P: 1}, salt, "x"); err == nil {
		t.Fatal("expected error for N == 0")
	}

	if _, err := crypto.KDF(crypto.Params{N: 1000, R: 8, P: 1}, salt, "x"); err == nil {
		t.Fatal("expected error for non-power-of-two N")
	}
}

func TestKDFRejectsBadSaltLength(t *testing.T) {
	if _, err := crypto.KDF(crypto.DefaultParams, []byte("short"), "x"); err == nil {
		t.Fatal("expected error for short salt")
	}
}
