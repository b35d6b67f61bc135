package crypto_test

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/dedupfs/corepack/internal/crypto"
	"github.com/dedupfs/corepack/internal/errors"
)

func TestEncryptDecrypt(t *testing.T) {
	k := crypto.NewRandomKey()

	for _, size := range []int{0, 5, 23, 1 << 16, 1<<20 + 123} {
		data := make([]byte, size)
		if _, err := io.ReadFull(rand.Reader, data); err != nil {
			t.Fatal(err)
		}

		ciphertext, err := k.Encrypt(data)
		if err != nil {
			t.Fatal(err)
		}

		if len(ciphertext) != crypto.CiphertextLength(size) {
			t.Fatalf("unexpected ciphertext length: got %d, want %d", len(ciphertext), crypto.CiphertextLength(size))
		}

		plaintext, err := k.Decrypt(ciphertext)
		if err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(plaintext, data) {
			t.Fatal("round trip mismatch")
		}
	}
}

func TestEncryptNonDeterministic(t *testing.T) {
	k := crypto.NewRandomKey()
	data := []byte("identical plaintext")

	a, err := k.Encrypt(data)
	if err != nil {
		t.Fatal(err)
	}
	b, err := k.Encrypt(data)
	if err != nil {
		t.Fatal(err)
	}

	if bytes.Equal(a, b) {
		t.Fatal("two encryptions of identical plaintext produced identical ciphertext")
	}
}

func TestDecryptTamperedFails(t *testing.T) {
	k := crypto.NewRandomKey()
	ciphertext, err := k.Encrypt([]byte("Dies ist ein Test!"))
	if err != nil {
		t.Fatal(err)
	}

	ciphertext[len(ciphertext)-1] ^= 0x23

	if _, err := k.Decrypt(ciphertext); !errors.Is(err, crypto.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	k1 := crypto.NewRandomKey()
	k2 := crypto.NewRandomKey()

	ciphertext, err := k1.Encrypt([]byte("some plaintext"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := k2.Decrypt(ciphertext); !errors.Is(err, crypto.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestKeyFromFieldsRoundTrip(t *testing.T) {
	orig := crypto.NewRandomKey()

	k, err := crypto.NewKeyFromFields(orig.EncryptionKey[:], orig.MACKey.K[:], orig.MACKey.R[:])
	if err != nil {
		t.Fatal(err)
	}

	ciphertext, err := orig.Encrypt([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}

	plaintext, err := k.Decrypt(ciphertext)
	if err != nil {
		t.Fatal(err)
	}

	if string(plaintext) != "hello" {
		t.Fatalf("got %q", plaintext)
	}
}
