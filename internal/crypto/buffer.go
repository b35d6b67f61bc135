package crypto

// CiphertextLength returns the encrypted length of a plaintext of the
// given size.
func CiphertextLength(plaintextSize int) int {
	return plaintextSize + Extension
}

// PlaintextLength returns the plaintext length of a ciphertext of the
// given size.
func PlaintextLength(ciphertextSize int) int {
	return ciphertextSize - Extension
}
