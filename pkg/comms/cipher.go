package comms

// Transform XORs every byte of text with the repeating key. Applying it twice
// with the same key returns the original text. An empty key leaves text
// unchanged.
func Transform(text string, key []byte) string {
	if len(key) == 0 || len(text) == 0 {
		return text
	}
	out := make([]byte, len(text))
	for i := 0; i < len(text); i++ {
		out[i] = text[i] ^ key[i%len(key)]
	}
	return string(out)
}
