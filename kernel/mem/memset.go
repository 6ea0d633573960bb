package mem

// Memset sets every byte of block to value. Instead of a byte loop it makes
// log2(len(block)) copy calls, each doubling the initialized prefix.
func Memset(block []byte, value byte) {
	if len(block) == 0 {
		return
	}

	block[0] = value
	for filled := 1; filled < len(block); filled *= 2 {
		copy(block[filled:], block[:filled])
	}
}
