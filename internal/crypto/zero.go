package crypto

// Zero overwrites a byte slice in memory with zeros. A forgotten zero-fill of
// key material is a correctness defect here, not just hygiene.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ZeroAll zeros every given slice.
func ZeroAll(bs ...[]byte) {
	for _, b := range bs {
		Zero(b)
	}
}
