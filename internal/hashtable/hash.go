package hashtable

// HashBytes computes the table's hash code for a byte key using FNV-1a,
// which gives good avalanche behavior for the short ASCII keys and
// sorted-set member names this server handles.
func HashBytes(b []byte) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for _, c := range b {
		h ^= uint64(c)
		h *= prime64
	}
	return h
}
