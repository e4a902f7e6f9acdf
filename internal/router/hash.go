package router

// DJB2 computes the djb2 hash of key, the hash the router's fast path uses
// to pick a candidate node before load-bounding (spec §4.2): "h <- 5381;
// for b in key: h <- ((h<<5)+h)+b". It is computed over uint32 so the
// result wraps the same way the original's fixed-width arithmetic does.
func DJB2(key []byte) uint32 {
	h := uint32(5381)
	for _, b := range key {
		h = (h << 5) + h + uint32(b)
	}
	return h
}
