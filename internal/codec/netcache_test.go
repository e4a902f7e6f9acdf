package codec

import "testing"

func TestNetcacheRoundTripReadWrite(t *testing.T) {
	m := &NetcacheMessage{Identifier: IdentNetcache, OpType: NetcacheWrite}
	copy(m.Key[:], []byte("abcdef"))
	copy(m.Value[:], []byte{1, 2, 3, 4})

	enc, err := EncodeNetcache(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(enc) != netcacheFrameLen {
		t.Fatalf("expected fixed frame length %d, got %d", netcacheFrameLen, len(enc))
	}

	dec, err := DecodeNetcache(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.OpType != NetcacheWrite || dec.Key != m.Key || dec.Value != m.Value {
		t.Fatalf("roundtrip mismatch: %+v vs %+v", dec, m)
	}
}

func TestNetcacheKeyZeroPadded(t *testing.T) {
	m := &NetcacheMessage{Identifier: IdentNetcache, OpType: NetcacheRead}
	copy(m.Key[:], []byte("ab")) // shorter than fixed width

	enc, err := EncodeNetcache(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := DecodeNetcache(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := [NetcacheKeySize]byte{'a', 'b', 0, 0, 0, 0}
	if dec.Key != want {
		t.Fatalf("expected zero-padded key %v, got %v", want, dec.Key)
	}
}

func TestNetcacheCacheHitSynthesizesReadReply(t *testing.T) {
	m := &NetcacheMessage{Identifier: IdentNetcache, OpType: NetcacheCacheHit}
	copy(m.Key[:], []byte("abcdef"))
	copy(m.Value[:], []byte{9, 9, 9, 9})
	m.Result = ResultNotFound // should be overridden to OK by the decode-side synthesis

	enc, err := EncodeNetcache(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := DecodeNetcache(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.OpType != NetcacheRepR {
		t.Fatalf("expected CACHE_HIT to decode as REP_R, got %v", dec.OpType)
	}
	if dec.Result != ResultOK {
		t.Fatalf("expected CACHE_HIT to decode with Result=OK, got %v", dec.Result)
	}
	if dec.Value != m.Value {
		t.Fatalf("expected cached value preserved, got %v", dec.Value)
	}
}

func TestNetcacheDecodeBoundaries(t *testing.T) {
	m := &NetcacheMessage{Identifier: IdentNetcache, OpType: NetcacheRepR}
	full, err := EncodeNetcache(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for l := 0; l < len(full); l++ {
		if _, err := DecodeNetcache(full[:l]); err == nil {
			t.Fatalf("decode of truncated frame (len=%d) should fail", l)
		}
	}
}

func TestNetcacheUnknownIdentifier(t *testing.T) {
	buf := make([]byte, netcacheFrameLen)
	if _, err := DecodeNetcache(buf); err != ErrUnknownIdentifier {
		t.Fatalf("expected ErrUnknownIdentifier, got %v", err)
	}
}
