package codec

import (
	"bytes"
	"testing"
)

func TestControllerRoundTripResetReq(t *testing.T) {
	m := &ControllerMessage{Type: CtrlResetReq, NumNodes: 4, NumRKeys: 16}
	enc, err := EncodeController(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := DecodeController(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.NumNodes != 4 || dec.NumRKeys != 16 {
		t.Fatalf("roundtrip mismatch: %+v", dec)
	}
}

func TestControllerRoundTripResetReply(t *testing.T) {
	for _, ack := range []uint8{ResetAckOK, ResetAckFailed} {
		m := &ControllerMessage{Type: CtrlResetReply, Ack: ack}
		enc, err := EncodeController(m)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		dec, err := DecodeController(enc)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if dec.Ack != ack {
			t.Fatalf("ack mismatch: got %d want %d", dec.Ack, ack)
		}
	}
}

func TestControllerRoundTripHKReport(t *testing.T) {
	m := &ControllerMessage{
		Type: CtrlHKReport,
		HotKeys: []HotKeyEntry{
			{KeyHash: 1, Load: 10},
			{KeyHash: 2, Load: 20},
		},
	}
	enc, err := EncodeController(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := DecodeController(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(dec.HotKeys) != 2 || dec.HotKeys[0] != m.HotKeys[0] || dec.HotKeys[1] != m.HotKeys[1] {
		t.Fatalf("hot key roundtrip mismatch: %+v", dec.HotKeys)
	}
}

func TestControllerRoundTripHKReportEmpty(t *testing.T) {
	m := &ControllerMessage{Type: CtrlHKReport}
	enc, err := EncodeController(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := DecodeController(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(dec.HotKeys) != 0 {
		t.Fatalf("expected no hot keys, got %v", dec.HotKeys)
	}
}

func TestControllerRoundTripKeyMgr(t *testing.T) {
	m := &ControllerMessage{Type: CtrlKeyMgr, KeyHash: 0xFFFFFFFF, Key: []byte("hot-key")}
	enc, err := EncodeController(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := DecodeController(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.KeyHash != KeyHashMask {
		t.Fatalf("expected key hash masked to 31 bits, got %x", dec.KeyHash)
	}
	if !bytes.Equal(dec.Key, m.Key) {
		t.Fatalf("key mismatch: %q vs %q", dec.Key, m.Key)
	}
}

func TestControllerDecodeBoundaries(t *testing.T) {
	m := &ControllerMessage{Type: CtrlKeyMgr, KeyHash: 1, Key: []byte("k")}
	full, err := EncodeController(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for l := 0; l < len(full); l++ {
		if _, err := DecodeController(full[:l]); err == nil {
			t.Fatalf("decode of truncated frame (len=%d) should fail", l)
		}
	}
}

func TestControllerUnknownIdentifier(t *testing.T) {
	buf := []byte{0, 0, byte(CtrlResetReq)}
	if _, err := DecodeController(buf); err != ErrUnknownIdentifier {
		t.Fatalf("expected ErrUnknownIdentifier, got %v", err)
	}
}

func TestPeekIdentifier(t *testing.T) {
	enc, _ := EncodeController(&ControllerMessage{Type: CtrlResetReq})
	id, err := PeekIdentifier(enc)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if id != IdentController {
		t.Fatalf("expected IdentController, got %x", id)
	}

	if _, err := PeekIdentifier([]byte{1}); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}
