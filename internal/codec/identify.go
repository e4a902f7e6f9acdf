package codec

// PeekIdentifier reads the two-byte identifier a frame leads with, without
// consuming or validating the rest of the buffer. Callers use this to
// select which of DecodePegasus/DecodeNetcache/DecodeController to call;
// spec §4.3 requires trying the Controller codec first on any inbound
// datagram, falling back to the KV codec, since only the Controller
// identifier is self-describing enough to distinguish on its own.
func PeekIdentifier(buf []byte) (Identifier, error) {
	if len(buf) < 2 {
		return 0, ErrShortBuffer
	}
	return Identifier(uint16(buf[0])<<8 | uint16(buf[1])), nil
}
