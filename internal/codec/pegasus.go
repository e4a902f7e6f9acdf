package codec

// Message is the decoded form of a Pegasus/Static frame (spec §4.1). Not
// every field is meaningful for every OpType — the payload shape is keyed
// off OpType exactly as spec §4.1 describes:
//
//   - REQUEST (GET/PUT/DEL/PUT_FWD): ClientID, ReqID, ReqTime, Key, and Value
//     (Value only for PUT/PUT_FWD).
//   - REPLY (REP_R/REP_W): ClientID, ReqID, ReqTime, PayloadOp, Result, Value.
//   - MGR_REQ: Key, Value (plus the common header's KeyHash/Ver).
//   - MGR_ACK: no payload at all.
type Message struct {
	Identifier Identifier
	OpType     OpType
	KeyHash    uint32 // masked to 31 bits by the encoder
	NodeA      uint8
	NodeB      uint8
	LoadA      uint16
	Ver        uint32
	Bitmap     uint32
	HdrReqID   uint8

	// REQUEST / REPLY correlation fields.
	ClientID uint32
	ReqID    uint32
	ReqTime  uint32

	// PayloadOp repeats the op_type byte carried inside REQUEST/REPLY
	// payloads (spec §4.1 lists it as a distinct field from the header's
	// op_type). It is normally equal to OpType; PUTFWD replies carry
	// PayloadOp=PUT per the glossary's "transformed back to PUT in
	// client-visible replies" rule.
	PayloadOp OpType

	Key   []byte
	Value []byte

	Result Result
}

const pegasusHeaderLen = 2 + 1 + 4 + 1 + 1 + 2 + 4 + 4 + 1 // identifier..hdr_req_id

// EncodePegasus serializes m according to spec §4.1. The Identifier field
// must be IdentPegasus or IdentStatic; either is accepted since both share
// this wire format (the distinction is only whether the switch fast path or
// the host software path produced it).
func EncodePegasus(m *Message) ([]byte, error) {
	if m.Identifier != IdentPegasus && m.Identifier != IdentStatic {
		return nil, ErrUnsupportedVariant
	}

	w := newWriter(pegasusHeaderLen + 16 + len(m.Key) + len(m.Value))
	w.putU16(uint16(m.Identifier))
	w.putU8(uint8(m.OpType))
	w.putU32(m.KeyHash & KeyHashMask)
	w.putU8(m.NodeA)
	w.putU8(m.NodeB)
	w.putU16(m.LoadA)
	w.putU32(m.Ver)
	w.putU32(m.Bitmap)
	w.putU8(m.HdrReqID)

	switch {
	case m.OpType.IsRequest():
		w.putU32(m.ClientID)
		w.putU32(m.ReqID)
		w.putU32(m.ReqTime)
		w.putU8(uint8(m.PayloadOp))
		w.putLenPrefixed(m.Key)
		if m.OpType == OpPut || m.OpType == OpPutFwd {
			w.putLenPrefixed(m.Value)
		}
	case m.OpType.IsReply():
		w.putU32(m.ClientID)
		w.putU32(m.ReqID)
		w.putU32(m.ReqTime)
		w.putU8(uint8(m.PayloadOp))
		w.putU8(uint8(m.Result))
		w.putLenPrefixed(m.Value)
	case m.OpType == OpMgrReq:
		w.putLenPrefixed(m.Key)
		w.putLenPrefixed(m.Value)
	case m.OpType == OpMgrAck:
		// empty payload
	default:
		return nil, ErrUnsupportedVariant
	}

	return w.bytes(), nil
}

// DecodePegasus parses buf as a Pegasus/Static frame. It returns
// ErrShortBuffer for any truncation, ErrUnknownIdentifier if the leading two
// bytes are neither PEGASUS nor STATIC, and ErrUnknownOp for an op_type this
// codec doesn't recognize.
func DecodePegasus(buf []byte) (*Message, error) {
	r := newReader(buf)

	ident, err := r.u16()
	if err != nil {
		return nil, err
	}
	if Identifier(ident) != IdentPegasus && Identifier(ident) != IdentStatic {
		return nil, ErrUnknownIdentifier
	}

	opByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	op := OpType(opByte)

	keyHash, err := r.u32()
	if err != nil {
		return nil, err
	}
	nodeA, err := r.u8()
	if err != nil {
		return nil, err
	}
	nodeB, err := r.u8()
	if err != nil {
		return nil, err
	}
	loadA, err := r.u16()
	if err != nil {
		return nil, err
	}
	ver, err := r.u32()
	if err != nil {
		return nil, err
	}
	bitmap, err := r.u32()
	if err != nil {
		return nil, err
	}
	hdrReqID, err := r.u8()
	if err != nil {
		return nil, err
	}

	m := &Message{
		Identifier: Identifier(ident),
		OpType:     op,
		KeyHash:    keyHash & KeyHashMask,
		NodeA:      nodeA,
		NodeB:      nodeB,
		LoadA:      loadA,
		Ver:        ver,
		Bitmap:     bitmap,
		HdrReqID:   hdrReqID,
	}

	switch {
	case op.IsRequest():
		if err := decodePegasusRequestPayload(r, m); err != nil {
			return nil, err
		}
	case op.IsReply():
		if err := decodePegasusReplyPayload(r, m); err != nil {
			return nil, err
		}
	case op == OpMgrReq:
		key, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		value, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		m.Key, m.Value = key, value
	case op == OpMgrAck:
		// no payload
	default:
		return nil, ErrUnknownOp
	}

	return m, nil
}

func decodePegasusRequestPayload(r *reader, m *Message) error {
	clientID, err := r.u32()
	if err != nil {
		return err
	}
	reqID, err := r.u32()
	if err != nil {
		return err
	}
	reqTime, err := r.u32()
	if err != nil {
		return err
	}
	payloadOp, err := r.u8()
	if err != nil {
		return err
	}
	key, err := r.lenPrefixed()
	if err != nil {
		return err
	}

	m.ClientID, m.ReqID, m.ReqTime = clientID, reqID, reqTime
	m.PayloadOp = OpType(payloadOp)
	m.Key = key

	if m.OpType == OpPut || m.OpType == OpPutFwd {
		value, err := r.lenPrefixed()
		if err != nil {
			return err
		}
		m.Value = value
	}
	return nil
}

func decodePegasusReplyPayload(r *reader, m *Message) error {
	clientID, err := r.u32()
	if err != nil {
		return err
	}
	reqID, err := r.u32()
	if err != nil {
		return err
	}
	reqTime, err := r.u32()
	if err != nil {
		return err
	}
	payloadOp, err := r.u8()
	if err != nil {
		return err
	}
	result, err := r.u8()
	if err != nil {
		return err
	}
	value, err := r.lenPrefixed()
	if err != nil {
		return err
	}

	m.ClientID, m.ReqID, m.ReqTime = clientID, reqID, reqTime
	m.PayloadOp = OpType(payloadOp)
	m.Result = Result(result)
	m.Value = value
	return nil
}
