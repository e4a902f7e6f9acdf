package codec

// HotKeyEntry is one (keyhash, load) pair inside an HK_REPORT body.
type HotKeyEntry struct {
	KeyHash uint32
	Load    uint16
}

// ControllerMessage is the decoded form of a Controller frame (spec §4.1).
// Which fields are populated depends on Type:
//
//   - RESET_REQ: NumNodes, NumRKeys.
//   - RESET_REPLY: Ack.
//   - HK_REPORT: HotKeys.
//   - KEY_MGR: KeyHash, Key.
type ControllerMessage struct {
	Type ControllerType

	NumNodes uint16
	NumRKeys uint16

	Ack uint8

	HotKeys []HotKeyEntry

	KeyHash uint32
	Key     []byte
}

const controllerHeaderLen = 2 + 1 // identifier + type

// EncodeController serializes m according to spec §4.1.
func EncodeController(m *ControllerMessage) ([]byte, error) {
	w := newWriter(controllerHeaderLen + 8)
	w.putU16(uint16(IdentController))
	w.putU8(uint8(m.Type))

	switch m.Type {
	case CtrlResetReq:
		w.putU16(m.NumNodes)
		w.putU16(m.NumRKeys)
	case CtrlResetReply:
		w.putU8(m.Ack)
	case CtrlHKReport:
		w.putU16(uint16(len(m.HotKeys)))
		for _, e := range m.HotKeys {
			w.putU32(e.KeyHash & KeyHashMask)
			w.putU16(e.Load)
		}
	case CtrlKeyMgr:
		w.putU32(m.KeyHash & KeyHashMask)
		w.putLenPrefixed(m.Key)
	default:
		return nil, ErrUnsupportedVariant
	}

	return w.bytes(), nil
}

// DecodeController parses buf as a Controller frame.
func DecodeController(buf []byte) (*ControllerMessage, error) {
	r := newReader(buf)

	ident, err := r.u16()
	if err != nil {
		return nil, err
	}
	if Identifier(ident) != IdentController {
		return nil, ErrUnknownIdentifier
	}

	typeByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	typ := ControllerType(typeByte)

	m := &ControllerMessage{Type: typ}

	switch typ {
	case CtrlResetReq:
		numNodes, err := r.u16()
		if err != nil {
			return nil, err
		}
		numRKeys, err := r.u16()
		if err != nil {
			return nil, err
		}
		m.NumNodes, m.NumRKeys = numNodes, numRKeys
	case CtrlResetReply:
		ack, err := r.u8()
		if err != nil {
			return nil, err
		}
		m.Ack = ack
	case CtrlHKReport:
		nkeys, err := r.u16()
		if err != nil {
			return nil, err
		}
		entries := make([]HotKeyEntry, 0, nkeys)
		for i := uint16(0); i < nkeys; i++ {
			keyhash, err := r.u32()
			if err != nil {
				return nil, err
			}
			load, err := r.u16()
			if err != nil {
				return nil, err
			}
			entries = append(entries, HotKeyEntry{KeyHash: keyhash & KeyHashMask, Load: load})
		}
		m.HotKeys = entries
	case CtrlKeyMgr:
		keyhash, err := r.u32()
		if err != nil {
			return nil, err
		}
		key, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		m.KeyHash = keyhash & KeyHashMask
		m.Key = key
	default:
		return nil, ErrUnknownOp
	}

	return m, nil
}
