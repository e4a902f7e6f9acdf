// Package codec implements the three wire formats Pegasus-KV speaks:
// Pegasus/Static, Netcache, and Controller (spec §4.1). Every decoder takes
// a raw datagram and returns an owned, fully-validated message or an error;
// every encoder takes a message and returns the bytes to put on the wire.
// No decoder allocates beyond the lengths it parses out of the frame, and a
// truncated or malformed frame is always reported as an error rather than
// causing an out-of-bounds read — see reader in bytes.go.
//
// Endianness. The source this protocol is modeled on mixed native-order and
// byte-swapped fields within the same frame (spec §9, "Endianness
// inconsistency"). That inconsistency is not carried forward: every
// multi-byte integer field in this package — identifiers, key hashes,
// versions, lengths, client/request ids, everything — is big-endian on the
// wire. This resolves the open question spec §6/§9 leaves open in favor of
// a single, explicit convention; see DESIGN.md for the rationale. A rewrite
// that instead needs bit-exact interop with the original mixed-endian wire
// format would have to special-case the fields spec §6 calls out.
package codec

import "errors"

// Identifier is the first two bytes of every frame and selects which of the
// three codecs decodes the rest.
type Identifier uint16

const (
	IdentPegasus    Identifier = 0x4750 // PEGASUS: switch-enabled steering mode
	IdentStatic     Identifier = 0x1573 // STATIC: switch bypass mode
	IdentNetcache   Identifier = 0x5039 // NETCACHE: fixed-size in-network cache frame
	IdentController Identifier = 0xDEAC // CONTROLLER: control-plane frame
)

// OpType is the Pegasus/Static op_type field (spec §4.1).
type OpType uint8

const (
	OpGet    OpType = 0
	OpPut    OpType = 1
	OpDel    OpType = 2
	OpRepR   OpType = 3
	OpRepW   OpType = 4
	OpMgrReq OpType = 5
	OpMgrAck OpType = 6
	OpPutFwd OpType = 7
)

func (o OpType) String() string {
	switch o {
	case OpGet:
		return "GET"
	case OpPut:
		return "PUT"
	case OpDel:
		return "DEL"
	case OpRepR:
		return "REP_R"
	case OpRepW:
		return "REP_W"
	case OpMgrReq:
		return "MGR_REQ"
	case OpMgrAck:
		return "MGR_ACK"
	case OpPutFwd:
		return "PUT_FWD"
	default:
		return "UNKNOWN"
	}
}

// IsRequest reports whether op carries a REQUEST-shaped payload
// (client_id/req_id/req_time/key[/value]).
func (o OpType) IsRequest() bool {
	switch o {
	case OpGet, OpPut, OpDel, OpPutFwd:
		return true
	default:
		return false
	}
}

// IsReply reports whether op carries a REPLY-shaped payload.
func (o OpType) IsReply() bool {
	return o == OpRepR || o == OpRepW
}

// Result is the outcome of a KV operation, carried in REPLY payloads.
type Result uint8

const (
	ResultOK       Result = 0
	ResultNotFound Result = 1
)

// NetcacheOp is the Netcache frame's op field (spec §4.1).
type NetcacheOp uint8

const (
	NetcacheRead     NetcacheOp = 1
	NetcacheWrite    NetcacheOp = 2
	NetcacheRepR     NetcacheOp = 3
	NetcacheRepW     NetcacheOp = 4
	NetcacheCacheHit NetcacheOp = 5
)

// Netcache fixed field widths (spec §4.1).
const (
	NetcacheKeySize   = 6
	NetcacheValueSize = 4
)

// ControllerType is the Controller frame's type field (spec §4.1).
type ControllerType uint8

const (
	CtrlResetReq   ControllerType = 0
	CtrlResetReply ControllerType = 1
	CtrlHKReport   ControllerType = 2
	CtrlKeyMgr     ControllerType = 3
)

// Reset acknowledgement codes, carried in RESET_REPLY's ack byte.
const (
	ResetAckOK     uint8 = 0
	ResetAckFailed uint8 = 1
)

// ErrUnknownIdentifier is returned when a frame's leading two bytes match
// none of the three known codecs.
var ErrUnknownIdentifier = errors.New("codec: unknown identifier")

// ErrUnknownOp is returned when a frame decodes a structurally valid header
// but an op_type/type byte this codec doesn't recognize.
var ErrUnknownOp = errors.New("codec: unknown op type")

// ErrUnsupportedVariant is returned by Encode when asked to serialize a
// message shape the codec cannot represent — an encode-time programmer
// error per spec §7, not a data-path condition.
var ErrUnsupportedVariant = errors.New("codec: unsupported message variant")

// KeyHashMask restricts a computed key hash to 31 bits so it matches the
// controller's signed 32-bit representation of key hashes (spec §4.1).
const KeyHashMask = 0x7FFFFFFF
