package serverapp

import (
	"log"

	"github.com/NUS-Systems-Lab/pegasus/internal/codec"
)

// handleControllerFrame dispatches the two Controller-codec messages a
// server can receive directly: RESET_REQ (ack back) and KEY_MGR (fan out a
// migration request to this rack's other nodes). RESET_REPLY and HK_REPORT
// only ever flow server->controller, never the other way, so they are not
// handled here.
func (s *Server) handleControllerFrame(buf []byte, src string) {
	cm, err := codec.DecodeController(buf)
	if err != nil {
		log.Printf("serverapp: dropping malformed controller frame from %s: %v", src, err)
		return
	}

	switch cm.Type {
	case codec.CtrlResetReq:
		s.handleResetReq()
	case codec.CtrlKeyMgr:
		s.handleKeyMgr(cm)
	default:
		log.Printf("serverapp: unexpected controller message type %d from %s", cm.Type, src)
	}
}

func (s *Server) handleResetReq() {
	reply, err := codec.EncodeController(&codec.ControllerMessage{
		Type: codec.CtrlResetReply,
		Ack:  codec.ResetAckOK,
	})
	if err != nil {
		log.Printf("serverapp: encode RESET_REPLY: %v", err)
		return
	}
	if err := s.tr.SendToController(s.cfg.RackID, reply); err != nil {
		log.Printf("serverapp: send RESET_REPLY: %v", err)
	}
}

// handleKeyMgr implements spec §4.3's "Controller KEY_MGR handling": read
// the local value (or default/ver=0 if absent), build an MGR_REQ, and fan
// it out to every other node in this rack.
func (s *Server) handleKeyMgr(cm *codec.ControllerMessage) {
	key := cm.Key
	if len(key) == 0 {
		// Controller didn't carry the key (spec §9, "Key_MGR... the
		// controller transmits it if known, else the owner looks it up").
		var ok bool
		key, ok = s.lookupKey(cm.KeyHash)
		if !ok {
			log.Printf("serverapp: KEY_MGR for unknown keyhash %d, cannot resolve key", cm.KeyHash)
			return
		}
	}

	value := s.cfg.DefaultValue
	var ver uint32
	if rec, ok := s.st.Get(string(key)); ok {
		value, ver = rec.Value, rec.Ver
	}

	req := &codec.Message{
		Identifier: codec.IdentPegasus,
		OpType:     codec.OpMgrReq,
		KeyHash:    cm.KeyHash,
		Ver:        ver,
		Key:        key,
		Value:      value,
	}
	buf, err := codec.EncodePegasus(req)
	if err != nil {
		log.Printf("serverapp: encode MGR_REQ: %v", err)
		return
	}

	peers := s.cfg.Topo.NumNodesPerRack()
	for peer := 0; peer < peers; peer++ {
		if peer == s.cfg.NodeID {
			continue
		}
		if err := s.tr.SendToNode(s.cfg.RackID, peer, buf); err != nil {
			log.Printf("serverapp: fan out MGR_REQ to peer %d: %v", peer, err)
		}
	}
}

// handleMgrReq applies an incoming migration request with the same
// version-guard PUT uses, and acks the LB only on acceptance (spec §4.3:
// "On success... emit MGR_ACK to the LB... On rejection (stale), silently
// drop").
func (s *Server) handleMgrReq(msg *codec.Message) {
	_, accepted := s.st.PutIfNewer(string(msg.Key), msg.Value, msg.Ver)
	if !accepted {
		return
	}

	ack := &codec.Message{
		Identifier: codec.IdentPegasus,
		OpType:     codec.OpMgrAck,
		KeyHash:    msg.KeyHash,
		Ver:        msg.Ver,
		NodeA:      uint8(s.cfg.NodeID),
	}
	buf, err := codec.EncodePegasus(ack)
	if err != nil {
		log.Printf("serverapp: encode MGR_ACK: %v", err)
		return
	}
	if err := s.tr.SendToLB(buf); err != nil {
		log.Printf("serverapp: send MGR_ACK: %v", err)
	}
}
