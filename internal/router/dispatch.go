package router

import (
	"log"
	"sync"

	"github.com/NUS-Systems-Lab/pegasus/internal/cluster"
	"github.com/NUS-Systems-Lab/pegasus/internal/codec"
	"github.com/NUS-Systems-Lab/pegasus/internal/transport"
)

// LoadBalancer is the router process (spec §4.2 plus the client-addressing
// consequence of §9's "MGR_REQ on the LB path" open question). It owns one
// Router (load table) per rack, decides which rack a KV request targets —
// GET goes straight to the tail rack, PUT/DEL enter at the head — and
// relays replies back to whichever client address sent the original
// request.
//
// Client addressing. The original system forwards requests by rewriting
// only the destination MAC/IP/port on a raw frame, so the source address a
// downstream server observes is still the real client's — no bookkeeping
// needed. This implementation forwards over ordinary UDP sockets instead
// (a userspace process sending through net.UDPConn, with no raw-frame
// rewriting or checksum recomputation), which means a forwarded datagram's
// apparent source becomes the forwarder's own socket. To preserve "tail
// replies to the real client" without that packet-rewriting trick, the LB
// learns the client's address from hdr_req_id on the way in and relays the
// matching reply back to it on the way out, rather than servers replying to
// clients directly.
type LoadBalancer struct {
	topo  *cluster.Topology
	racks []*Router
	tr    transport.Transport

	mu      sync.Mutex
	pending map[uint8]pendingReq // hdr_req_id -> client address + the node IncLoad was charged to
}

// pendingReq remembers both who to relay a reply to and which (rack, node)
// handleRequest charged an IncLoad to, so handleReply can DecLoad the same
// node even though the reply's source is the tail rack for a multi-rack
// write, not the head rack IncLoad was applied to.
type pendingReq struct {
	clientAddr string
	rackID     int
	nodeID     int
}

// NewLoadBalancer constructs a LoadBalancer for topo, with one Router per
// rack sized from topo's per-rack node count.
func NewLoadBalancer(topo *cluster.Topology, loadConstant float64) *LoadBalancer {
	racks := make([]*Router, topo.NumRacks())
	for i, rack := range topo.Racks {
		racks[i] = New(rack.Nodes, loadConstant)
	}
	return &LoadBalancer{
		topo:    topo,
		racks:   racks,
		pending: make(map[uint8]pendingReq),
	}
}

// SetTransport wires the transport the LB sends through. Must be called
// before Receive is driven by a transport's worker threads.
func (lb *LoadBalancer) SetTransport(tr transport.Transport) {
	lb.tr = tr
}

// Rack returns the Router for rackID, for tests.
func (lb *LoadBalancer) Rack(rackID int) *Router {
	return lb.racks[rackID]
}

// Receive implements transport.App. It is the single upcall the LB's
// transport workers invoke for every datagram, whether from a client or
// from a server replying.
func (lb *LoadBalancer) Receive(buf []byte, src string, workerID int) {
	ident, err := codec.PeekIdentifier(buf)
	if err != nil {
		log.Printf("router: dropping undecodable frame from %s: %v", src, err)
		return
	}

	if ident == codec.IdentController {
		lb.handleControllerFrame(buf, src)
		return
	}

	msg, err := codec.DecodePegasus(buf)
	if err != nil {
		log.Printf("router: dropping malformed KV frame from %s: %v", src, err)
		return
	}

	switch {
	case msg.OpType.IsRequest():
		lb.handleRequest(msg, buf, src)
	case msg.OpType.IsReply():
		lb.handleReply(msg, buf, src)
	case msg.OpType == codec.OpMgrAck:
		// MGR_ACK carries no client to relay to. The LB keeps no
		// migration state and does no load accounting for it: the ack is
		// dropped here.
	default:
		log.Printf("router: unhandled op %s from %s", msg.OpType, src)
	}
}

func (lb *LoadBalancer) handleControllerFrame(buf []byte, src string) {
	cm, err := codec.DecodeController(buf)
	if err != nil {
		log.Printf("router: dropping malformed controller frame from %s: %v", src, err)
		return
	}
	if cm.Type != codec.CtrlResetReq {
		return
	}
	for _, r := range lb.racks {
		r.Reset(int(cm.NumNodes))
	}
	log.Printf("router: reset to %d nodes/rack on RESET_REQ", cm.NumNodes)
}

// rackForOp picks the entry rack for a client-originated request: reads go
// straight to the tail (the only rack that answers clients for GETs, spec
// §2), writes enter at the head so chain replication can carry them through
// every rack.
func (lb *LoadBalancer) rackForOp(op codec.OpType) int {
	if op == codec.OpGet {
		return len(lb.racks) - 1
	}
	return 0
}

func (lb *LoadBalancer) handleRequest(msg *codec.Message, buf []byte, src string) {
	rackID := lb.rackForOp(msg.OpType)
	r := lb.racks[rackID]
	nodeID := r.SelectNode(msg.KeyHash)
	r.IncLoad(nodeID)

	lb.mu.Lock()
	lb.pending[msg.HdrReqID] = pendingReq{clientAddr: src, rackID: rackID, nodeID: nodeID}
	lb.mu.Unlock()

	if err := lb.tr.SendToNode(rackID, nodeID, buf); err != nil {
		log.Printf("router: send to (%d,%d) failed: %v", rackID, nodeID, err)
	}
}

// handleReply relays a server's reply back to the waiting client and
// unwinds the load charged by the matching handleRequest. DecLoad is
// applied to the node recorded in pending, not the node FindNode(src)
// resolves to: a multi-rack write is charged against the head rack that
// first admitted it, but the reply physically arrives from the tail rack
// that answers the client, so deriving the node from the reply's source
// would decrement the wrong rack's counter.
func (lb *LoadBalancer) handleReply(msg *codec.Message, buf []byte, src string) {
	lb.mu.Lock()
	p, ok := lb.pending[msg.HdrReqID]
	if ok {
		delete(lb.pending, msg.HdrReqID)
	}
	lb.mu.Unlock()

	if !ok {
		log.Printf("router: reply with unknown hdr_req_id %d from %s, dropping", msg.HdrReqID, src)
		return
	}

	lb.racks[p.rackID].DecLoad(p.nodeID)

	if err := lb.tr.SendTo(p.clientAddr, buf); err != nil {
		log.Printf("router: relay to client %s failed: %v", p.clientAddr, err)
	}
}
