package router

import (
	"sync"
	"sync/atomic"

	"github.com/NUS-Systems-Lab/pegasus/internal/cluster"
)

// PortZero is the fixed base UDP port servers listen on; NodeForPort(p) =
// p - PortZero maps a server's source port to its node index (spec §4.2).
const PortZero uint16 = 12345

// DefaultLoadConstant is the tunable from spec §6 ("load_constant=1.0").
const DefaultLoadConstant = 1.0

// Router is the per-rack load-balancer core from spec §4.2: a hash-indexed
// candidate node, bounded by a probe over each node's outstanding-request
// counter. One Router instance covers one rack's worth of nodes; a
// deployment with multiple racks runs one Router per rack (LoadBalancer
// steers writes into the head rack and GETs into the tail rack, so it keeps
// load state for every rack).
type Router struct {
	// mu guards only the iload slice header itself, so that Reset can
	// replace it wholesale (on a node-count change) without racing the
	// data path. Individual counters are still updated lock-free with
	// atomic operations so the fast path never blocks on this mutex in the
	// common case (spec §5: "iload[] is updated lock-free by the LB") —
	// RLock only serializes against a concurrent Reset, never against
	// another request.
	mu    sync.RWMutex
	iload []int64

	loadConstant float64
	nodeAddrs    []cluster.NodeAddress
}

// New creates a Router for a rack with the given node addresses. loadConstant
// of 0 selects DefaultLoadConstant.
func New(nodeAddrs []cluster.NodeAddress, loadConstant float64) *Router {
	if loadConstant == 0 {
		loadConstant = DefaultLoadConstant
	}
	return &Router{
		iload:        make([]int64, len(nodeAddrs)),
		loadConstant: loadConstant,
		nodeAddrs:    nodeAddrs,
	}
}

// NumNodes returns the current number of nodes the router steers across.
func (r *Router) NumNodes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.iload)
}

// NodeAddr returns the address of node i.
func (r *Router) NodeAddr(i int) cluster.NodeAddress {
	return r.nodeAddrs[i]
}

// loadSlice returns the current counter slice. Holding only an RLock to
// read the slice header (not its elements, which are touched with atomics)
// is enough to make this safe against a concurrent Reset swapping the
// slice out from under the data path.
func (r *Router) loadSlice() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.iload
}

// clampedLoad returns node i's outstanding-request count, floored at zero.
// Selection uses the clamped value; the underlying counter is never
// clamped (spec §3: "may briefly go negative under reordering;
// implementation may clamp at zero for selection only, not for updates").
func clampedLoad(iload []int64, i int) int64 {
	v := atomic.LoadInt64(&iload[i])
	if v < 0 {
		return 0
	}
	return v
}

// SelectNode runs the load-bounded rendezvous probe from spec §4.2 and
// returns the chosen node index for a request whose djb2 key hash is
// keyHash.
//
// Termination: for loadConstant >= 1, at least one node satisfies
// iload[i] <= avg <= loadConstant*avg, since avg is the mean — the loop
// always finds it within NumNodes() steps. For loadConstant < 1 that
// guarantee doesn't hold (no node may satisfy the bound), so the loop is
// capped at NumNodes() iterations and falls back to the hash-indexed node
// if every candidate was rejected.
func (r *Router) SelectNode(keyHash uint32) int {
	iload := r.loadSlice()
	n := len(iload)
	if n == 0 {
		return 0
	}

	var total int64
	for i := 0; i < n; i++ {
		total += clampedLoad(iload, i)
	}
	avg := total / int64(n)

	start := int(keyHash) % n
	candidate := start
	threshold := r.loadConstant * float64(avg)

	for steps := 0; steps < n; steps++ {
		if float64(clampedLoad(iload, candidate)) <= threshold {
			return candidate
		}
		candidate = (candidate + 1) % n
	}
	return start
}

// SelectNodeForKey hashes key with DJB2 and runs SelectNode. This is the
// router's raw-mode fast path (spec §4.2, "raw mode recomputes djb2");
// when a Pegasus/Static frame already carries a key_hash in its header,
// callers should use that value with SelectNode directly instead of
// rehashing.
func (r *Router) SelectNodeForKey(key []byte) int {
	return r.SelectNode(DJB2(key))
}

// IncLoad records a request forwarded to node i.
func (r *Router) IncLoad(i int) {
	atomic.AddInt64(&r.loadSlice()[i], 1)
}

// DecLoad records a reply observed from node i.
func (r *Router) DecLoad(i int) {
	atomic.AddInt64(&r.loadSlice()[i], -1)
}

// NodeForPort recovers a node index from a server's source UDP port (spec
// §4.2: "port_to_node(p) = p - PORT_ZERO"). LoadBalancer's reply
// accounting does not use it; it decrements the node recorded for the
// request's hdr_req_id instead.
func NodeForPort(port uint16) int {
	return int(port) - int(PortZero)
}

// Reset updates NumNodes to newNumNodes (bounded by the address table) and
// zeroes every load counter, per the controller's RESET_REQ (spec §4.2).
func (r *Router) Reset(newNumNodes int) {
	if newNumNodes > len(r.nodeAddrs) {
		newNumNodes = len(r.nodeAddrs)
	}
	if newNumNodes < 0 {
		newNumNodes = 0
	}
	r.mu.Lock()
	r.iload = make([]int64, newNumNodes)
	r.mu.Unlock()
}
