package ctrl

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/NUS-Systems-Lab/pegasus/internal/cluster"
	"github.com/NUS-Systems-Lab/pegasus/internal/codec"
	"github.com/NUS-Systems-Lab/pegasus/internal/transport"
)

// Config fixes the controller's view of the cluster (spec §4.4: "state:
// num_nodes_per_rack, num_rkeys, the most-recently observed rack
// topology").
type Config struct {
	Topo *cluster.Topology

	// NumRKeys bounds how many KEY_MGRs (one per distinct hot key not
	// already migrated) a single aggregation window issues.
	NumRKeys int

	// AggregationWindow is how often the controller re-scores accumulated
	// HK_REPORTs and issues new KEY_MGRs.
	AggregationWindow time.Duration

	// ResetTimeout bounds how long Reset waits for every server's
	// RESET_REPLY before giving up on stragglers.
	ResetTimeout time.Duration
}

type keyOwner struct {
	rackID, nodeID int
}

// Controller is the controller-core process (spec §4.4).
type Controller struct {
	cfg Config
	tr  transport.Transport

	mu         sync.Mutex
	aggregated map[uint32]uint64
	owners     map[uint32]keyOwner
	replicated map[uint32]bool

	resetMu      sync.Mutex
	resetPending map[string]bool
	resetDone    chan struct{}

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a Controller. SetTransport must be called before Run or
// Receive is driven by a real transport.
func New(cfg Config) *Controller {
	if cfg.AggregationWindow == 0 {
		cfg.AggregationWindow = time.Second
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = 5 * time.Second
	}
	return &Controller{
		cfg:        cfg,
		aggregated: make(map[uint32]uint64),
		owners:     make(map[uint32]keyOwner),
		replicated: make(map[uint32]bool),
		stop:       make(chan struct{}),
	}
}

// SetTransport wires the transport the controller sends through.
func (c *Controller) SetTransport(tr transport.Transport) {
	c.tr = tr
}

// Run starts the hot-key aggregation loop (spec §4.4's aggregation window)
// and blocks until Stop is called.
func (c *Controller) Run() {
	c.wg.Add(1)
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.AggregationWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.issueMigrations()
		case <-c.stop:
			return
		}
	}
}

// Stop ends the aggregation loop and waits for it to exit.
func (c *Controller) Stop() {
	close(c.stop)
	c.wg.Wait()
}

// Receive implements transport.App. Controller processes only exchange
// Controller-codec frames; a KV-codec frame arriving here is the "no codec
// matches" fatal condition spec §4.3 describes for dispatch ordering, but a
// controller-only process has no KV codec to fall back to, so it is simply
// logged and dropped.
func (c *Controller) Receive(buf []byte, src string, workerID int) {
	cm, err := codec.DecodeController(buf)
	if err != nil {
		log.Printf("ctrl: dropping undecodable frame from %s: %v", src, err)
		return
	}

	switch cm.Type {
	case codec.CtrlResetReply:
		c.recordResetReply(src)
	case codec.CtrlHKReport:
		c.recordHotKeyReport(cm, src)
	default:
		log.Printf("ctrl: unexpected controller message type %d from %s", cm.Type, src)
	}
}

func (c *Controller) recordHotKeyReport(cm *codec.ControllerMessage, src string) {
	rackID, nodeID, ok := c.cfg.Topo.FindNode(src)
	if !ok {
		log.Printf("ctrl: HK_REPORT from unrecognized server %s", src)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range cm.HotKeys {
		c.aggregated[e.KeyHash] += uint64(e.Load)
		c.owners[e.KeyHash] = keyOwner{rackID: rackID, nodeID: nodeID}
	}
}

// issueMigrations scores the current aggregation window, picks the top
// NumRKeys distinct keyhashes not already under migration, and emits a
// KEY_MGR to each one's owning server (spec §4.4: "Hot-key aggregation").
func (c *Controller) issueMigrations() {
	c.mu.Lock()
	type scored struct {
		keyHash uint32
		load    uint64
		owner   keyOwner
	}
	candidates := make([]scored, 0, len(c.aggregated))
	for k, load := range c.aggregated {
		if c.replicated[k] {
			continue
		}
		candidates = append(candidates, scored{keyHash: k, load: load, owner: c.owners[k]})
	}
	c.aggregated = make(map[uint32]uint64)
	c.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].load != candidates[j].load {
			return candidates[i].load > candidates[j].load
		}
		return candidates[i].keyHash < candidates[j].keyHash
	})

	budget := c.cfg.NumRKeys
	for i, cand := range candidates {
		if i >= budget {
			break
		}
		c.emitKeyMgr(cand.keyHash, cand.owner)
		c.mu.Lock()
		c.replicated[cand.keyHash] = true
		c.mu.Unlock()
	}
}

func (c *Controller) emitKeyMgr(keyHash uint32, owner keyOwner) {
	buf, err := codec.EncodeController(&codec.ControllerMessage{
		Type:    codec.CtrlKeyMgr,
		KeyHash: keyHash,
	})
	if err != nil {
		log.Printf("ctrl: encode KEY_MGR: %v", err)
		return
	}
	if err := c.tr.SendToNode(owner.rackID, owner.nodeID, buf); err != nil {
		log.Printf("ctrl: send KEY_MGR to (%d,%d): %v", owner.rackID, owner.nodeID, err)
	}
}
