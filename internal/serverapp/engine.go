package serverapp

import (
	"log"
	"sync"
	"time"

	"github.com/NUS-Systems-Lab/pegasus/internal/cluster"
	"github.com/NUS-Systems-Lab/pegasus/internal/codec"
	"github.com/NUS-Systems-Lab/pegasus/internal/store"
	"github.com/NUS-Systems-Lab/pegasus/internal/transport"
)

// Config fixes one Server's identity within the cluster and its runtime
// knobs (spec §3, §6).
type Config struct {
	RackID int
	NodeID int
	Topo   *cluster.Topology

	NumWorkers int

	// ProcLatency is the test knob from spec §4.3 step 1: when non-zero,
	// every KV request sleeps this long before being applied.
	ProcLatency time.Duration

	// DefaultValue is returned for a GET on a missing key (spec §4.3, "If
	// present ... Else result=NOT_FOUND, value=default_value").
	DefaultValue []byte
}

// Server is one backend node's request engine (spec §4.3).
type Server struct {
	cfg Config
	st  *store.Store
	tr  transport.Transport
	win *LoadWindow
	hk  *HotKeyTracker

	keyIndexMu sync.Mutex
	keyIndex   map[uint32][]byte // best-effort keyhash -> key, for KEY_MGR

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a Server. Run must be called to start its hot-key reporter;
// Receive can be wired to a transport immediately.
func New(cfg Config, tr transport.Transport) *Server {
	return &Server{
		cfg:      cfg,
		st:       store.New(),
		tr:       tr,
		win:      NewLoadWindow(time.Now()),
		hk:       NewHotKeyTracker(cfg.NumWorkers),
		keyIndex: make(map[uint32][]byte),
		stop:     make(chan struct{}),
	}
}

// Store exposes the underlying store for tests that want to assert
// directly on applied state.
func (s *Server) Store() *store.Store {
	return s.st
}

// Run starts the hot-key reporting loop (spec §5: "one additional
// application thread per server runs the hot-key reporting loop"). It
// returns once Stop is called.
func (s *Server) Run() {
	s.wg.Add(1)
	defer s.wg.Done()

	ticker := time.NewTicker(HKEpoch)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportHotKeys()
		case <-s.stop:
			return
		}
	}
}

// Stop ends the reporting loop and waits for it to exit.
func (s *Server) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Server) reportHotKeys() {
	merged := s.hk.mergeAndClear()
	if len(merged) == 0 {
		return
	}
	entries := buildReport(merged)
	buf, err := codec.EncodeController(&codec.ControllerMessage{
		Type:    codec.CtrlHKReport,
		HotKeys: entries,
	})
	if err != nil {
		log.Printf("serverapp: encode HK_REPORT: %v", err)
		return
	}
	if err := s.tr.SendToController(s.cfg.RackID, buf); err != nil {
		log.Printf("serverapp: send HK_REPORT: %v", err)
	}
}

// Receive implements transport.App — the single entry point every
// transport worker calls with a raw datagram (spec §4.3: "Routing of
// incoming frames. Try controller codec first... Else try KV codec...").
func (s *Server) Receive(buf []byte, src string, workerID int) {
	ident, err := codec.PeekIdentifier(buf)
	if err != nil {
		log.Printf("serverapp: dropping undecodable frame from %s: %v", src, err)
		return
	}

	if ident == codec.IdentController {
		s.handleControllerFrame(buf, src)
		return
	}

	msg, err := codec.DecodePegasus(buf)
	if err != nil {
		log.Printf("serverapp: dropping malformed KV frame from %s: %v", src, err)
		return
	}

	switch {
	case msg.OpType.IsRequest():
		s.handleRequest(msg, src, workerID)
	case msg.OpType == codec.OpMgrReq:
		s.handleMgrReq(msg)
	default:
		log.Printf("serverapp: unexpected message %s from %s", msg.OpType, src)
	}
}

func (s *Server) handleRequest(msg *codec.Message, src string, workerID int) {
	if s.cfg.ProcLatency > 0 {
		time.Sleep(s.cfg.ProcLatency)
	}

	s.rememberKey(msg.KeyHash, msg.Key)
	s.hk.Sample(workerID, msg.KeyHash)

	result, value := s.apply(msg)

	if !s.cfg.Topo.IsTailRack(s.cfg.RackID) {
		s.forward(msg)
		return
	}
	s.reply(msg, result, value)
}

// apply executes one KV operation against the store (spec §4.3 step 2).
func (s *Server) apply(msg *codec.Message) (codec.Result, []byte) {
	key := string(msg.Key)

	switch msg.OpType {
	case codec.OpGet:
		rec, ok := s.st.Get(key)
		if !ok {
			return codec.ResultNotFound, s.cfg.DefaultValue
		}
		return codec.ResultOK, rec.Value

	case codec.OpPut, codec.OpPutFwd:
		// The reply always echoes the request's value, even when the version
		// guard rejects a stale write and the store keeps the old record
		// (matches the original's "reply.value = op.value; // for netcache").
		s.st.PutIfNewer(key, msg.Value, msg.Ver)
		return codec.ResultOK, msg.Value

	case codec.OpDel:
		s.st.Erase(key)
		return codec.ResultOK, nil

	default:
		return codec.ResultNotFound, s.cfg.DefaultValue
	}
}

// forward carries a write one hop down the chain (spec §4.3 step 5, "else").
// PUT becomes PUTFWD on the wire; DEL has no PUTFWD counterpart (it carries
// no value for PUTFWD's payload shape to disagree about) and keeps its own
// op_type across hops.
func (s *Server) forward(msg *codec.Message) {
	fwd := *msg
	if msg.OpType == codec.OpPut {
		fwd.OpType = codec.OpPutFwd
		fwd.PayloadOp = codec.OpPutFwd
	}

	buf, err := codec.EncodePegasus(&fwd)
	if err != nil {
		log.Printf("serverapp: encode forwarded request: %v", err)
		return
	}
	if err := s.tr.SendToNode(s.cfg.RackID+1, s.cfg.NodeID, buf); err != nil {
		log.Printf("serverapp: forward to (%d,%d): %v", s.cfg.RackID+1, s.cfg.NodeID, err)
	}
}

// reply answers the client via the load balancer (spec §4.3 step 5, "if
// tail"); see internal/router's LoadBalancer doc comment for why every
// reply is relayed through the LB rather than sent to the client directly.
func (s *Server) reply(msg *codec.Message, result codec.Result, value []byte) {
	op := msg.OpType
	if op == codec.OpPutFwd {
		op = codec.OpPut
	}

	replyOp := codec.OpRepW
	if op == codec.OpGet {
		replyOp = codec.OpRepR
	}

	reply := &codec.Message{
		Identifier: msg.Identifier,
		OpType:     replyOp,
		KeyHash:    msg.KeyHash,
		HdrReqID:   msg.HdrReqID,
		ClientID:   msg.ClientID,
		ReqID:      msg.ReqID,
		ReqTime:    msg.ReqTime,
		PayloadOp:  op,
		Result:     result,
		Value:      value,
	}
	buf, err := codec.EncodePegasus(reply)
	if err != nil {
		log.Printf("serverapp: encode reply: %v", err)
		return
	}
	if err := s.tr.SendToLB(buf); err != nil {
		log.Printf("serverapp: send reply: %v", err)
	}
}

func (s *Server) rememberKey(keyHash uint32, key []byte) {
	if len(key) == 0 {
		return
	}
	s.keyIndexMu.Lock()
	s.keyIndex[keyHash] = append([]byte(nil), key...)
	s.keyIndexMu.Unlock()
}

func (s *Server) lookupKey(keyHash uint32) ([]byte, bool) {
	s.keyIndexMu.Lock()
	defer s.keyIndexMu.Unlock()
	key, ok := s.keyIndex[keyHash]
	return key, ok
}

// CurrentLoad records a sample in the epoch window and returns this
// server's current load (spec §3, §4.3 step 3). The request path does not
// call it, and no reply carries a load value.
func (s *Server) CurrentLoad() int {
	return s.win.CalculateLoad(time.Now())
}

// RackID and NodeID identify this server for tests and for logging.
func (s *Server) RackID() int { return s.cfg.RackID }
func (s *Server) NodeID() int { return s.cfg.NodeID }
