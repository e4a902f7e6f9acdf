package serverapp

import (
	"testing"

	"github.com/NUS-Systems-Lab/pegasus/internal/cluster"
	"github.com/NUS-Systems-Lab/pegasus/internal/codec"
	"github.com/NUS-Systems-Lab/pegasus/internal/router"
	"github.com/NUS-Systems-Lab/pegasus/internal/transport"
)

func singleRackTopology(numNodes int) *cluster.Topology {
	nodes := make([]cluster.NodeAddress, numNodes)
	for i := range nodes {
		nodes[i] = cluster.NodeAddress{UDPPort: uint16(9000 + i)}
	}
	return &cluster.Topology{Racks: []cluster.Rack{{Nodes: nodes}}}
}

func decodeReply(t *testing.T, buf []byte) *codec.Message {
	t.Helper()
	msg, err := codec.DecodePegasus(buf)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return msg
}

// lastSentTo returns the buffer of the most recent frame the fake recorded
// of the given kind ("lb", "node", "controller", "local").
func lastSentTo(f *transport.Fake, kind string) []byte {
	for i := len(f.Sent) - 1; i >= 0; i-- {
		if f.Sent[i].Kind == kind {
			return f.Sent[i].Buf
		}
	}
	return nil
}

func putRequest(keyHash uint32, key, value []byte, ver uint32, hdrReqID uint8) *codec.Message {
	return &codec.Message{
		Identifier: codec.IdentPegasus,
		OpType:     codec.OpPut,
		KeyHash:    keyHash,
		HdrReqID:   hdrReqID,
		ClientID:   1,
		ReqID:      1,
		PayloadOp:  codec.OpPut,
		Key:        key,
		Value:      value,
		Ver:        ver,
	}
}

func getRequest(keyHash uint32, key []byte, hdrReqID uint8) *codec.Message {
	return &codec.Message{
		Identifier: codec.IdentPegasus,
		OpType:     codec.OpGet,
		KeyHash:    keyHash,
		HdrReqID:   hdrReqID,
		ClientID:   1,
		ReqID:      2,
		PayloadOp:  codec.OpGet,
		Key:        key,
	}
}

// TestScenarioSingleRackPutThenGet reproduces spec §8 scenario 1.
func TestScenarioSingleRackPutThenGet(t *testing.T) {
	topo := singleRackTopology(2)
	f := transport.NewFake()
	srv := New(Config{RackID: 0, NodeID: 0, Topo: topo, NumWorkers: 1, DefaultValue: []byte{}}, f)

	put := putRequest(router.DJB2([]byte("foo")), []byte("foo"), []byte("bar"), 1, 1)
	buf, _ := codec.EncodePegasus(put)
	srv.Receive(buf, "client:1", 0)

	reply := decodeReply(t, lastSentTo(f, "lb"))
	if reply.Result != codec.ResultOK || string(reply.Value) != "bar" {
		t.Fatalf("unexpected PUT reply: %+v", reply)
	}

	get := getRequest(router.DJB2([]byte("foo")), []byte("foo"), 2)
	buf, _ = codec.EncodePegasus(get)
	srv.Receive(buf, "client:1", 0)

	reply = decodeReply(t, lastSentTo(f, "lb"))
	if reply.Result != codec.ResultOK || string(reply.Value) != "bar" {
		t.Fatalf("unexpected GET reply: %+v", reply)
	}
}

// TestScenarioStalePutRejected reproduces spec §8 scenario 2: the reply
// echoes the request's own value either way, but a stale write must not
// change what a subsequent GET observes.
func TestScenarioStalePutRejected(t *testing.T) {
	topo := singleRackTopology(1)
	f := transport.NewFake()
	srv := New(Config{RackID: 0, NodeID: 0, Topo: topo, NumWorkers: 1}, f)

	put1 := putRequest(1, []byte("foo"), []byte("bar"), 1, 1)
	buf, _ := codec.EncodePegasus(put1)
	srv.Receive(buf, "client:1", 0)

	put2 := putRequest(1, []byte("foo"), []byte("baz"), 0, 2)
	buf, _ = codec.EncodePegasus(put2)
	srv.Receive(buf, "client:1", 0)

	get := getRequest(1, []byte("foo"), 3)
	buf, _ = codec.EncodePegasus(get)
	srv.Receive(buf, "client:1", 0)

	reply := decodeReply(t, lastSentTo(f, "lb"))
	if string(reply.Value) != "bar" {
		t.Fatalf("stale PUT should not have overwritten the stored value, got %q", reply.Value)
	}
}

// TestScenarioMissingGet reproduces spec §8 scenario 3.
func TestScenarioMissingGet(t *testing.T) {
	topo := singleRackTopology(1)
	f := transport.NewFake()
	srv := New(Config{RackID: 0, NodeID: 0, Topo: topo, NumWorkers: 1, DefaultValue: []byte("")}, f)

	get := getRequest(9, []byte("missing"), 1)
	buf, _ := codec.EncodePegasus(get)
	srv.Receive(buf, "client:1", 0)

	reply := decodeReply(t, lastSentTo(f, "lb"))
	if reply.Result != codec.ResultNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", reply.Result)
	}
}

// TestScenarioChainWrite reproduces spec §8 scenario 5: head forwards PUT
// as PUTFWD; tail applies and replies.
func TestScenarioChainWrite(t *testing.T) {
	topo := &cluster.Topology{
		Racks: []cluster.Rack{
			{Nodes: []cluster.NodeAddress{{UDPPort: 9000}}},
			{Nodes: []cluster.NodeAddress{{UDPPort: 9001}}},
		},
	}

	headTr := transport.NewFake()
	head := New(Config{RackID: 0, NodeID: 0, Topo: topo, NumWorkers: 1}, headTr)

	put := putRequest(1, []byte("foo"), []byte("bar"), 1, 5)
	buf, _ := codec.EncodePegasus(put)
	head.Receive(buf, "client:1", 0)

	fwdBuf := lastSentTo(headTr, "node")
	if fwdBuf == nil {
		t.Fatalf("head should have forwarded to the tail rack")
	}
	fwd := decodeReply(t, fwdBuf)
	if fwd.OpType != codec.OpPutFwd {
		t.Fatalf("expected forwarded op PUTFWD, got %s", fwd.OpType)
	}

	if _, ok := head.Store().Get("foo"); !ok {
		t.Fatalf("head should have applied the write locally before forwarding")
	}

	tailTr := transport.NewFake()
	tail := New(Config{RackID: 1, NodeID: 0, Topo: topo, NumWorkers: 1}, tailTr)
	tail.Receive(fwdBuf, "head:0", 0)

	reply := decodeReply(t, lastSentTo(tailTr, "lb"))
	if reply.Result != codec.ResultOK || string(reply.Value) != "bar" || reply.PayloadOp != codec.OpPut {
		t.Fatalf("unexpected tail reply: %+v", reply)
	}
	if rec, ok := tail.Store().Get("foo"); !ok || string(rec.Value) != "bar" {
		t.Fatalf("tail should have the replicated value, got %+v ok=%v", rec, ok)
	}
}

// TestScenarioHotKeyReport reproduces spec §8 scenario 6: 3200 GETs for one
// key (32 sampled updates) produces exactly one HK_REPORT entry of count 32
// once the reporter runs.
func TestScenarioHotKeyReport(t *testing.T) {
	topo := singleRackTopology(1)
	f := transport.NewFake()
	srv := New(Config{RackID: 0, NodeID: 0, Topo: topo, NumWorkers: 1, DefaultValue: []byte("")}, f)

	keyHash := uint32(42)
	get := getRequest(keyHash, []byte("hot"), 1)
	buf, _ := codec.EncodePegasus(get)
	for i := 0; i < 3200; i++ {
		srv.Receive(buf, "client:1", 0)
	}

	srv.reportHotKeys()

	hkBuf := lastSentTo(f, "controller")
	if hkBuf == nil {
		t.Fatalf("expected an HK_REPORT to be sent")
	}
	cm, err := codec.DecodeController(hkBuf)
	if err != nil {
		t.Fatalf("decode HK_REPORT: %v", err)
	}
	if len(cm.HotKeys) != 1 || cm.HotKeys[0].KeyHash != keyHash || cm.HotKeys[0].Load != HKThreshold {
		t.Fatalf("unexpected HK_REPORT contents: %+v", cm.HotKeys)
	}
}

func TestReportHotKeysSkipsEmptyWindow(t *testing.T) {
	topo := singleRackTopology(1)
	f := transport.NewFake()
	srv := New(Config{RackID: 0, NodeID: 0, Topo: topo, NumWorkers: 1}, f)

	srv.reportHotKeys()
	if len(f.Sent) != 0 {
		t.Fatalf("expected no frames sent when there is nothing hot to report")
	}
}
