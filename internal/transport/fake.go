package transport

import "sync"

// sentFrame records one outbound call made through a Fake.
type sentFrame struct {
	Kind string // "node", "lb", "controller", "local", "raw"
	Addr string
	Rack int
	Node int
	Buf  []byte
}

// Fake is an in-memory Transport for unit tests in internal/serverapp and
// internal/ctrl: it never touches a socket, just records what was sent and
// lets the test drive Receive directly.
type Fake struct {
	mu  sync.Mutex
	app App

	Sent []sentFrame

	NumWorkers int
}

func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) SendTo(addr string, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, sentFrame{Kind: "raw", Addr: addr, Buf: append([]byte(nil), buf...)})
	return nil
}

func (f *Fake) SendToNode(rackID, nodeID int, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, sentFrame{Kind: "node", Rack: rackID, Node: nodeID, Buf: append([]byte(nil), buf...)})
	return nil
}

func (f *Fake) SendToLB(buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, sentFrame{Kind: "lb", Buf: append([]byte(nil), buf...)})
	return nil
}

func (f *Fake) SendToController(rackID int, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, sentFrame{Kind: "controller", Rack: rackID, Buf: append([]byte(nil), buf...)})
	return nil
}

func (f *Fake) SendToLocalNode(nodeID int, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, sentFrame{Kind: "local", Node: nodeID, Buf: append([]byte(nil), buf...)})
	return nil
}

func (f *Fake) RunAppThreads(app App) error {
	f.mu.Lock()
	f.app = app
	f.mu.Unlock()
	return nil
}

func (f *Fake) Close() error {
	return nil
}

// Deliver simulates a datagram arriving on worker workerID, driving the app
// registered with RunAppThreads the same way a real worker loop would.
func (f *Fake) Deliver(buf []byte, src string, workerID int) {
	f.mu.Lock()
	app := f.app
	f.mu.Unlock()
	if app != nil {
		app.Receive(buf, src, workerID)
	}
}

// SentToNodeCount reports how many frames were sent to node (rackID, nodeID)
// through SendToNode.
func (f *Fake) SentToNodeCount(rackID, nodeID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.Sent {
		if s.Kind == "node" && s.Rack == rackID && s.Node == nodeID {
			n++
		}
	}
	return n
}

// SentToLBCount reports how many frames were sent to the load balancer.
func (f *Fake) SentToLBCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.Sent {
		if s.Kind == "lb" {
			n++
		}
	}
	return n
}

// SentToControllerCount reports how many frames were sent to the controller.
func (f *Fake) SentToControllerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.Sent {
		if s.Kind == "controller" {
			n++
		}
	}
	return n
}
