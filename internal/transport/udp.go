package transport

import (
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/NUS-Systems-Lab/pegasus/internal/cluster"
)

// UDPTransport is the concrete Transport backed by a single UDP socket
// shared across worker goroutines. net.UDPConn's methods are safe for
// concurrent use by multiple goroutines (see the net package docs), so
// n_transport_threads workers can all block in ReadFromUDP on the same
// socket without any additional locking on the read path (spec §6:
// "Parallel OS threads... each worker invokes the application
// synchronously").
type UDPTransport struct {
	conn *net.UDPConn
	topo *cluster.Topology

	// rackID is this process's own rack, used to resolve SendToLocalNode
	// and SendToController's rack-relative addressing. Router and
	// controller processes, which have no single "local rack", pass -1.
	rackID int

	numWorkers int

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// NewUDP binds a UDP socket on listenAddr and returns a Transport that
// resolves peer addresses from topo.
func NewUDP(listenAddr string, topo *cluster.Topology, rackID, numWorkers int) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", listenAddr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", listenAddr, err)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &UDPTransport{
		conn:       conn,
		topo:       topo,
		rackID:     rackID,
		numWorkers: numWorkers,
		closed:     make(chan struct{}),
	}, nil
}

// LocalAddr returns the socket's bound address, mainly for logging at
// startup.
func (t *UDPTransport) LocalAddr() string {
	return t.conn.LocalAddr().String()
}

func (t *UDPTransport) SendTo(addr string, buf []byte) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("transport: resolve %s: %w", addr, err)
	}
	_, err = t.conn.WriteToUDP(buf, udpAddr)
	return err
}

func (t *UDPTransport) SendToNode(rackID, nodeID int, buf []byte) error {
	addr, err := t.topo.Node(rackID, nodeID)
	if err != nil {
		return err
	}
	return t.SendTo(addr.UDPAddr(), buf)
}

func (t *UDPTransport) SendToLB(buf []byte) error {
	if t.topo.LB == nil {
		return fmt.Errorf("transport: topology has no load balancer configured")
	}
	return t.SendTo(t.topo.LB.UDPAddr(), buf)
}

func (t *UDPTransport) SendToController(rackID int, buf []byte) error {
	if t.topo.Controller == nil {
		return fmt.Errorf("transport: topology has no controller configured")
	}
	return t.SendTo(t.topo.Controller.UDPAddr(), buf)
}

func (t *UDPTransport) SendToLocalNode(nodeID int, buf []byte) error {
	if t.rackID < 0 {
		return fmt.Errorf("transport: process has no local rack context")
	}
	return t.SendToNode(t.rackID, nodeID, buf)
}

// RunAppThreads starts numWorkers goroutines, each blocking in ReadFromUDP
// and delivering datagrams to app.Receive synchronously on the reading
// goroutine (spec §6). It blocks until Close is called.
func (t *UDPTransport) RunAppThreads(app App) error {
	for w := 0; w < t.numWorkers; w++ {
		t.wg.Add(1)
		go t.workerLoop(w, app)
	}
	t.wg.Wait()
	return nil
}

func (t *UDPTransport) workerLoop(workerID int, app App) {
	defer t.wg.Done()
	buf := make([]byte, MaxDatagramSize)
	for {
		n, src, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.closed:
				return
			default:
				log.Printf("transport: worker %d read error: %v", workerID, err)
				continue
			}
		}
		// app.Receive must not retain frame past the call; copy before any
		// asynchronous handling.
		frame := make([]byte, n)
		copy(frame, buf[:n])
		app.Receive(frame, src.String(), workerID)
	}
}

// Close stops every worker thread and releases the socket.
func (t *UDPTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.conn.Close()
	})
	t.wg.Wait()
	return err
}
