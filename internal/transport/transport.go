package transport

// App is the upcall target every transport worker invokes synchronously as
// datagrams arrive (spec §6, "receive(bytes, src_addr, worker_id)"). buf is
// owned by the caller; implementations must copy anything they need to keep
// past the call.
type App interface {
	Receive(buf []byte, src string, workerID int)
}

// Transport is the datagram send/receive contract spec §6 assumes as an
// external collaborator. internal/serverapp, internal/router, and
// internal/ctrl all depend on this interface rather than net.UDPConn
// directly, so tests can substitute an in-memory fake.
type Transport interface {
	// SendTo sends buf to an arbitrary address string (host:port).
	SendTo(addr string, buf []byte) error

	// SendToNode sends buf to server (rackID, nodeID) in the topology.
	SendToNode(rackID, nodeID int, buf []byte) error

	// SendToLB sends buf to the rack's load balancer.
	SendToLB(buf []byte) error

	// SendToController sends buf to the controller. rackID is accepted to
	// match the spec's contract shape even though a deployment has exactly
	// one controller; it is otherwise unused.
	SendToController(rackID int, buf []byte) error

	// SendToLocalNode sends buf to another server within this process's own
	// rack, identified by nodeID.
	SendToLocalNode(nodeID int, buf []byte) error

	// RunAppThreads starts numWorkers threads polling the socket and
	// delivering datagrams to app.Receive. It blocks until the transport is
	// closed.
	RunAppThreads(app App) error

	// Close stops all worker threads and releases the socket.
	Close() error
}

// MaxDatagramSize bounds a single frame's payload, comfortably under the
// common 1500-byte Ethernet MTU once IP/UDP headers are subtracted (spec
// §6: "maximum size is the transport's MTU-derived payload limit").
const MaxDatagramSize = 1400
