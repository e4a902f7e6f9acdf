package cluster

import "fmt"

// NodeAddress identifies one addressable endpoint in the deployment — a
// server, the LB, or the controller (spec §3: "{mac, ipv4, udp_port,
// dev_port, blacklist}"). It is immutable after config load; nothing in
// this module mutates a NodeAddress once Topology has parsed it.
type NodeAddress struct {
	MAC       [6]byte
	IPv4      uint32
	UDPPort   uint16
	DevPort   uint16
	Blacklist []string
}

// String renders the address as dotted-quad:port for logging.
func (a NodeAddress) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d",
		byte(a.IPv4>>24), byte(a.IPv4>>16), byte(a.IPv4>>8), byte(a.IPv4),
		a.UDPPort)
}

// UDPAddr renders the address in the form net.ResolveUDPAddr expects.
func (a NodeAddress) UDPAddr() string {
	return a.String()
}

// Rack is an ordered sequence of server nodes (spec §3: "Rack topology.
// Ordered sequence of racks; each rack is an ordered sequence of nodes").
type Rack struct {
	Nodes []NodeAddress
}

// Topology is the full, parsed deployment description: the ordered racks of
// servers plus the client endpoints and the singleton LB/controller
// endpoints. A
// (RackID, NodeID) pair — both zero-based indices into Racks and
// Racks[RackID].Nodes respectively — uniquely identifies a server, per
// spec §3.
type Topology struct {
	Racks      []Rack
	Clients    []NodeAddress
	LB         *NodeAddress
	Controller *NodeAddress
}

// NumRacks returns the number of racks in the topology.
func (t *Topology) NumRacks() int {
	return len(t.Racks)
}

// NumNodesPerRack returns the node count of the first rack. Config
// validation (see config.go) guarantees every rack has the same size, so
// this is the node count for every rack.
func (t *Topology) NumNodesPerRack() int {
	if len(t.Racks) == 0 {
		return 0
	}
	return len(t.Racks[0].Nodes)
}

// Node returns the address of server (rackID, nodeID), or an error if
// either index is out of range.
func (t *Topology) Node(rackID, nodeID int) (NodeAddress, error) {
	if rackID < 0 || rackID >= len(t.Racks) {
		return NodeAddress{}, fmt.Errorf("cluster: rack %d out of range [0,%d)", rackID, len(t.Racks))
	}
	rack := t.Racks[rackID]
	if nodeID < 0 || nodeID >= len(rack.Nodes) {
		return NodeAddress{}, fmt.Errorf("cluster: node %d out of range [0,%d) in rack %d", nodeID, len(rack.Nodes), rackID)
	}
	return rack.Nodes[nodeID], nil
}

// IsTailRack reports whether rackID is the last rack in the chain — the
// only rack whose servers answer clients directly (spec §4.3, glossary
// "Chain replication").
func (t *Topology) IsTailRack(rackID int) bool {
	return rackID == len(t.Racks)-1
}

// FindNode reverse-looks-up a server by its address string, used by the
// controller to recover which (rackID, nodeID) a datagram came from given
// only its source address.
func (t *Topology) FindNode(addr string) (rackID, nodeID int, ok bool) {
	for ri, rack := range t.Racks {
		for ni, n := range rack.Nodes {
			if n.UDPAddr() == addr {
				return ri, ni, true
			}
		}
	}
	return 0, 0, false
}
