package cluster

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseConfig reads the line-oriented topology grammar from spec §6:
//
//	rack
//	node   <mac>|<ip>|<port>|<dev_port>[|<blacklist>…]
//	node   …
//	rack
//	node   …
//	client <mac>|<ip>|<port>|<dev_port>[|…]
//	lb     <mac>|<ip>|<port>|<dev_port>[|…]
//	controller <mac>|<ip>|<port>|<dev_port>[|…]
//
// A bare "rack" token starts a new rack; subsequent "node" lines are
// appended to it. Lines starting with '#' and blank lines are ignored.
// Fields on a node/client/lb/controller line are pipe-separated; anything
// past the fourth field is the blacklist.
//
// ParseConfig enforces the invariants spec §3/§6 requires: at least one
// rack with at least one node, every rack the same size, and exactly one
// controller. lbRequired controls whether a missing "lb" line is an error
// (spec §6: "lb is required iff endhost-LB mode is enabled").
func ParseConfig(r io.Reader, lbRequired bool) (*Topology, error) {
	topo := &Topology{}
	var current *Rack

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		token := fields[0]

		switch token {
		case "rack":
			topo.Racks = append(topo.Racks, Rack{})
			current = &topo.Racks[len(topo.Racks)-1]

		case "node":
			if current == nil {
				return nil, fmt.Errorf("cluster: config line %d: node outside any rack", lineNo)
			}
			addr, err := parseNodeAddress(fields, lineNo)
			if err != nil {
				return nil, err
			}
			current.Nodes = append(current.Nodes, addr)

		case "client":
			addr, err := parseNodeAddress(fields, lineNo)
			if err != nil {
				return nil, err
			}
			topo.Clients = append(topo.Clients, addr)

		case "lb":
			addr, err := parseNodeAddress(fields, lineNo)
			if err != nil {
				return nil, err
			}
			topo.LB = &addr

		case "controller":
			if topo.Controller != nil {
				return nil, fmt.Errorf("cluster: config line %d: duplicate controller entry", lineNo)
			}
			addr, err := parseNodeAddress(fields, lineNo)
			if err != nil {
				return nil, err
			}
			topo.Controller = &addr

		default:
			return nil, fmt.Errorf("cluster: config line %d: unknown token %q", lineNo, token)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cluster: reading config: %w", err)
	}

	if err := validateTopology(topo, lbRequired); err != nil {
		return nil, err
	}
	return topo, nil
}

func validateTopology(topo *Topology, lbRequired bool) error {
	if len(topo.Racks) == 0 {
		return fmt.Errorf("cluster: config must declare at least one rack")
	}
	size := len(topo.Racks[0].Nodes)
	if size == 0 {
		return fmt.Errorf("cluster: rack 0 has no nodes")
	}
	for i, rack := range topo.Racks {
		if len(rack.Nodes) == 0 {
			return fmt.Errorf("cluster: rack %d has no nodes", i)
		}
		if len(rack.Nodes) != size {
			return fmt.Errorf("cluster: rack %d has %d nodes, expected %d (all racks must be the same size)", i, len(rack.Nodes), size)
		}
	}
	if topo.Controller == nil {
		return fmt.Errorf("cluster: config must declare exactly one controller entry")
	}
	if lbRequired && topo.LB == nil {
		return fmt.Errorf("cluster: config must declare an lb entry when endhost-LB mode is enabled")
	}
	return nil
}

// parseNodeAddress parses the `<token> <mac>|<ip>|<port>|<dev_port>[|blacklist…]`
// shape shared by node/client/lb/controller lines.
func parseNodeAddress(fields []string, lineNo int) (NodeAddress, error) {
	if len(fields) < 2 {
		return NodeAddress{}, fmt.Errorf("cluster: config line %d: missing address fields", lineNo)
	}
	parts := strings.Split(fields[1], "|")
	if len(parts) < 4 {
		return NodeAddress{}, fmt.Errorf("cluster: config line %d: expected mac|ip|port|dev_port, got %q", lineNo, fields[1])
	}

	mac, err := parseMAC(parts[0])
	if err != nil {
		return NodeAddress{}, fmt.Errorf("cluster: config line %d: %w", lineNo, err)
	}
	ip, err := parseIPv4(parts[1])
	if err != nil {
		return NodeAddress{}, fmt.Errorf("cluster: config line %d: %w", lineNo, err)
	}
	port, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return NodeAddress{}, fmt.Errorf("cluster: config line %d: bad udp port %q: %w", lineNo, parts[2], err)
	}
	devPort, err := strconv.ParseUint(parts[3], 10, 16)
	if err != nil {
		return NodeAddress{}, fmt.Errorf("cluster: config line %d: bad dev port %q: %w", lineNo, parts[3], err)
	}

	addr := NodeAddress{
		MAC:     mac,
		IPv4:    ip,
		UDPPort: uint16(port),
		DevPort: uint16(devPort),
	}
	if len(parts) > 4 {
		addr.Blacklist = append([]string(nil), parts[4:]...)
	}
	return addr, nil
}

func parseMAC(s string) ([6]byte, error) {
	var mac [6]byte
	octets := strings.Split(s, ":")
	if len(octets) != 6 {
		return mac, fmt.Errorf("bad mac %q: expected 6 colon-separated octets", s)
	}
	for i, o := range octets {
		v, err := strconv.ParseUint(o, 16, 8)
		if err != nil {
			return mac, fmt.Errorf("bad mac %q: %w", s, err)
		}
		mac[i] = byte(v)
	}
	return mac, nil
}

func parseIPv4(s string) (uint32, error) {
	octets := strings.Split(s, ".")
	if len(octets) != 4 {
		return 0, fmt.Errorf("bad ipv4 %q: expected 4 dot-separated octets", s)
	}
	var ip uint32
	for _, o := range octets {
		v, err := strconv.ParseUint(o, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("bad ipv4 %q: %w", s, err)
		}
		ip = ip<<8 | uint32(v)
	}
	return ip, nil
}
