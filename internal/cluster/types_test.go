package cluster

import (
	"strings"
	"testing"
)

const sampleConfig = `
# two racks, two nodes each
rack
node aa:bb:cc:dd:ee:01|10.0.0.1|12345|0
node aa:bb:cc:dd:ee:02|10.0.0.2|12345|0
rack
node aa:bb:cc:dd:ee:03|10.0.0.3|12345|0
node aa:bb:cc:dd:ee:04|10.0.0.4|12345|0
client aa:bb:cc:dd:ee:05|10.0.0.5|9000|0
lb aa:bb:cc:dd:ee:06|10.0.0.6|12345|0
controller aa:bb:cc:dd:ee:07|10.0.0.7|13000|0
`

func TestParseConfigBasic(t *testing.T) {
	topo, err := ParseConfig(strings.NewReader(sampleConfig), true)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	if topo.NumRacks() != 2 {
		t.Fatalf("expected 2 racks, got %d", topo.NumRacks())
	}
	if topo.NumNodesPerRack() != 2 {
		t.Fatalf("expected 2 nodes per rack, got %d", topo.NumNodesPerRack())
	}
	if topo.Controller == nil {
		t.Fatalf("expected a controller entry")
	}
	if topo.LB == nil {
		t.Fatalf("expected an lb entry")
	}
	if len(topo.Clients) != 1 {
		t.Fatalf("expected 1 client, got %d", len(topo.Clients))
	}

	addr, err := topo.Node(1, 0)
	if err != nil {
		t.Fatalf("Node(1,0): %v", err)
	}
	if addr.UDPPort != 12345 {
		t.Fatalf("expected udp port 12345, got %d", addr.UDPPort)
	}
	if addr.String() != "10.0.0.3:12345" {
		t.Fatalf("unexpected address string: %s", addr.String())
	}
}

func TestParseConfigLBOptional(t *testing.T) {
	cfg := `
rack
node aa:bb:cc:dd:ee:01|10.0.0.1|12345|0
controller aa:bb:cc:dd:ee:07|10.0.0.7|13000|0
`
	if _, err := ParseConfig(strings.NewReader(cfg), false); err != nil {
		t.Fatalf("expected config without lb to be valid when lb not required: %v", err)
	}
	if _, err := ParseConfig(strings.NewReader(cfg), true); err == nil {
		t.Fatalf("expected config without lb to be rejected when lb required")
	}
}

func TestParseConfigRejectsUnevenRacks(t *testing.T) {
	cfg := `
rack
node aa:bb:cc:dd:ee:01|10.0.0.1|12345|0
node aa:bb:cc:dd:ee:02|10.0.0.2|12345|0
rack
node aa:bb:cc:dd:ee:03|10.0.0.3|12345|0
controller aa:bb:cc:dd:ee:07|10.0.0.7|13000|0
`
	if _, err := ParseConfig(strings.NewReader(cfg), false); err == nil {
		t.Fatalf("expected uneven rack sizes to be rejected")
	}
}

func TestParseConfigRejectsMissingController(t *testing.T) {
	cfg := `
rack
node aa:bb:cc:dd:ee:01|10.0.0.1|12345|0
`
	if _, err := ParseConfig(strings.NewReader(cfg), false); err == nil {
		t.Fatalf("expected missing controller to be rejected")
	}
}

func TestParseConfigRejectsNoRacks(t *testing.T) {
	cfg := `controller aa:bb:cc:dd:ee:07|10.0.0.7|13000|0`
	if _, err := ParseConfig(strings.NewReader(cfg), false); err == nil {
		t.Fatalf("expected config with no racks to be rejected")
	}
}

func TestParseConfigBlacklist(t *testing.T) {
	cfg := `
rack
node aa:bb:cc:dd:ee:01|10.0.0.1|12345|0|badpeer1|badpeer2
controller aa:bb:cc:dd:ee:07|10.0.0.7|13000|0
`
	topo, err := ParseConfig(strings.NewReader(cfg), false)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	node, _ := topo.Node(0, 0)
	if len(node.Blacklist) != 2 || node.Blacklist[0] != "badpeer1" {
		t.Fatalf("expected blacklist to be parsed, got %v", node.Blacklist)
	}
}

func TestIsTailRack(t *testing.T) {
	topo, err := ParseConfig(strings.NewReader(sampleConfig), false)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if topo.IsTailRack(0) {
		t.Fatalf("rack 0 should not be the tail of a 2-rack topology")
	}
	if !topo.IsTailRack(1) {
		t.Fatalf("rack 1 should be the tail of a 2-rack topology")
	}
}
