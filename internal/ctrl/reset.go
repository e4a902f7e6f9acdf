package ctrl

import (
	"fmt"
	"log"
	"time"

	"github.com/NUS-Systems-Lab/pegasus/internal/codec"
)

// Reset implements spec §4.4's "Reset": broadcast RESET_REQ to every
// server, wait for all of them to RESET_REPLY (bounded by
// cfg.ResetTimeout), then fan out the same opcode to the router/LB so it
// zeros its load tables too (spec §9, "TYPE_RESET dual use" — reconciled
// here by having both servers and the LB speak the controller codec's
// CtrlResetReq instead of the router's own separate fast-path opcode).
func (c *Controller) Reset(numNodes, numRKeys int) error {
	pending := make(map[string]bool)
	for _, rack := range c.cfg.Topo.Racks {
		for _, n := range rack.Nodes {
			pending[n.UDPAddr()] = true
		}
	}

	c.resetMu.Lock()
	c.resetPending = pending
	c.resetDone = make(chan struct{})
	c.resetMu.Unlock()

	req := &codec.ControllerMessage{
		Type:     codec.CtrlResetReq,
		NumNodes: uint16(numNodes),
		NumRKeys: uint16(numRKeys),
	}
	buf, err := codec.EncodeController(req)
	if err != nil {
		return fmt.Errorf("ctrl: encode RESET_REQ: %w", err)
	}

	for rackID, rack := range c.cfg.Topo.Racks {
		for nodeID := range rack.Nodes {
			if err := c.tr.SendToNode(rackID, nodeID, buf); err != nil {
				log.Printf("ctrl: RESET_REQ to (%d,%d): %v", rackID, nodeID, err)
			}
		}
	}

	select {
	case <-c.resetDoneChan():
	case <-time.After(c.cfg.ResetTimeout):
		c.resetMu.Lock()
		remaining := len(c.resetPending)
		c.resetMu.Unlock()
		log.Printf("ctrl: reset timed out with %d server(s) unacknowledged", remaining)
	}

	if err := c.tr.SendToLB(buf); err != nil {
		log.Printf("ctrl: fan out reset to router: %v", err)
	}
	return nil
}

func (c *Controller) resetDoneChan() <-chan struct{} {
	c.resetMu.Lock()
	defer c.resetMu.Unlock()
	return c.resetDone
}

func (c *Controller) recordResetReply(src string) {
	c.resetMu.Lock()
	defer c.resetMu.Unlock()
	if c.resetPending == nil {
		return
	}
	delete(c.resetPending, src)
	if len(c.resetPending) == 0 && c.resetDone != nil {
		select {
		case <-c.resetDone:
			// already closed
		default:
			close(c.resetDone)
		}
	}
}
