// Command server runs one Pegasus-KV backend node: it binds a UDP socket,
// loads the cluster topology, and serves GET/PUT/DEL (and chain-forwarded
// PUTFWD/MGR_REQ) traffic for its (rack, node) slot until it receives a
// termination signal.
//
// Required environment:
//   - SERVER_CONFIG: path to the cluster topology file (spec §6 grammar)
//   - SERVER_RACK_ID: this node's rack index
//   - SERVER_NODE_ID: this node's index within its rack
//
// Optional environment:
//   - SERVER_WORKERS: transport worker goroutines (default 4)
//   - SERVER_PROC_LATENCY: artificial per-request delay, e.g. "500us"
package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/NUS-Systems-Lab/pegasus/internal/cluster"
	"github.com/NUS-Systems-Lab/pegasus/internal/serverapp"
	"github.com/NUS-Systems-Lab/pegasus/internal/transport"
)

var logFatal = log.Fatalf

func main() {
	configPath := mustGetenv("SERVER_CONFIG")
	rackID := mustAtoi(mustGetenv("SERVER_RACK_ID"))
	nodeID := mustAtoi(mustGetenv("SERVER_NODE_ID"))
	numWorkers := mustAtoi(getenv("SERVER_WORKERS", "4"))

	var procLatency time.Duration
	if v := os.Getenv("SERVER_PROC_LATENCY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			logFatal("invalid SERVER_PROC_LATENCY %q: %v", v, err)
		}
		procLatency = d
	}

	f, err := os.Open(configPath)
	if err != nil {
		logFatal("open %s: %v", configPath, err)
	}
	topo, err := cluster.ParseConfig(f, false)
	f.Close()
	if err != nil {
		logFatal("parse config: %v", err)
	}

	addr, err := topo.Node(rackID, nodeID)
	if err != nil {
		logFatal("resolve (%d,%d): %v", rackID, nodeID, err)
	}

	tr, err := transport.NewUDP(addr.UDPAddr(), topo, rackID, numWorkers)
	if err != nil {
		logFatal("bind transport: %v", err)
	}
	defer tr.Close()

	srv := serverapp.New(serverapp.Config{
		RackID:      rackID,
		NodeID:      nodeID,
		Topo:        topo,
		NumWorkers:  numWorkers,
		ProcLatency: procLatency,
	}, tr)

	go srv.Run()

	go func() {
		log.Printf("server[%d,%d] listening on %s", rackID, nodeID, tr.LocalAddr())
		if err := tr.RunAppThreads(srv); err != nil {
			logFatal("transport: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	srv.Stop()
	log.Printf("server[%d,%d] stopped", rackID, nodeID)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustGetenv(k string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	logFatal("missing env %s", k)
	return ""
}

func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		logFatal("invalid integer %q: %v", s, err)
	}
	return n
}
