// Command router runs the Pegasus-KV load balancer: it receives client KV
// requests and server replies on one UDP socket, routes each request to a
// node in the correct rack picked by the hash-plus-load-bound probe, and
// relays replies back to the
// client that sent the original request.
//
// Required environment:
//   - ROUTER_CONFIG: path to the cluster topology file (spec §6 grammar)
//
// Optional environment:
//   - ROUTER_WORKERS: transport worker goroutines (default 4)
//   - ROUTER_LOAD_CONSTANT: load_constant from spec §6 (default 1.0)
package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/NUS-Systems-Lab/pegasus/internal/cluster"
	"github.com/NUS-Systems-Lab/pegasus/internal/router"
	"github.com/NUS-Systems-Lab/pegasus/internal/transport"
)

var logFatal = log.Fatalf

func main() {
	configPath := mustGetenv("ROUTER_CONFIG")
	numWorkers := mustAtoi(getenv("ROUTER_WORKERS", "4"))
	loadConstant := mustParseFloat(getenv("ROUTER_LOAD_CONSTANT", "1.0"))

	f, err := os.Open(configPath)
	if err != nil {
		logFatal("open %s: %v", configPath, err)
	}
	topo, err := cluster.ParseConfig(f, true)
	f.Close()
	if err != nil {
		logFatal("parse config: %v", err)
	}
	if topo.LB == nil {
		logFatal("config %s has no lb line", configPath)
	}

	tr, err := transport.NewUDP(topo.LB.UDPAddr(), topo, -1, numWorkers)
	if err != nil {
		logFatal("bind transport: %v", err)
	}
	defer tr.Close()

	lb := router.NewLoadBalancer(topo, loadConstant)
	lb.SetTransport(tr)

	go func() {
		log.Printf("router listening on %s", tr.LocalAddr())
		if err := tr.RunAppThreads(lb); err != nil {
			logFatal("transport: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("router stopped")
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

func mustParseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		logFatal("invalid float %q: %v", s, err)
	}
	return v
}
