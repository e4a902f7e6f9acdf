// Command controller runs the Pegasus-KV controller core: it aggregates
// per-server hot-key reports and issues KEY_MGR to drive migration, and it
// can broadcast a cluster-wide reset on demand.
//
// Required environment:
//   - CONTROLLER_CONFIG: path to the cluster topology file (spec §6 grammar)
//   - CONTROLLER_NUM_RKEYS: hot-key migration budget per aggregation window
//
// Optional environment:
//   - CONTROLLER_WORKERS: transport worker goroutines (default 2)
//   - CONTROLLER_AGGREGATION_WINDOW: e.g. "1s" (default 1s)
//   - CONTROLLER_RESET_TIMEOUT: e.g. "5s" (default 5s)
//   - CONTROLLER_RESET_ON_START: if "1", broadcasts a cluster reset before
//     entering the aggregation loop — the operator action spec §4.4 lists
//     as "Reset", run once at startup instead of from a separate tool.
package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/NUS-Systems-Lab/pegasus/internal/cluster"
	"github.com/NUS-Systems-Lab/pegasus/internal/ctrl"
	"github.com/NUS-Systems-Lab/pegasus/internal/transport"
)

var logFatal = log.Fatalf

func main() {
	configPath := mustGetenv("CONTROLLER_CONFIG")
	numRKeys := mustAtoi(mustGetenv("CONTROLLER_NUM_RKEYS"))
	numWorkers := mustAtoi(getenv("CONTROLLER_WORKERS", "2"))
	aggWindow := mustParseDuration(getenv("CONTROLLER_AGGREGATION_WINDOW", "1s"))
	resetTimeout := mustParseDuration(getenv("CONTROLLER_RESET_TIMEOUT", "5s"))

	f, err := os.Open(configPath)
	if err != nil {
		logFatal("open %s: %v", configPath, err)
	}
	topo, err := cluster.ParseConfig(f, false)
	f.Close()
	if err != nil {
		logFatal("parse config: %v", err)
	}
	if topo.Controller == nil {
		logFatal("config %s has no controller line", configPath)
	}

	tr, err := transport.NewUDP(topo.Controller.UDPAddr(), topo, -1, numWorkers)
	if err != nil {
		logFatal("bind transport: %v", err)
	}
	defer tr.Close()

	c := ctrl.New(ctrl.Config{
		Topo:              topo,
		NumRKeys:          numRKeys,
		AggregationWindow: aggWindow,
		ResetTimeout:      resetTimeout,
	})
	c.SetTransport(tr)

	go func() {
		log.Printf("controller listening on %s", tr.LocalAddr())
		if err := tr.RunAppThreads(c); err != nil {
			logFatal("transport: %v", err)
		}
	}()

	if getenv("CONTROLLER_RESET_ON_START", "0") == "1" {
		log.Println("controller: broadcasting startup reset")
		if err := c.Reset(topo.NumNodesPerRack(), numRKeys); err != nil {
			log.Printf("controller: startup reset: %v", err)
		}
	}

	go c.Run()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	c.Stop()
	log.Println("controller stopped")
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

func mustParseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		logFatal("invalid duration %q: %v", s, err)
	}
	return d
}
