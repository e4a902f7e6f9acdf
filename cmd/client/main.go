// Command client is a minimal Pegasus-KV client: it sends GET/PUT/DEL
// requests to the router and prints the replies. It supports a single op
// from the command line or a pipelined batch read from a script file.
//
// Usage:
//
//	client get <key>
//	client put <key> <value>
//	client del <key>
//
// Required environment:
//   - CLIENT_CONFIG: path to the cluster topology file (spec §6 grammar)
//
// Optional environment:
//   - CLIENT_ID: this client's numeric id (default 1)
//   - CLIENT_BATCH: path to a script of newline-separated "get/put/del ..."
//     commands, sent back-to-back without waiting for each reply
//   - CLIENT_TIMEOUT: how long to wait for outstanding replies (default 2s)
package main

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"slices"

	"github.com/NUS-Systems-Lab/pegasus/internal/cluster"
	"github.com/NUS-Systems-Lab/pegasus/internal/codec"
	"github.com/NUS-Systems-Lab/pegasus/internal/router"
)

var logFatal = log.Fatalf

// pendingReq tracks one in-flight request by the byte-wide hdr_req_id the
// router correlates replies with (see internal/router/dispatch.go), the
// same "find the matching slice entry, then drop it" shape the teacher's
// coordinator uses for its node registry.
type pendingReq struct {
	hdrReqID uint8
	op       codec.OpType
	key      string
	sentAt   time.Time
}

func main() {
	configPath := mustGetenv("CLIENT_CONFIG")
	clientID := uint32(mustAtoi(getenv("CLIENT_ID", "1")))
	timeout := mustParseDuration(getenv("CLIENT_TIMEOUT", "2s"))

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

	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		logFatal("bind local socket: %v", err)
	}
	defer conn.Close()

	lbAddr, err := net.ResolveUDPAddr("udp", topo.LB.UDPAddr())
	if err != nil {
		logFatal("resolve router address: %v", err)
	}

	var ops []codec.OpType
	var keys, values []string

	if batchPath := os.Getenv("CLIENT_BATCH"); batchPath != "" {
		ops, keys, values = readBatch(batchPath)
	} else if len(os.Args) >= 3 {
		op, key, value, err := parseOp(os.Args[1], os.Args[2:])
		if err != nil {
			logFatal("%v", err)
		}
		ops, keys, values = []codec.OpType{op}, []string{key}, []string{value}
	} else {
		logFatal("usage: client get|put|del <key> [value]")
	}

	var pending []pendingReq
	for i, op := range ops {
		hdrReqID := uint8(i)
		buf, err := codec.EncodePegasus(&codec.Message{
			Identifier: codec.IdentPegasus,
			OpType:     op,
			KeyHash:    router.DJB2([]byte(keys[i])) & codec.KeyHashMask,
			HdrReqID:   hdrReqID,
			ClientID:   clientID,
			ReqID:      uint32(i),
			ReqTime:    uint32(time.Now().Unix()),
			PayloadOp:  op,
			Key:        []byte(keys[i]),
			Value:      []byte(values[i]),
		})
		if err != nil {
			logFatal("encode %s %s: %v", op, keys[i], err)
		}
		if _, err := conn.WriteToUDP(buf, lbAddr); err != nil {
			logFatal("send %s %s: %v", op, keys[i], err)
		}
		pending = append(pending, pendingReq{hdrReqID: hdrReqID, op: op, key: keys[i], sentAt: time.Now()})
	}

	deadline := time.Now().Add(timeout)
	readBuf := make([]byte, 2048)
	for len(pending) > 0 && time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		n, _, err := conn.ReadFromUDP(readBuf)
		if err != nil {
			break
		}
		msg, err := codec.DecodePegasus(readBuf[:n])
		if err != nil {
			log.Printf("client: undecodable reply: %v", err)
			continue
		}
		idx := slices.IndexFunc(pending, func(p pendingReq) bool { return p.hdrReqID == msg.HdrReqID })
		if idx < 0 {
			continue
		}
		req := pending[idx]
		pending = append(pending[:idx], pending[idx+1:]...)
		printReply(req, msg)
	}
	for _, req := range pending {
		fmt.Printf("%s %s: no reply within %s\n", req.op, req.key, timeout)
	}
}

func printReply(req pendingReq, msg *codec.Message) {
	switch msg.Result {
	case codec.ResultOK:
		fmt.Printf("%s %s: OK value=%q\n", req.op, req.key, msg.Value)
	case codec.ResultNotFound:
		fmt.Printf("%s %s: NOT_FOUND\n", req.op, req.key)
	default:
		fmt.Printf("%s %s: result=%d value=%q\n", req.op, req.key, msg.Result, msg.Value)
	}
}

func parseOp(opName string, args []string) (codec.OpType, string, string, error) {
	switch strings.ToLower(opName) {
	case "get":
		if len(args) < 1 {
			return 0, "", "", fmt.Errorf("get requires a key")
		}
		return codec.OpGet, args[0], "", nil
	case "put":
		if len(args) < 2 {
			return 0, "", "", fmt.Errorf("put requires a key and a value")
		}
		return codec.OpPut, args[0], args[1], nil
	case "del":
		if len(args) < 1 {
			return 0, "", "", fmt.Errorf("del requires a key")
		}
		return codec.OpDel, args[0], "", nil
	default:
		return 0, "", "", fmt.Errorf("unknown op %q", opName)
	}
}

func readBatch(path string) (ops []codec.OpType, keys, values []string) {
	f, err := os.Open(path)
	if err != nil {
		logFatal("open batch %s: %v", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		op, key, value, err := parseOp(fields[0], fields[1:])
		if err != nil {
			logFatal("batch %s: %v", path, err)
		}
		ops = append(ops, op)
		keys = append(keys, key)
		values = append(values, value)
	}
	return ops, keys, values
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
