// Package ctrl is the Pegasus-KV controller (spec §4.4): it coordinates a
// cluster-wide reset, aggregates the HK_REPORTs servers send it, and issues
// KEY_MGR to trigger migration for keys that cross the hot-key budget.
//
// Its reset coordinator is grounded on the teacher's health monitor
// (internal/coordinator/health_monitor.go in the torua example this module
// started from): a map of outstanding peers tracked under a mutex and
// drained as replies arrive, bounded by a timeout, rather than the
// original's node-health polling.
package ctrl
