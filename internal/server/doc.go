// Package server implements the operational HTTP surface of the nexus
// daemon: liveness, counter snapshots, and Prometheus metrics exposition.
package server
