// Package mtlist provides the generic thread-safe FIFO list used for all
// cross-thread handoffs in the nexus. It replaces the per-use concurrent
// list variants with one type parameterized by element type.
package mtlist
