// Package nexus implements the per-process coordinator for the RPC runtime.
// The Nexus owns the session management UDP channel, the registry of
// per-endpoint hooks, the frozen table of request handlers, and the pool of
// background worker goroutines that execute handlers on behalf of endpoints.
package nexus
