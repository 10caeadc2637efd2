package nexus

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wwyf/eRPC/internal/metrics"
	"github.com/wwyf/eRPC/internal/mtlist"
	"github.com/wwyf/eRPC/internal/protocol"
)

const (
	// MaxBgWorkers caps the background worker pool size.
	MaxBgWorkers = 8

	// MaxUDPDropProb caps the simulated datagram loss probability.
	MaxUDPDropProb = 0.95

	// numReqTypes is the size of the dense ops table; request types are
	// uint8 so every value is in range.
	numReqTypes = 256

	// numTIDs is the size of the hook registry; endpoint identities are
	// uint8.
	numTIDs = 256

	// readDeadline bounds how long the session management reader blocks in
	// a single socket read, so it observes the kill switch promptly.
	readDeadline = 200 * time.Millisecond

	// recvBufSize is the scratch buffer for one datagram read.
	recvBufSize = 2048
)

// Config carries the immutable construction parameters of a Nexus.
type Config struct {
	// MgmtUDPPort is the session management listen port. Zero selects an
	// ephemeral port (useful in tests); see LocalAddr.
	MgmtUDPPort int

	// BindAddress is the local address to bind. Empty means all interfaces.
	BindAddress string

	// NumBgWorkers is the background worker pool size, 0..MaxBgWorkers.
	NumBgWorkers int

	// UDPDropProb is the probability that an inbound session management
	// datagram is discarded before routing. Used to exercise the
	// retransmission logic of the layer above. Must be in
	// [0, MaxUDPDropProb].
	UDPDropProb float64

	// RecvBufferSize, if positive, is applied to the socket's kernel
	// receive buffer.
	RecvBufferSize int
}

func (c Config) validate() error {
	if c.MgmtUDPPort < 0 || c.MgmtUDPPort > 65535 {
		return fmt.Errorf("mgmt_udp_port must be between 0 and 65535, got %d", c.MgmtUDPPort)
	}
	if c.NumBgWorkers < 0 || c.NumBgWorkers > MaxBgWorkers {
		return fmt.Errorf("num_bg_workers must be between 0 and %d, got %d", MaxBgWorkers, c.NumBgWorkers)
	}
	if c.UDPDropProb < 0 || c.UDPDropProb > MaxUDPDropProb {
		return fmt.Errorf("udp_drop_prob must be between 0 and %v, got %v", MaxUDPDropProb, c.UDPDropProb)
	}
	return nil
}

// smCounters are the raw channel/worker counters behind Stats. They are
// updated outside nexus_lock on the hot paths.
type smCounters struct {
	smPktsReceived   atomic.Uint64
	smPktsDropped    atomic.Uint64
	smPktsRouted     atomic.Uint64
	smPktsUnroutable atomic.Uint64
	smPktsMalformed  atomic.Uint64

	workItemsProcessed atomic.Uint64
}

// Stats is a point-in-time snapshot of the nexus counters.
type Stats struct {
	SMPacketsReceived   uint64 `json:"sm_packets_received"`
	SMPacketsDropped    uint64 `json:"sm_packets_dropped"`
	SMPacketsRouted     uint64 `json:"sm_packets_routed"`
	SMPacketsUnroutable uint64 `json:"sm_packets_unroutable"`
	SMPacketsMalformed  uint64 `json:"sm_packets_malformed"`
	WorkItemsProcessed  uint64 `json:"work_items_processed"`
	ActiveHooks         int    `json:"active_hooks"`
	NumBgWorkers        int    `json:"num_bg_workers"`
}

// Nexus is the one-per-process coordinator. It owns the session management
// UDP socket, the hook registry, the frozen request handler table, and the
// background worker pool. Endpoint threads call the registration API
// concurrently; the dedicated reader goroutine dispatches inbound control
// packets concurrently with all of them.
type Nexus struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	freqGHz  float64
	hostname string

	conn *net.UDPConn

	// mu is the nexus lock: it guards hooks and opsRegistrationAllowed.
	// The lists inside a hook synchronize independently and are never
	// touched while mu is held.
	mu                     sync.Mutex
	hooks                  [numTIDs]*Hook
	opsRegistrationAllowed bool

	// opsTable is mutable under mu only while opsRegistrationAllowed is
	// true; after the first hook registration it is read-only and workers
	// read it without locking.
	opsTable [numReqTypes]Ops

	workers    []*bgWorkerCtx
	killSwitch atomic.Bool
	wg         sync.WaitGroup
	closeOnce  sync.Once

	counters smCounters
}

// New constructs the per-process Nexus: binds the session management UDP
// socket, measures the local clock calibration frequency, records the
// hostname, and spawns the worker pool plus the session management reader.
// Construction failures are fatal to startup and returned as errors.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) (*Nexus, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("nexus config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		return nil, fmt.Errorf("nexus config: metrics must not be nil")
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve local hostname: %w", err)
	}

	bind := cfg.BindAddress
	if bind == "" {
		bind = "0.0.0.0"
	}
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", bind, cfg.MgmtUDPPort))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session management address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind session management socket: %w", err)
	}

	n := &Nexus{
		cfg:                    cfg,
		logger:                 logger,
		metrics:                m,
		freqGHz:                measureFreqGHz(),
		hostname:               hostname,
		conn:                   conn,
		opsRegistrationAllowed: true,
	}

	if cfg.RecvBufferSize > 0 {
		if err := conn.SetReadBuffer(cfg.RecvBufferSize); err != nil {
			logger.Warn("failed to set session management read buffer",
				slog.Int("recv_buffer_size", cfg.RecvBufferSize),
				slog.String("error", err.Error()),
			)
		}
	}

	for i := 0; i < cfg.NumBgWorkers; i++ {
		n.workers = append(n.workers, &bgWorkerCtx{
			id:      i,
			reqList: mtlist.New[*WorkItem](),
			n:       n,
		})
	}
	for _, w := range n.workers {
		n.wg.Add(1)
		go w.run()
	}

	n.wg.Add(1)
	go n.smLoop()

	logger.Info("nexus started",
		slog.String("sm_addr", conn.LocalAddr().String()),
		slog.Int("num_bg_workers", cfg.NumBgWorkers),
		slog.Float64("udp_drop_prob", cfg.UDPDropProb),
		slog.String("hostname", hostname),
		slog.Float64("freq_ghz", n.freqGHz),
	)

	return n, nil
}

// Close tears the nexus down: raises the kill switch, waits for every
// worker and the session management reader to exit, then closes the
// socket. No worker is mid-dispatch once Close returns. Idempotent.
func (n *Nexus) Close() error {
	n.closeOnce.Do(func() {
		n.logger.Info("nexus shutting down")

		n.killSwitch.Store(true)
		for _, w := range n.workers {
			w.reqList.Close()
		}
		// Closing the socket unblocks a reader stuck inside a read.
		if err := n.conn.Close(); err != nil {
			n.logger.Warn("error closing session management socket",
				slog.String("error", err.Error()))
		}
		n.wg.Wait()

		stats := n.Stats()
		n.logger.Info("nexus stopped",
			slog.Uint64("sm_packets_received", stats.SMPacketsReceived),
			slog.Uint64("sm_packets_dropped", stats.SMPacketsDropped),
			slog.Uint64("sm_packets_routed", stats.SMPacketsRouted),
			slog.Uint64("work_items_processed", stats.WorkItemsProcessed),
		)
	})
	return nil
}

// RegisterOps registers the handler descriptor for a request type. Allowed
// only before any endpoint registers a hook; afterwards the table is frozen
// and RegisterOps fails with ErrRegistrationClosed.
func (n *Nexus) RegisterOps(reqType uint8, ops Ops) error {
	if !ops.registered() {
		return fmt.Errorf("req type %d has nil request function: %w", reqType, ErrInvalidReqType)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.opsRegistrationAllowed {
		return fmt.Errorf("req type %d: %w", reqType, ErrRegistrationClosed)
	}
	n.opsTable[reqType] = ops
	return nil
}

// RegisterHook installs an endpoint hook into its identity slot, populates
// the hook's per-worker submission references, and permanently freezes the
// ops table. Fails with ErrDuplicateID if the slot is occupied.
func (n *Nexus) RegisterHook(hook *Hook) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.hooks[hook.TID] != nil {
		return fmt.Errorf("tid %d: %w", hook.TID, ErrDuplicateID)
	}

	// First registration freezes the ops table; workers read it lock-free
	// from here on.
	n.opsRegistrationAllowed = false

	for i, w := range n.workers {
		hook.bgReqLists[i] = w.reqList
	}
	hook.numWorkers = len(n.workers)
	n.hooks[hook.TID] = hook

	n.metrics.HooksRegistered.Inc()
	n.metrics.ActiveHooks.Inc()
	n.logger.Info("hook registered", slog.Int("tid", int(hook.TID)))
	return nil
}

// UnregisterHook removes a hook from its identity slot. Outstanding work
// items that still reference the hook are not drained here; the endpoint
// must drain its lists before calling. Fails with ErrNotRegistered if the
// hook does not occupy its slot.
func (n *Nexus) UnregisterHook(hook *Hook) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.hooks[hook.TID] != hook {
		return fmt.Errorf("tid %d: %w", hook.TID, ErrNotRegistered)
	}
	n.hooks[hook.TID] = nil

	n.metrics.ActiveHooks.Dec()
	n.logger.Info("hook unregistered", slog.Int("tid", int(hook.TID)))
	return nil
}

// TIDExists reports whether a hook occupies the identity slot. The caller
// must not hold the nexus lock.
func (n *Nexus) TIDExists(tid uint8) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.hooks[tid] != nil
}

// lookupHook returns the hook for tid, or nil.
func (n *Nexus) lookupHook(tid uint8) *Hook {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.hooks[tid]
}

// smLoop is the dedicated session management reader. It replaces the
// signal-driven dispatch of older designs: reads use a short deadline so
// the kill switch is observed between datagrams.
func (n *Nexus) smLoop() {
	defer n.wg.Done()

	buf := make([]byte, recvBufSize)
	for {
		if n.killSwitch.Load() {
			return
		}

		if err := n.conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			if n.killSwitch.Load() {
				return
			}
			n.logger.Error("failed to set read deadline", slog.String("error", err.Error()))
			continue
		}

		nread, remoteAddr, err := n.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if n.killSwitch.Load() {
				return
			}
			n.logger.Error("failed to read session management datagram",
				slog.String("error", err.Error()))
			continue
		}

		// The read buffer is reused; dispatch gets its own copy.
		data := make([]byte, nread)
		copy(data, buf[:nread])
		n.dispatchSMPacket(data, remoteAddr)
	}
}

// dispatchSMPacket routes one received datagram: sample the simulated loss
// first, then parse the destination identity and deliver to the matching
// hook's inbound list. Unroutable and malformed datagrams are counted and
// silently discarded; loss is an expected outcome on this channel.
func (n *Nexus) dispatchSMPacket(data []byte, remoteAddr *net.UDPAddr) {
	n.counters.smPktsReceived.Add(1)
	n.metrics.SMPacketsReceived.Inc()

	if n.cfg.UDPDropProb > 0 && rand.Float64() < n.cfg.UDPDropProb {
		n.counters.smPktsDropped.Add(1)
		n.metrics.SMPacketsDropped.Inc()
		return
	}

	pkt, err := protocol.ParseEnvelope(data)
	if err != nil {
		n.counters.smPktsMalformed.Add(1)
		n.metrics.SMPacketsMalformed.Inc()
		n.logger.Warn("malformed session management datagram",
			slog.String("remote_addr", addrString(remoteAddr)),
			slog.Int("size", len(data)),
			slog.String("error", err.Error()),
		)
		return
	}

	hook := n.lookupHook(pkt.DestTID)
	if hook == nil {
		// The endpoint may have raced through unregistration; the layer
		// above tolerates loss.
		n.counters.smPktsUnroutable.Add(1)
		n.metrics.SMPacketsUnroutable.Inc()
		n.logger.Debug("session management packet for unregistered endpoint",
			slog.Int("dest_tid", int(pkt.DestTID)),
			slog.String("pkt_type", protocol.PktTypeString(pkt.PktType)),
		)
		return
	}

	hook.SMPktList.Push(pkt)
	n.counters.smPktsRouted.Add(1)
	n.metrics.SMPacketsRouted.Inc()
}

// Stats returns a snapshot of the nexus counters.
func (n *Nexus) Stats() Stats {
	n.mu.Lock()
	active := 0
	for _, h := range n.hooks {
		if h != nil {
			active++
		}
	}
	n.mu.Unlock()

	return Stats{
		SMPacketsReceived:   n.counters.smPktsReceived.Load(),
		SMPacketsDropped:    n.counters.smPktsDropped.Load(),
		SMPacketsRouted:     n.counters.smPktsRouted.Load(),
		SMPacketsUnroutable: n.counters.smPktsUnroutable.Load(),
		SMPacketsMalformed:  n.counters.smPktsMalformed.Load(),
		WorkItemsProcessed:  n.counters.workItemsProcessed.Load(),
		ActiveHooks:         active,
		NumBgWorkers:        len(n.workers),
	}
}

// FreqGHz returns the measured calibration counter frequency.
func (n *Nexus) FreqGHz() float64 { return n.freqGHz }

// Hostname returns the local hostname recorded at construction.
func (n *Nexus) Hostname() string { return n.hostname }

// LocalAddr returns the bound session management socket address.
func (n *Nexus) LocalAddr() net.Addr { return n.conn.LocalAddr() }

// NumBgWorkers returns the background worker pool size.
func (n *Nexus) NumBgWorkers() int { return len(n.workers) }

func addrString(addr *net.UDPAddr) string {
	if addr == nil {
		return "unknown"
	}
	return addr.String()
}
