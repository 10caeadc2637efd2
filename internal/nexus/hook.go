package nexus

import (
	"fmt"

	"github.com/wwyf/eRPC/internal/mtlist"
	"github.com/wwyf/eRPC/internal/protocol"
)

// Session is an opaque handle to a data-plane session. Its internals belong
// to the Rpc layer; the nexus only carries the reference through work items.
type Session struct {
	SessionNum uint16
}

// SSlot is an opaque handle to one slot within a session, holding the
// request/response state for a single in-flight RPC.
type SSlot struct {
	Index   int
	ReqType uint8
	Req     []byte
	Resp    []byte
}

// WorkItem references one background task: the submitting endpoint's
// identity plus the session/slot pair holding the request. A work item is
// handed to exactly one worker queue, consumed exactly once, and the same
// value doubles as the completion pushed back to the submitter.
type WorkItem struct {
	TID     uint8
	Session *Session
	Slot    *SSlot
}

// ReqFunc processes one background request. It runs on a background worker
// goroutine and must fill in the slot's response before returning.
type ReqFunc func(slot *SSlot)

// Ops is the handler descriptor registered for one request type.
type Ops struct {
	ReqFunc ReqFunc

	// RunInBg requests that the endpoint route matching requests to the
	// background pool instead of its own event loop.
	RunInBg bool
}

// registered reports whether this descriptor was ever filled in. The ops
// table is a dense array, so empty slots are the zero Ops.
func (o Ops) registered() bool {
	return o.ReqFunc != nil
}

// Hook is the per-endpoint record shared between an Rpc endpoint and the
// nexus. The endpoint creates it, registers it, and then polls the two
// inbound lists from its own event loop. The per-worker submission
// references are populated by the nexus at registration time.
type Hook struct {
	// TID is the endpoint identity, unique within the process.
	TID uint8

	// SMPktList receives session management packets addressed to this
	// endpoint, in arrival order.
	SMPktList *mtlist.List[*protocol.SMPkt]

	// BgRespList receives completed background work items.
	BgRespList *mtlist.List[*WorkItem]

	// bgReqLists[i] is worker i's submission queue. Valid for the first
	// numWorkers entries once the hook is registered.
	bgReqLists [MaxBgWorkers]*mtlist.List[*WorkItem]
	numWorkers int
}

// NewHook creates an unregistered hook for the given endpoint identity.
func NewHook(tid uint8) *Hook {
	return &Hook{
		TID:        tid,
		SMPktList:  mtlist.New[*protocol.SMPkt](),
		BgRespList: mtlist.New[*WorkItem](),
	}
}

// SubmitBgWork pushes a work item onto the chosen worker's queue. The hook
// must be registered first; worker indices outside the live pool are
// rejected with ErrInvalidWorker.
func (h *Hook) SubmitBgWork(worker int, item *WorkItem) error {
	if worker < 0 || worker >= h.numWorkers {
		return fmt.Errorf("worker %d (pool size %d): %w", worker, h.numWorkers, ErrInvalidWorker)
	}
	h.bgReqLists[worker].Push(item)
	return nil
}

// PollBgResp returns the next completed work item, if any. Non-blocking;
// the endpoint's event loop polls this.
func (h *Hook) PollBgResp() (*WorkItem, bool) {
	return h.BgRespList.TryPop()
}

// PollSMPkt returns the next inbound session management packet, if any.
func (h *Hook) PollSMPkt() (*protocol.SMPkt, bool) {
	return h.SMPktList.TryPop()
}

// NumWorkers returns the size of the background pool this hook can submit
// to. Zero until the hook is registered.
func (h *Hook) NumWorkers() int {
	return h.numWorkers
}
