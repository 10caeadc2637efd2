package nexus

import (
	"log/slog"
	"time"

	"github.com/wwyf/eRPC/internal/mtlist"
)

// bgWorkerCtx is the per-worker state: the worker identity, its dedicated
// request queue, and a reference back to the nexus for the shared hook
// registry so completions can be routed to the submitting endpoint.
type bgWorkerCtx struct {
	id      int
	reqList *mtlist.List[*WorkItem]
	n       *Nexus
}

// run pulls work items off this worker's queue, dispatches them to the
// registered handler, and routes completions back to the submitter's
// response list. The loop exits when the kill switch closes the queue;
// items still queued at that point are abandoned, but an item already
// dequeued always runs to completion.
func (ctx *bgWorkerCtx) run() {
	n := ctx.n
	defer n.wg.Done()

	n.logger.Debug("background worker started", slog.Int("worker_id", ctx.id))

	for {
		item, ok := ctx.reqList.PopWait()
		if !ok {
			n.logger.Debug("background worker stopped", slog.Int("worker_id", ctx.id))
			return
		}
		ctx.processWorkItem(item)
	}
}

// processWorkItem dispatches one work item and routes its completion.
func (ctx *bgWorkerCtx) processWorkItem(item *WorkItem) {
	n := ctx.n

	// The ops table is frozen before any hook can submit work, so this
	// read needs no lock.
	ops := n.opsTable[item.Slot.ReqType]
	if !ops.registered() {
		n.metrics.WorkItemsNoHandler.Inc()
		n.logger.Error("no handler registered for request type",
			slog.Int("req_type", int(item.Slot.ReqType)),
			slog.Int("submitter_tid", int(item.TID)),
			slog.Int("worker_id", ctx.id),
		)
		return
	}

	start := time.Now()
	ops.ReqFunc(item.Slot)
	n.metrics.HandlerDuration.Observe(time.Since(start).Seconds())

	n.counters.workItemsProcessed.Add(1)
	n.metrics.WorkItemsProcessed.Inc()

	hook := n.lookupHook(item.TID)
	if hook == nil {
		// The endpoint unregistered while the item was in flight. Draining
		// before unregistration is the endpoint's responsibility; a late
		// completion is dropped, not an error.
		n.metrics.WorkItemsUnroutable.Inc()
		n.logger.Warn("dropping completion for unregistered endpoint",
			slog.Int("submitter_tid", int(item.TID)),
			slog.Int("worker_id", ctx.id),
		)
		return
	}

	hook.BgRespList.Push(item)
}
