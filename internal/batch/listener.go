package batch

import "github.com/paynet/fep/internal/txn"

// Listener receives batch lifecycle events: start, throttled progress
// (every ~10%), per-transaction completion, and final batch
// complete/failed. Modeled on the teacher's WebSocket broadcast hub:
// listeners are best-effort and must not block the batch loop.
type Listener interface {
	OnBatchStart(req *Request)
	OnProgress(completed, total int)
	OnItemComplete(index int, req *txn.Request, resp *txn.Response, err error)
	OnBatchComplete(result *Result)
	OnBatchFailed(result *Result)
}

// NoopListener is the default no-op Listener used when the caller
// passes nil to NewProcessor.
type NoopListener struct{}

func (NoopListener) OnBatchStart(*Request)                                 {}
func (NoopListener) OnProgress(int, int)                                   {}
func (NoopListener) OnItemComplete(int, *txn.Request, *txn.Response, error) {}
func (NoopListener) OnBatchComplete(*Result)                               {}
func (NoopListener) OnBatchFailed(*Result)                                 {}

// BroadcastListener forwards batch events to the live operations feed,
// mirroring the teacher's BroadcastTransaction/BroadcastMetrics helpers.
type BroadcastListener struct {
	Broadcast func(event string, payload map[string]interface{})
}

func (b *BroadcastListener) emit(event string, payload map[string]interface{}) {
	if b.Broadcast == nil {
		return
	}
	b.Broadcast(event, payload)
}

func (b *BroadcastListener) OnBatchStart(req *Request) {
	b.emit("batch_start", map[string]interface{}{"batchId": req.ID, "count": len(req.Transactions)})
}

func (b *BroadcastListener) OnProgress(completed, total int) {
	b.emit("batch_progress", map[string]interface{}{"completed": completed, "total": total})
}

func (b *BroadcastListener) OnItemComplete(index int, req *txn.Request, resp *txn.Response, err error) {
	payload := map[string]interface{}{"index": index, "transactionId": req.TransactionID}
	if err != nil {
		payload["error"] = err.Error()
	} else if resp != nil {
		payload["responseCode"] = resp.ResponseCode
	}
	b.emit("batch_item", payload)
}

func (b *BroadcastListener) OnBatchComplete(result *Result) {
	b.emit("batch_complete", map[string]interface{}{"batchId": result.ID, "status": string(result.Status)})
}

func (b *BroadcastListener) OnBatchFailed(result *Result) {
	b.emit("batch_failed", map[string]interface{}{"batchId": result.ID, "status": string(result.Status)})
}
