package pipeline

// Listener receives side-effect-only notifications of pipeline progress.
// Implementations must not block meaningfully; the live operations feed
// (broadcast over the gorilla/websocket hub) is wired in as a listener
// rather than a handler, since it never needs to mutate the context.
type Listener interface {
	OnPipelineStart(ctx *Context)
	OnStageStart(ctx *Context, stage Stage)
	OnStageEnd(ctx *Context, stage Stage, err error)
	OnPipelineComplete(ctx *Context)
	OnPipelineError(ctx *Context, err error)
}

// BaseListener gives implementers default no-op methods so they only
// need to override the hooks they care about.
type BaseListener struct{}

func (BaseListener) OnPipelineStart(*Context)         {}
func (BaseListener) OnStageStart(*Context, Stage)     {}
func (BaseListener) OnStageEnd(*Context, Stage, error) {}
func (BaseListener) OnPipelineComplete(*Context)      {}
func (BaseListener) OnPipelineError(*Context, error)  {}

// broadcastFunc matches the shape of the live-feed hub's broadcast
// method so FuncListener can forward events without depending on any
// particular transport.
type broadcastFunc func(event string, payload map[string]interface{})

// FuncListener adapts a broadcast function into a Listener, used to wire
// the pipeline to the operations dashboard feed.
type FuncListener struct {
	BaseListener
	Broadcast broadcastFunc
}

func NewFuncListener(broadcast broadcastFunc) *FuncListener {
	return &FuncListener{Broadcast: broadcast}
}

func (l *FuncListener) OnPipelineStart(ctx *Context) {
	if l.Broadcast == nil {
		return
	}
	l.Broadcast("pipeline_start", map[string]interface{}{
		"transactionId": ctx.Request.TransactionID,
		"type":          string(ctx.Request.Type),
	})
}

func (l *FuncListener) OnPipelineComplete(ctx *Context) {
	if l.Broadcast == nil {
		return
	}
	payload := map[string]interface{}{
		"transactionId": ctx.Request.TransactionID,
	}
	if ctx.Response != nil {
		payload["responseCode"] = ctx.Response.ResponseCode
		payload["approved"] = ctx.Response.Approved
	}
	l.Broadcast("pipeline_complete", payload)
}

func (l *FuncListener) OnPipelineError(ctx *Context, err error) {
	if l.Broadcast == nil {
		return
	}
	l.Broadcast("pipeline_error", map[string]interface{}{
		"transactionId": ctx.Request.TransactionID,
		"error":         err.Error(),
	})
}
