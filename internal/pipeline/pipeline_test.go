package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paynet/fep/internal/ferr"
	"github.com/paynet/fep/internal/txn"
)

func newTestRequest() *txn.Request {
	return &txn.Request{TransactionID: "T1", Type: txn.TypeWithdrawal}
}

func TestRunExecutesStagesInRegistrationOrder(t *testing.T) {
	var order []string
	p := New(zap.NewNop())
	p.Register(StageParse, func(ctx *Context) error { order = append(order, "parse-1"); return nil })
	p.Register(StageParse, func(ctx *Context) error { order = append(order, "parse-2"); return nil })
	p.Register(StageProcessing, func(ctx *Context) error {
		order = append(order, "processing")
		ctx.Response = &txn.Response{TransactionID: ctx.Request.TransactionID, ResponseCode: "00", Approved: true}
		return nil
	})

	ctx := p.Run(newTestRequest())

	require.Equal(t, []string{"parse-1", "parse-2", "processing"}, order)
	require.True(t, ctx.ContinueProcessing)
	require.Equal(t, "00", ctx.Response.ResponseCode)
}

func TestRunShortCircuitsOnHandlerErrorButStillRunsAudit(t *testing.T) {
	auditRan := false
	p := New(zap.NewNop())
	p.Register(StageValidation, func(ctx *Context) error {
		return ferr.Validation("55", errors.New("invalid pin"))
	})
	p.Register(StageRouting, func(ctx *Context) error {
		t.Fatal("routing must not run after a halt")
		return nil
	})
	p.Register(StageAudit, func(ctx *Context) error {
		auditRan = true
		return nil
	})

	ctx := p.Run(newTestRequest())

	require.True(t, auditRan)
	require.False(t, ctx.ContinueProcessing)
	require.Equal(t, "55", ctx.Response.ResponseCode)
	require.NotNil(t, ctx.Err)
	require.Equal(t, ferr.KindValidation, ctx.Err.Kind)
}

func TestRunHaltWithoutErrorStillRunsAudit(t *testing.T) {
	auditRan := false
	p := New(zap.NewNop())
	p.Register(StageDuplicateCheck, func(ctx *Context) error {
		ctx.Response = &txn.Response{TransactionID: ctx.Request.TransactionID, ResponseCode: "94", Approved: false}
		ctx.ContinueProcessing = false
		return nil
	})
	p.Register(StageProcessing, func(ctx *Context) error {
		t.Fatal("processing must not run after a halt")
		return nil
	})
	p.Register(StageAudit, func(ctx *Context) error {
		auditRan = true
		return nil
	})

	ctx := p.Run(newTestRequest())

	require.True(t, auditRan)
	require.Equal(t, "94", ctx.Response.ResponseCode)
}

func TestListenerHooksFireInOrder(t *testing.T) {
	var events []string
	p := New(zap.NewNop())
	p.AddListener(&recordingListener{events: &events})
	p.Register(StageParse, func(ctx *Context) error { return nil })

	p.Run(newTestRequest())

	require.Equal(t, "start", events[0])
	require.Contains(t, events, "stage-start:PARSE")
	require.Contains(t, events, "stage-end:PARSE")
	require.Equal(t, "complete", events[len(events)-1])
}

type recordingListener struct {
	BaseListener
	events *[]string
}

func (r *recordingListener) OnPipelineStart(ctx *Context) { *r.events = append(*r.events, "start") }
func (r *recordingListener) OnStageStart(ctx *Context, s Stage) {
	*r.events = append(*r.events, "stage-start:"+s.String())
}
func (r *recordingListener) OnStageEnd(ctx *Context, s Stage, err error) {
	*r.events = append(*r.events, "stage-end:"+s.String())
}
func (r *recordingListener) OnPipelineComplete(ctx *Context) {
	*r.events = append(*r.events, "complete")
}
