// Package pipeline implements the fixed-order request pipeline §4.3
// describes: RECEIVE through COMPLETE, with per-stage handler
// registration, short-circuiting, and side-effect-only listener hooks.
package pipeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/paynet/fep/internal/ferr"
	"github.com/paynet/fep/internal/txn"
)

// Pipeline owns the per-stage handler chain and the registered listeners.
// One Pipeline is built at startup and reused across requests; Run is
// safe for concurrent use since all mutable state lives in the Context.
type Pipeline struct {
	handlers  map[Stage][]Handler
	listeners []Listener
	log       *zap.Logger
}

// New builds an empty Pipeline. Register handlers with Register before
// the first Run.
func New(log *zap.Logger) *Pipeline {
	return &Pipeline{
		handlers: make(map[Stage][]Handler),
		log:      log,
	}
}

// Register appends h to stage's handler chain, in call order.
func (p *Pipeline) Register(stage Stage, h Handler) {
	p.handlers[stage] = append(p.handlers[stage], h)
}

// AddListener registers a side-effect-only observer of pipeline progress.
func (p *Pipeline) AddListener(l Listener) {
	p.listeners = append(p.listeners, l)
}

// Run drives req through every stage in order. A handler returning an
// error halts the remaining non-AUDIT stages and synthesizes a response
// from the mapped response code; AUDIT and COMPLETE always run.
func (p *Pipeline) Run(req *txn.Request) *Context {
	ctx := NewContext(req)
	ctx.startedAt = time.Now()

	p.fireStart(ctx)

	for _, stage := range orderedStages {
		if !ctx.ContinueProcessing && stage != StageAudit && stage != StageComplete {
			continue
		}
		p.runStage(ctx, stage)
	}

	if ctx.Err != nil {
		p.fireError(ctx, ctx.Err)
	} else {
		p.fireComplete(ctx)
	}
	return ctx
}

func (p *Pipeline) runStage(ctx *Context, stage Stage) {
	stageStart := time.Now()
	p.fireStageStart(ctx, stage)

	var stageErr error
	for _, h := range p.handlers[stage] {
		if err := h(ctx); err != nil {
			stageErr = err
			p.handleError(ctx, stage, err)
			break
		}
		if !ctx.ContinueProcessing && stage != StageAudit {
			break
		}
	}

	ctx.StageDurations[stage] = time.Since(stageStart)
	p.fireStageEnd(ctx, stage, stageErr)
}

// handleError maps an uncaught handler error to a synthesized response
// and halts further non-AUDIT processing.
func (p *Pipeline) handleError(ctx *Context, stage Stage, err error) {
	fe, ok := ferr.As(err)
	if !ok {
		fe = ferr.System(err)
	}
	if p.log != nil {
		p.log.Warn("pipeline stage error",
			zap.String("stage", stage.String()),
			zap.String("kind", fe.Kind.String()),
			zap.String("code", fe.ResponseCode),
			zap.Error(fe.Cause),
		)
	}

	ctx.Err = fe
	ctx.ContinueProcessing = false
	if ctx.Response == nil {
		ctx.Response = &txn.Response{TransactionID: ctx.Request.TransactionID}
	}
	ctx.Response.ResponseCode = fe.ResponseCode
	ctx.Response.Approved = false
	ctx.Response.ErrorMessage = fe.Error()
	ctx.Response.ProcessingEndedAt = time.Now()
	if ctx.Response.ProcessingStartedAt.IsZero() {
		ctx.Response.ProcessingStartedAt = ctx.startedAt
	}
}

func (p *Pipeline) fireStart(ctx *Context) {
	for _, l := range p.listeners {
		l.OnPipelineStart(ctx)
	}
}

func (p *Pipeline) fireStageStart(ctx *Context, stage Stage) {
	for _, l := range p.listeners {
		l.OnStageStart(ctx, stage)
	}
}

func (p *Pipeline) fireStageEnd(ctx *Context, stage Stage, err error) {
	for _, l := range p.listeners {
		l.OnStageEnd(ctx, stage, err)
	}
}

func (p *Pipeline) fireComplete(ctx *Context) {
	if ctx.Response != nil && ctx.Response.ProcessingEndedAt.IsZero() {
		ctx.Response.ProcessingEndedAt = time.Now()
		if ctx.Response.ProcessingStartedAt.IsZero() {
			ctx.Response.ProcessingStartedAt = ctx.startedAt
		}
	}
	for _, l := range p.listeners {
		l.OnPipelineComplete(ctx)
	}
}

func (p *Pipeline) fireError(ctx *Context, err error) {
	for _, l := range p.listeners {
		l.OnPipelineError(ctx, err)
	}
}
