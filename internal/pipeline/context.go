package pipeline

import (
	"time"

	"github.com/paynet/fep/internal/ferr"
	"github.com/paynet/fep/internal/txn"
)

// RoutingResult is the outcome of the ROUTING stage, populated by the
// router's handler and consumed by PROCESSING.
type RoutingResult struct {
	Destination string
	RuleName    string
	Timeout     time.Duration
}

// Context carries one request through the pipeline. It is built fresh
// per request and never shared across goroutines concurrently.
type Context struct {
	Request            *txn.Request
	Response           *txn.Response
	Routing            *RoutingResult
	Attributes         map[string]interface{}
	ContinueProcessing bool
	Err                *ferr.Error
	StageDurations     map[Stage]time.Duration
	startedAt          time.Time
}

// NewContext builds a Context ready for Run.
func NewContext(req *txn.Request) *Context {
	return &Context{
		Request:            req,
		Attributes:         make(map[string]interface{}),
		ContinueProcessing: true,
		StageDurations:     make(map[Stage]time.Duration),
	}
}

// Attr fetches an attribute, returning ok=false if absent.
func (c *Context) Attr(key string) (interface{}, bool) {
	v, ok := c.Attributes[key]
	return v, ok
}

// SetAttr stores an attribute for later stages or listeners.
func (c *Context) SetAttr(key string, value interface{}) {
	c.Attributes[key] = value
}

// Halt marks the context to skip remaining non-AUDIT stages, recording
// the error that caused the short-circuit.
func (c *Context) Halt(err *ferr.Error) {
	c.ContinueProcessing = false
	c.Err = err
}
