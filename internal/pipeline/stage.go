package pipeline

// Stage is one step in the fixed processing order §4.3 defines. Stages
// always run in this sequence; only the set of handlers registered per
// stage varies.
type Stage int

const (
	StageReceive Stage = iota
	StageParse
	StageDuplicateCheck
	StageSecurityCheck
	StageValidation
	StageRouting
	StageProcessing
	StageResponse
	StageAudit
	StageComplete
)

var stageNames = [...]string{
	StageReceive:        "RECEIVE",
	StageParse:          "PARSE",
	StageDuplicateCheck: "DUPLICATE_CHECK",
	StageSecurityCheck:  "SECURITY_CHECK",
	StageValidation:     "VALIDATION",
	StageRouting:        "ROUTING",
	StageProcessing:     "PROCESSING",
	StageResponse:       "RESPONSE",
	StageAudit:          "AUDIT",
	StageComplete:       "COMPLETE",
}

func (s Stage) String() string {
	if int(s) < 0 || int(s) >= len(stageNames) {
		return "UNKNOWN"
	}
	return stageNames[s]
}

// orderedStages is the fixed execution order, AUDIT and COMPLETE included
// so a short-circuited request still runs audit.
var orderedStages = []Stage{
	StageReceive,
	StageParse,
	StageDuplicateCheck,
	StageSecurityCheck,
	StageValidation,
	StageRouting,
	StageProcessing,
	StageResponse,
	StageAudit,
	StageComplete,
}

// Handler is a single unit of work registered against a stage. It may
// mutate ctx.Request/Response/Attributes and set ctx.ContinueProcessing
// to false to short-circuit the remaining stages (AUDIT still runs).
type Handler func(ctx *Context) error
