// Package router implements the priority-ordered destination rule
// matcher §4.6 describes.
package router

import (
	"sort"
	"time"

	"github.com/paynet/fep/internal/ferr"
	"github.com/paynet/fep/internal/txn"
)

// Destination enumerates the upstream systems a request can be routed to.
type Destination string

const (
	DestMainframeCBS    Destination = "MAINFRAME_CBS"
	DestOpenSystemAPI   Destination = "OPEN_SYSTEM_API"
	DestFISCInterbank   Destination = "FISC_INTERBANK"
	DestFISCBillPayment Destination = "FISC_BILL_PAYMENT"
	DestCardNetwork     Destination = "CARD_NETWORK"
	DestInternal        Destination = "INTERNAL"
	DestExternalService Destination = "EXTERNAL_SERVICE"
)

// Predicate is a custom matcher a Rule may carry in addition to its
// type/channel/bank sets.
type Predicate func(req *txn.Request) bool

// Rule is one routing rule. Lower Priority values are evaluated first.
// A zero-value set for any of Types/Channels/DestBanks means "match
// any" for that dimension; Predicate, if non-nil, must also pass.
type Rule struct {
	Name        string
	Priority    int
	Active      bool
	Types       map[txn.Type]bool
	Channels    map[txn.Channel]bool
	DestBanks   map[string]bool
	Predicate   Predicate
	Destination Destination
	Timeout     time.Duration
}

func (r *Rule) matches(req *txn.Request) bool {
	if !r.Active {
		return false
	}
	if len(r.Types) > 0 && !r.Types[req.Type] {
		return false
	}
	if len(r.Channels) > 0 && !r.Channels[req.Channel] {
		return false
	}
	if len(r.DestBanks) > 0 && !r.DestBanks[req.DestBankCode] {
		return false
	}
	if r.Predicate != nil && !r.Predicate(req) {
		return false
	}
	return true
}

// Decision is the outcome of routing a request.
type Decision struct {
	Destination Destination
	RuleName    string
	Timeout     time.Duration
}

// Router holds the priority-ordered rule set plus a fallback default.
type Router struct {
	rules          []*Rule
	defaultDest    Destination
	defaultTimeout time.Duration
	hasDefault     bool
}

// New builds an empty Router. Call SetDefault to configure the
// no-match fallback; without one, Route returns a RoutingError.
func New() *Router {
	return &Router{}
}

// AddRule registers a rule and keeps the rule set sorted by Priority.
func (r *Router) AddRule(rule *Rule) {
	r.rules = append(r.rules, rule)
	sort.SliceStable(r.rules, func(i, j int) bool { return r.rules[i].Priority < r.rules[j].Priority })
}

// SetDefault configures the fallback destination used when no rule
// matches.
func (r *Router) SetDefault(dest Destination, timeout time.Duration) {
	r.defaultDest = dest
	r.defaultTimeout = timeout
	r.hasDefault = true
}

// Route returns the first matching active rule's destination (lowest
// Priority wins), falling back to the configured default, or a
// RoutingError if neither exists.
func (r *Router) Route(req *txn.Request) (*Decision, error) {
	for _, rule := range r.rules {
		if rule.matches(req) {
			return &Decision{Destination: rule.Destination, RuleName: rule.Name, Timeout: rule.Timeout}, nil
		}
	}
	if r.hasDefault {
		return &Decision{Destination: r.defaultDest, RuleName: "default", Timeout: r.defaultTimeout}, nil
	}
	return nil, ferr.Routing(errNoMatchingRule(req))
}

type noMatchError struct {
	txnType txn.Type
}

func (e *noMatchError) Error() string {
	return "no matching routing rule and no default destination for transaction type " + string(e.txnType)
}

func errNoMatchingRule(req *txn.Request) error {
	return &noMatchError{txnType: req.Type}
}
