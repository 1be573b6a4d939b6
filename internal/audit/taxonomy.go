// Package audit implements the masked request/response/error logging
// §4.11 describes: one line per receipt, one per outcome, one per
// error, each persisted via the repository interface.
package audit

// Kind distinguishes the three audit line types §4.11 names.
type Kind string

const (
	KindReceipt  Kind = "RECEIPT"
	KindResponse Kind = "RESPONSE"
	KindError    Kind = "ERROR"
)
