package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// CallKind identifies which contract entry point a ChainCall targets.
type CallKind string

const (
	CallKindBinary  CallKind = "binary"
	CallKindNegRisk CallKind = "neg_risk"
)

// ChainCall is one encoded contract call ready for relay submission.
type ChainCall struct {
	Kind   CallKind
	To     common.Address
	Data   []byte
	Method string
}

// RelayState is the relayer's reported transaction state.
type RelayState string

const (
	RelayStateNew       RelayState = "STATE_NEW"
	RelayStateExecuted  RelayState = "STATE_EXECUTED"
	RelayStateMined     RelayState = "STATE_MINED"
	RelayStateConfirmed RelayState = "STATE_CONFIRMED"
	RelayStateFailed    RelayState = "STATE_FAILED"
	RelayStateInvalid   RelayState = "STATE_INVALID"
)

// Terminal reports whether the relayer will not move the transaction again.
func (s RelayState) Terminal() bool {
	switch s {
	case RelayStateMined, RelayStateConfirmed, RelayStateFailed, RelayStateInvalid:
		return true
	}
	return false
}

// RelayReceipt is what the relayer reported for one submitted call.
// TransactionID is set once the relayer accepted the request;
// TransactionHash once it reached the chain.
type RelayReceipt struct {
	TransactionID   string
	TransactionHash string
	State           RelayState
}

// FailureKind classifies an unsuccessful submission.
type FailureKind string

const (
	FailureNone FailureKind = ""
	// FailureRelayError: an error was raised while sending or waiting.
	FailureRelayError FailureKind = "relay_error"
	// FailureRelayRejected: the relayer refused the transaction outright.
	FailureRelayRejected FailureKind = "relay_rejected"
	// FailureChainReverted: the relayer executed it and the chain reverted.
	FailureChainReverted FailureKind = "chain_reverted"
	// FailureNoReference: no chain reference came back after waiting.
	FailureNoReference FailureKind = "no_reference"
)

// SubmissionResult is the classified outcome for one candidate.
type SubmissionResult struct {
	Candidate      RedemptionCandidate
	Settled        bool
	TransactionRef string
	FailureKind    FailureKind
	FailureReason  string
	Attempts       int
}

// Success is true only for a settled submission with a chain reference
// and no failure marker.
func (r SubmissionResult) Success() bool {
	return r.Settled && r.TransactionRef != "" && r.FailureKind == FailureNone
}

// RunMode selects whether a run submits anything.
type RunMode string

const (
	RunModeCheck  RunMode = "check"
	RunModeRedeem RunMode = "redeem"
)

// RunSummary is the aggregate report of one orchestrator run.
type RunSummary struct {
	RunID      string
	Mode       RunMode
	StartedAt  time.Time
	FinishedAt time.Time

	Candidates  []RedemptionCandidate
	Results     []SubmissionResult
	Unattempted []RedemptionCandidate

	UpstreamFailed bool
	Interrupted    bool
}

func (s RunSummary) Attempted() int { return len(s.Results) }

func (s RunSummary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Success() {
			n++
		}
	}
	return n
}

// Failed returns the unsuccessful results in submission order.
func (s RunSummary) Failed() []SubmissionResult {
	var out []SubmissionResult
	for _, r := range s.Results {
		if !r.Success() {
			out = append(out, r)
		}
	}
	return out
}

// ExitOK reports whether the process should exit with status 0.
func (s RunSummary) ExitOK() bool {
	if s.UpstreamFailed {
		return false
	}
	if s.Mode == RunModeCheck {
		return true
	}
	if s.Interrupted && len(s.Unattempted) > 0 {
		return false
	}
	return s.Succeeded() == s.Attempted()
}
