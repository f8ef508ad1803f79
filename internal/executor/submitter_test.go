package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/stretchr/testify/require"
)

type relayStep struct {
	receipt domain.RelayReceipt
	err     error
}

// scriptedRelayer replays steps in order and records what it was sent.
type scriptedRelayer struct {
	steps  []relayStep
	calls  int
	labels []string
}

func (r *scriptedRelayer) Execute(_ context.Context, _ domain.ChainCall, label string) (domain.RelayReceipt, error) {
	step := r.steps[min(r.calls, len(r.steps)-1)]
	r.calls++
	r.labels = append(r.labels, label)
	return step.receipt, step.err
}

func newTestSubmitter(relayer domain.Relayer, retries int) (*Submitter, *[]time.Duration) {
	return newBreakerSubmitter(relayer, retries, DefaultBreakerConfig())
}

func newBreakerSubmitter(relayer domain.Relayer, retries int, breaker BreakerConfig) (*Submitter, *[]time.Duration) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewSubmitter(relayer, breaker, SubmitterConfig{
		Retries:           retries,
		InitialBackoff:    time.Second,
		MaxBackoff:        3 * time.Second,
		BackoffMultiplier: 2,
		LabelMaxLen:       20,
	}, logger)
	var slept []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return s, &slept
}

var testCandidate = domain.NewRedemptionCandidate("0xA", "Will it rain in Paris tomorrow?", false,
	[]domain.Outcome{outcome("YES", 0, "10")})

var testCall = domain.ChainCall{Kind: domain.CallKindBinary, Method: redeemMethod}

func TestSubmitSuccess(t *testing.T) {
	relayer := &scriptedRelayer{steps: []relayStep{{receipt: domain.RelayReceipt{
		TransactionID: "id", TransactionHash: "0xhash", State: domain.RelayStateMined,
	}}}}
	s, _ := newTestSubmitter(relayer, 3)

	res := s.Submit(context.Background(), testCall, testCandidate)
	require.True(t, res.Success())
	require.True(t, res.Settled)
	require.Equal(t, "0xhash", res.TransactionRef)
	require.Equal(t, 1, res.Attempts)
	require.Equal(t, []string{"Will it rain in P..."}, relayer.labels)
}

func TestSubmitClassification(t *testing.T) {
	tests := []struct {
		name        string
		receipt     domain.RelayReceipt
		wantSettled bool
		wantRef     string
		wantKind    domain.FailureKind
	}{
		{
			name:        "reverted on chain",
			receipt:     domain.RelayReceipt{TransactionID: "id", TransactionHash: "0xdead", State: domain.RelayStateFailed},
			wantSettled: true,
			wantRef:     "0xdead",
			wantKind:    domain.FailureChainReverted,
		},
		{
			name:     "rejected by relayer",
			receipt:  domain.RelayReceipt{TransactionID: "id", State: domain.RelayStateInvalid},
			wantKind: domain.FailureRelayRejected,
		},
		{
			name:     "no reference after waiting",
			receipt:  domain.RelayReceipt{TransactionID: "id", State: domain.RelayStateNew},
			wantKind: domain.FailureNoReference,
		},
		{
			name:        "hash without terminal state",
			receipt:     domain.RelayReceipt{TransactionID: "id", TransactionHash: "0xok", State: domain.RelayStateExecuted},
			wantSettled: true,
			wantRef:     "0xok",
			wantKind:    domain.FailureNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relayer := &scriptedRelayer{steps: []relayStep{{receipt: tt.receipt}}}
			s, _ := newTestSubmitter(relayer, 3)

			res := s.Submit(context.Background(), testCall, testCandidate)
			require.Equal(t, tt.wantSettled, res.Settled)
			require.Equal(t, tt.wantRef, res.TransactionRef)
			require.Equal(t, tt.wantKind, res.FailureKind)
			require.Equal(t, tt.wantKind == domain.FailureNone, res.Success())
			require.Equal(t, 1, relayer.calls, "a settled receipt is never resubmitted")
		})
	}
}

func TestSubmitRetriesBeforeReference(t *testing.T) {
	netErr := errors.New("connection reset")
	relayer := &scriptedRelayer{steps: []relayStep{
		{err: netErr},
		{err: netErr},
		{receipt: domain.RelayReceipt{TransactionID: "id", TransactionHash: "0xhash", State: domain.RelayStateMined}},
	}}
	s, slept := newTestSubmitter(relayer, 3)

	res := s.Submit(context.Background(), testCall, testCandidate)
	require.True(t, res.Success())
	require.Equal(t, 3, res.Attempts)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestSubmitGivesUpAfterRetries(t *testing.T) {
	relayer := &scriptedRelayer{steps: []relayStep{{err: errors.New("dial tcp: timeout")}}}
	s, slept := newBreakerSubmitter(relayer, 4, BreakerConfig{})

	res := s.Submit(context.Background(), testCall, testCandidate)
	require.False(t, res.Settled)
	require.Empty(t, res.TransactionRef)
	require.Equal(t, domain.FailureRelayError, res.FailureKind)
	require.Contains(t, res.FailureReason, "dial tcp: timeout")
	require.Contains(t, res.FailureReason, domain.ErrRelaySubmissionFailed.Error())
	require.Equal(t, 4, relayer.calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, *slept)
}

func TestSubmitDoesNotRetryOnceReferenced(t *testing.T) {
	relayer := &scriptedRelayer{steps: []relayStep{{
		receipt: domain.RelayReceipt{TransactionID: "id"},
		err:     errors.New("lost connection while waiting"),
	}}}
	s, _ := newTestSubmitter(relayer, 5)

	res := s.Submit(context.Background(), testCall, testCandidate)
	require.False(t, res.Success())
	require.Equal(t, domain.FailureRelayError, res.FailureKind)
	require.Equal(t, 1, relayer.calls)
}

func TestSubmitBreakerCutsRetriesShort(t *testing.T) {
	relayer := &scriptedRelayer{steps: []relayStep{{err: errors.New("503 service unavailable")}}}
	s, slept := newBreakerSubmitter(relayer, 5, BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Minute})

	res := s.Submit(context.Background(), testCall, testCandidate)
	require.Equal(t, domain.FailureRelayError, res.FailureKind)
	require.Equal(t, 2, relayer.calls)
	require.Equal(t, 2, res.Attempts)
	require.Equal(t, []time.Duration{time.Second}, *slept)
	require.Contains(t, res.FailureReason, "503 service unavailable")
}

func TestSubmitBreakerDoesNotSpillAcrossCandidates(t *testing.T) {
	relayer := &scriptedRelayer{steps: []relayStep{{err: errors.New("connection refused")}}}
	s, _ := newTestSubmitter(relayer, 3)

	for i, id := range []string{"m1", "m2", "m3", "m4"} {
		c := domain.NewRedemptionCandidate(id, "Market "+id, false, []domain.Outcome{outcome("YES", 0, "1")})
		res := s.Submit(context.Background(), testCall, c)

		require.Equal(t, domain.FailureRelayError, res.FailureKind, id)
		require.Equal(t, 3, res.Attempts, id)
		require.Equal(t, 3*(i+1), relayer.calls, id)
		require.Contains(t, res.FailureReason, "connection refused", id)
		require.NotContains(t, res.FailureReason, "circuit breaker", id)
	}
}

func TestTruncateLabel(t *testing.T) {
	require.Equal(t, "short", TruncateLabel("short", 10))
	require.Equal(t, "abcdefg...", TruncateLabel("abcdefghijklmnop", 10))
	require.Equal(t, "ab", TruncateLabel("abcdef", 2))
	require.Equal(t, "élan vit...", TruncateLabel("élan vital élan vital", 11))
	require.Equal(t, "anything", TruncateLabel("anything", 0))
}
