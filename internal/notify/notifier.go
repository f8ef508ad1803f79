// Package notify delivers run reports to chat channels. Each report is sent
// to every configured sender, filtered by event type so operators receive
// only the alerts they asked for.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/polyredeem/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Event types understood by Notify.
const (
	EventRunSummary   = "run_summary"
	EventRedeemFailed = "redeem_failed"
	EventError        = "error"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. Only events in
// the allowed set are forwarded; an empty set allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify sends a notification to all senders if event is allowed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled() {
		return nil
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// ReportRun sends the run summary and, when any candidate failed, a
// separate itemised failure report.
func (n *Notifier) ReportRun(ctx context.Context, s domain.RunSummary) error {
	errs := []error{
		n.Notify(ctx, EventRunSummary, summaryTitle(s), FormatSummary(s)),
	}
	if failed := s.Failed(); len(failed) > 0 {
		errs = append(errs, n.Notify(ctx, EventRedeemFailed,
			fmt.Sprintf("Redemption failures (%d)", len(failed)), FormatFailures(failed)))
	}
	return errors.Join(errs...)
}

// ReportError sends a fatal run error.
func (n *Notifier) ReportError(ctx context.Context, runErr error) error {
	return n.Notify(ctx, EventError, "Redemption run failed", runErr.Error())
}

// dispatch fans out to all senders concurrently. A single sender failure
// does not prevent delivery to the others.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	errs := make([]error, len(n.senders))
	var g errgroup.Group
	for i, s := range n.senders {
		g.Go(func() error {
			if err := s.Send(ctx, title, message); err != nil {
				n.logger.ErrorContext(ctx, "sender failed",
					slog.String("sender", s.Name()),
					slog.String("error", err.Error()),
				)
				errs[i] = fmt.Errorf("%s: %w", s.Name(), err)
				return nil
			}
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func summaryTitle(s domain.RunSummary) string {
	if s.Mode == domain.RunModeCheck {
		return "Redemption check"
	}
	if s.ExitOK() {
		return "Redemption run complete"
	}
	return "Redemption run incomplete"
}

// FormatSummary renders the counts of a run as plain text.
func FormatSummary(s domain.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s (%s)\n", s.RunID, s.Mode)
	fmt.Fprintf(&b, "candidates: %d\n", len(s.Candidates))
	if s.Mode == domain.RunModeCheck {
		for _, c := range s.Unattempted {
			fmt.Fprintf(&b, "- %s: %s shares, $%s\n", c.Label(), c.TotalSize().StringFixed(2), c.TotalValue().StringFixed(2))
		}
	}
	fmt.Fprintf(&b, "attempted: %d\n", s.Attempted())
	fmt.Fprintf(&b, "succeeded: %d", s.Succeeded())
	if s.Interrupted {
		fmt.Fprintf(&b, "\ninterrupted, %d not attempted", len(s.Unattempted))
	}
	if s.UpstreamFailed {
		b.WriteString("\nposition listing failed")
	}
	return b.String()
}

// FormatFailures itemises failed submissions, one per line.
func FormatFailures(failed []domain.SubmissionResult) string {
	lines := make([]string, 0, len(failed))
	for _, r := range failed {
		line := fmt.Sprintf("- %s: %s", r.Candidate.Label(), r.FailureKind)
		if r.TransactionRef != "" {
			line += " tx " + r.TransactionRef
		}
		if r.FailureReason != "" {
			line += " (" + r.FailureReason + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
