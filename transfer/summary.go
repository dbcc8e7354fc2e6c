package transfer

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/s0up4200/seedshift/notifier"
)

// maxNotifyDetails caps the detail lines rendered in a notification.
const maxNotifyDetails = 20

// Summary is the outcome of one pass.
type Summary struct {
	RunID      string
	Source     string
	Target     string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time

	Total       int
	Transferred int
	Merged      int
	Skipped     int
	Failed      int
	Filtered    int
	// Known counts torrents already present in the history.
	Known int
	// Bytes is the total size of transferred torrents.
	Bytes int64

	Details []string
}

// Actionable reports whether the pass changed anything or hit failures.
func (s *Summary) Actionable() bool {
	return s.Transferred+s.Merged+s.Failed > 0
}

// Duration returns how long the pass took.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *Summary) record(scenario Scenario, name string, size int64) {
	switch scenario {
	case ScenarioMove:
		s.Transferred++
		s.Bytes += size
	case ScenarioMergeTrackers:
		s.Merged++
	default:
		s.Skipped++
		return
	}
	s.Details = append(s.Details, fmt.Sprintf("[%s] %s", scenario.label(), name))
}

func (s *Summary) fail(name string) {
	s.Failed++
	s.Details = append(s.Details, fmt.Sprintf("[Failed] %s", name))
}

// Message renders the notification for the pass.
func (s *Summary) Message() notifier.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s -> Target: %s\n", s.Source, s.Target)
	fmt.Fprintf(&b, "Transferred: %d | Merged: %d | Skipped: %d | Failed: %d",
		s.Transferred, s.Merged, s.Skipped, s.Failed)
	if s.Bytes > 0 {
		fmt.Fprintf(&b, "\nMoved: %s", humanize.Bytes(uint64(s.Bytes)))
	}

	if len(s.Details) > 0 {
		b.WriteString("\n\nDetails:\n")
		shown := s.Details
		if len(shown) > maxNotifyDetails {
			shown = shown[:maxNotifyDetails]
		}
		b.WriteString(strings.Join(shown, "\n"))
		if len(s.Details) > maxNotifyDetails {
			fmt.Fprintf(&b, "\n...%d entries in total", len(s.Details))
		}
	}

	return notifier.Message{Title: "seedshift: transfer finished", Text: b.String()}
}
