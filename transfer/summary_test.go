package transfer

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummary_Actionable(t *testing.T) {
	assert.False(t, (&Summary{Skipped: 3, Filtered: 2, Known: 9}).Actionable())
	assert.True(t, (&Summary{Merged: 1}).Actionable())
	assert.True(t, (&Summary{Failed: 1}).Actionable())
}

func TestSummary_MessageCapsDetails(t *testing.T) {
	s := &Summary{Source: "qb", Target: "tr"}
	for i := 0; i < 25; i++ {
		s.record(ScenarioMove, fmt.Sprintf("torrent-%02d", i), 1<<30)
	}
	s.fail("broken")
	s.record(ScenarioSkip, "dup", 0)

	msg := s.Message()

	assert.Equal(t, "seedshift: transfer finished", msg.Title)
	assert.Contains(t, msg.Text, "Source: qb -> Target: tr")
	assert.Contains(t, msg.Text, "Transferred: 25 | Merged: 0 | Skipped: 1 | Failed: 1")
	assert.Contains(t, msg.Text, "Moved: 27 GB")
	assert.Contains(t, msg.Text, "[Transferred] torrent-19")
	assert.NotContains(t, msg.Text, "torrent-20")
	assert.NotContains(t, msg.Text, "dup")
	assert.True(t, strings.HasSuffix(msg.Text, "...26 entries in total"))
}

func TestSummary_TitleAndDuration(t *testing.T) {
	start := time.Date(2024, 1, 1, 4, 0, 0, 0, time.UTC)
	s := &Summary{StartedAt: start}
	assert.Zero(t, s.Duration())

	s.FinishedAt = start.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, s.Duration())
	assert.Equal(t, "seedshift: transfer finished", s.Message().Title)
}
