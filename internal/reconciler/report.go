package reconciler

import (
	"fmt"
	"strings"
	"time"
)

// sampleLimit is how many entries of each category the summary lists.
const sampleLimit = 5

// Report is the structured summary of one reconciliation run.
type Report struct {
	RunID       string
	Total       int
	Deleted     int
	Unreachable int
	Blocked     int
	Renamed     int
	NoUsername  int
	Errors      int
	Kept        int
	Samples     map[string][]string
	Elapsed     time.Duration
}

func (r *Report) addSample(category, item string) {
	if r.Samples == nil {
		r.Samples = make(map[string][]string)
	}
	if len(r.Samples[category]) < sampleLimit {
		r.Samples[category] = append(r.Samples[category], item)
	}
}

// Render formats the summary for the chat.
func (r *Report) Render() string {
	var sb strings.Builder
	sb.WriteString("Directory reconciliation finished\n\n")
	fmt.Fprintf(&sb, "Scanned: %d users in %s\n", r.Total, r.Elapsed.Round(time.Second))
	fmt.Fprintf(&sb, "Kept: %d\n", r.Kept)
	fmt.Fprintf(&sb, "Removed: %d deleted, %d unreachable, %d blocked\n", r.Deleted, r.Unreachable, r.Blocked)
	fmt.Fprintf(&sb, "Usernames updated: %d (no username: %d)\n", r.Renamed, r.NoUsername)
	fmt.Fprintf(&sb, "Errors (kept for retry): %d\n", r.Errors)
	for _, category := range []string{"deleted", "unreachable", "blocked", "renamed", "error"} {
		items := r.Samples[category]
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s: %s", category, strings.Join(items, ", "))
	}
	fmt.Fprintf(&sb, "\n\nrun %s", r.RunID)
	return sb.String()
}

// renderProgressBar draws a textual bar for the live progress message.
func renderProgressBar(done, total int) string {
	const width = 20
	if total <= 0 {
		total = 1
	}
	filled := done * width / total
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("[%s] %d/%d (%d%%)", bar, done, total, done*100/total)
}
