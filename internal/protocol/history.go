package protocol

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/drover-dev/drover/internal/domain"
)

const historyFile = ".drover/history.log"

// AppendHistory appends one action/observation round trip to the
// human-readable transcript. Observation content is indented with "  | "
// under the header line. Write failures are ignored; the transcript is a
// convenience, not a system of record.
func AppendHistory(workDir, runID string, a domain.Action, o domain.Observation) {
	path := filepath.Join(workDir, historyFile)
	_ = os.MkdirAll(filepath.Dir(path), 0755)

	ts := time.Now().UTC().Format(time.RFC3339)
	entry := fmt.Sprintf("[%s] run:%s action:%s %s\n", ts, runID, a.Kind(), a.Message())
	if o != nil {
		if content, ok := o.ToMap()["content"].(string); ok {
			trimmed := strings.TrimRight(content, "\n")
			if trimmed != "" {
				for _, line := range strings.Split(trimmed, "\n") {
					entry += "  | " + line + "\n"
				}
			}
		}
	}
	entry += "\n"

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(entry)
}

// AppendHistoryMarker appends a run-level marker (start/end) to the
// transcript.
func AppendHistoryMarker(workDir, runID, marker string) {
	path := filepath.Join(workDir, historyFile)
	_ = os.MkdirAll(filepath.Dir(path), 0755)

	ts := time.Now().UTC().Format(time.RFC3339)
	entry := fmt.Sprintf("[%s] run:%s %s\n\n", ts, runID, marker)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(entry)
}
