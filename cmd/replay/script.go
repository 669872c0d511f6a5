package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/teslashibe/go-avatar/pkg/avatar"
	"github.com/teslashibe/go-avatar/pkg/features"
)

// step is one line of a JSONL replay script. A line may set or clear the
// pending message and then send Repeat copies of Features (default 1).
//
//	{"message":{"content":"[happy] Hi!"}}
//	{"features":{"energy":0.2,"zcr":0.1},"repeat":30}
//	{"clear":true}
type step struct {
	Features *features.Frame        `json:"features,omitempty"`
	Message  *avatar.PendingMessage `json:"message,omitempty"`
	Clear    bool                   `json:"clear,omitempty"`
	Repeat   int                    `json:"repeat,omitempty"`
}

// parseScript reads a JSONL script. Blank lines and lines starting with #
// are skipped. Messages without an id get a random one.
func parseScript(r io.Reader) ([]step, error) {
	var steps []step
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var st step
		if err := json.Unmarshal([]byte(text), &st); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if st.Features == nil && st.Message == nil && !st.Clear {
			return nil, fmt.Errorf("line %d: step has no features, message, or clear", line)
		}
		if st.Features != nil {
			if err := st.Features.Validate(); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		if st.Repeat < 0 {
			return nil, fmt.Errorf("line %d: repeat must be >= 0", line)
		}
		if st.Features != nil && st.Repeat == 0 {
			st.Repeat = 1
		}
		if st.Message != nil && st.Message.ID == "" {
			st.Message.ID = uuid.NewString()
		}
		steps = append(steps, st)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}

// frameCount returns how many feature frames the script sends.
func frameCount(steps []step) int {
	n := 0
	for _, st := range steps {
		n += st.Repeat
	}
	return n
}
