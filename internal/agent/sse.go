package agent

import (
	"bufio"
	"io"
	"strings"
)

// sseEvent is one named server-sent event with its data lines joined by "\n".
type sseEvent struct {
	Name string
	Data string
}

// readEvents scans an event stream and calls fn for every event that has
// both a name and data. A final event without a trailing blank line is still
// delivered at EOF. Comment and id/retry lines are ignored.
func readEvents(r io.Reader, fn func(sseEvent)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) // 1MB max line for large text blocks

	var name string
	var data []string

	flush := func() {
		if name != "" && len(data) > 0 {
			fn(sseEvent{Name: name, Data: strings.Join(data, "\n")})
		}
		name = ""
		data = data[:0]
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	flush()
	return nil
}

// normalizeEventName maps "assist.final_response" and "FINAL_RESPONSE" alike
// to "FINAL_RESPONSE": everything after the first dot, upper-cased.
func normalizeEventName(name string) string {
	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.ToUpper(name)
}
