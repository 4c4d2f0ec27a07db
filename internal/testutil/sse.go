package testutil

import (
	"fmt"
	"strings"
)

// ParseSSE splits an event-stream body into its data payloads, in order.
// It fails on anything that is not a well-formed sequence of
// "data: <payload>\n\n" frames.
func ParseSSE(body string) ([]string, error) {
	if body == "" {
		return nil, nil
	}
	var payloads []string
	rest := body
	for rest != "" {
		frame, tail, found := strings.Cut(rest, "\n\n")
		if !found {
			return nil, fmt.Errorf("unterminated frame %q", rest)
		}
		payload, ok := strings.CutPrefix(frame, "data: ")
		if !ok {
			return nil, fmt.Errorf("frame %q has no data prefix", frame)
		}
		payloads = append(payloads, payload)
		rest = tail
	}
	return payloads, nil
}
