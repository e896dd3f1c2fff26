package utils

import (
	"fmt"
	"strings"
)

// SliceToString renders items as a numbered block under label.
func SliceToString[T any](label string, items []T) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("----- %s -----\n", label))

	if len(items) == 0 {
		sb.WriteString("(Empty)\n")
	} else {
		for i, item := range items {
			sb.WriteString(fmt.Sprintf("[%d]: %v\n", i, item))
		}
	}

	sb.WriteString("--------------------\n")
	return sb.String()
}

// SplitList splits a comma separated list, trimming blanks and dropping
// empty entries.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
