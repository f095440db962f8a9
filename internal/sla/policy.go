// Package sla maps ticket priority to a resolution deadline.
package sla

import (
	"strings"
	"time"
)

const (
	urgentSeconds  int64 = 2 * 60 * 60
	highSeconds    int64 = 24 * 60 * 60
	mediumSeconds  int64 = 3 * 24 * 60 * 60
	defaultSeconds int64 = 7 * 24 * 60 * 60
)

// SecondsForPriority returns the deadline offset for a priority label.
// Unknown and empty labels fall back to the low-priority window.
func SecondsForPriority(priority string) int64 {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case "urgent":
		return urgentSeconds
	case "high":
		return highSeconds
	case "medium":
		return mediumSeconds
	default:
		return defaultSeconds
	}
}

// Deadline is now plus the priority's offset.
func Deadline(now time.Time, priority string) time.Time {
	return now.Add(time.Duration(SecondsForPriority(priority)) * time.Second)
}
