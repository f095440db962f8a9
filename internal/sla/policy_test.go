package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSecondsForPriority(t *testing.T) {
	cases := []struct {
		priority string
		want     int64
	}{
		{"urgent", 7200},
		{"Urgent", 7200},
		{"URGENT", 7200},
		{"high", 86400},
		{"High", 86400},
		{"medium", 259200},
		{" Medium ", 259200},
		{"low", 604800},
		{"Low", 604800},
		{"", 604800},
		{"critical", 604800},
		{"!!", 604800},
	}

	for _, tt := range cases {
		assert.Equalf(t, tt.want, SecondsForPriority(tt.priority), "priority %q", tt.priority)
	}
}

func TestDeadline(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(2*time.Hour), Deadline(now, "urgent"))
	assert.Equal(t, now.Add(7*24*time.Hour), Deadline(now, "whatever"))
}
