package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TimUx/alarm-monitor/internal/domain"
)

func TestMatchesActivationGroups(t *testing.T) {
	alarm := domain.Alarm{
		DispatchGroups:     []string{"Fahrzeug WIL41-1", "FF Treysa Mitte"},
		DispatchGroupCodes: []string{"WIL41"},
	}

	tests := []struct {
		name    string
		filters []string
		want    bool
	}{
		{"no filters", nil, true},
		{"code match", []string{"WIL41"}, true},
		{"code match case-insensitive", []string{"wil41"}, true},
		{"substring of dispatch text", []string{"treysa"}, true},
		{"no match", []string{"WIL26"}, false},
		{"any filter matches", []string{"WIL26", "WIL41"}, true},
		{"blank filters ignored", []string{" "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesActivationGroups(alarm, tt.filters))
		})
	}
}

func TestMatchesActivationGroups_CodeOnlyAlarm(t *testing.T) {
	alarm := domain.Alarm{DispatchGroupCodes: []string{"WIL26"}}
	assert.True(t, MatchesActivationGroups(alarm, []string{"WIL26"}))
	assert.False(t, MatchesActivationGroups(alarm, []string{"WIL2"}), "codes match exactly")
}
