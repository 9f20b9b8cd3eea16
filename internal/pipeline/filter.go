package pipeline

import (
	"strings"

	"github.com/TimUx/alarm-monitor/internal/domain"
)

// MatchesActivationGroups reports whether an alarm concerns one of the
// configured groups. A filter term matches a unit code exactly or appears
// anywhere in a dispatch group text, both compared in upper case. With no
// filters every alarm matches.
func MatchesActivationGroups(alarm domain.Alarm, filters []string) bool {
	if len(filters) == 0 {
		return true
	}

	codes := make(map[string]struct{}, len(alarm.DispatchGroupCodes))
	for _, code := range alarm.DispatchGroupCodes {
		codes[strings.ToUpper(code)] = struct{}{}
	}
	texts := make([]string, 0, len(alarm.DispatchGroups))
	for _, group := range alarm.DispatchGroups {
		texts = append(texts, strings.ToUpper(group))
	}

	for _, filter := range filters {
		target := strings.ToUpper(strings.TrimSpace(filter))
		if target == "" {
			continue
		}
		if _, ok := codes[target]; ok {
			return true
		}
		for _, text := range texts {
			if strings.Contains(text, target) {
				return true
			}
		}
	}
	return false
}
