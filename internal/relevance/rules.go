package relevance

import (
	"fmt"
	"path/filepath"
	"strings"
)

// verdict is a confident rule decision. A nil verdict means the rule
// cannot decide and the cascade continues.
type verdict struct {
	Tier      Tier
	Score     float64
	Announce  bool
	Priority  int
	Reasoning string
}

// rule inspects one event. Rules are checked in order; the first
// confident verdict is final and the model is never consulted.
type rule struct {
	Name  string
	Match func(Event) bool
	Judge func(Event, *Preferences) *verdict
}

// Preferences tune the rule table per user.
type Preferences struct {
	VIPSenders []string
	VIPDomains []string
}

func defaultRules() []rule {
	return []rule{
		{
			Name:  "security_severity",
			Match: func(e Event) bool { return e.Source == "security" },
			Judge: judgeSecurity,
		},
		{
			Name:  "email_importance",
			Match: func(e Event) bool { return e.Source == "email" && e.Type == "new_email" },
			Judge: judgeEmail,
		},
		{
			Name:  "resource_pressure",
			Match: func(e Event) bool { return e.Source == "system" && e.Type == "resource_alert" },
			Judge: judgeResource,
		},
		{
			Name:  "file_deleted",
			Match: func(e Event) bool { return e.Source == "filesystem" && e.Type == "file_deleted" },
			Judge: judgeFileDeleted,
		},
	}
}

func judgeSecurity(e Event, _ *Preferences) *verdict {
	switch payloadString(e, "severity") {
	case "critical", "high":
		return &verdict{TierCritical, 1.0, true, 10, "security event with high severity"}
	case "medium":
		return &verdict{TierHigh, 0.8, true, 7, "security event with medium severity"}
	}
	return nil
}

func judgeEmail(e Event, prefs *Preferences) *verdict {
	sender := strings.ToLower(payloadString(e, "sender"))
	if payloadString(e, "importance") == "high" || isVIP(sender, prefs) {
		return &verdict{TierHigh, 0.85, true, 8, fmt.Sprintf("important email from %s", sender)}
	}
	return nil
}

func judgeResource(e Event, _ *Preferences) *verdict {
	usage := payloadFloat(e, "cpu_percent")
	for _, key := range []string{"memory_percent", "goroutine_percent"} {
		if v := payloadFloat(e, key); v > usage {
			usage = v
		}
	}
	switch {
	case usage > 95:
		return &verdict{TierHigh, 0.9, true, 9, fmt.Sprintf("resource usage at %.0f%%", usage)}
	case usage > 80:
		return &verdict{TierMedium, 0.6, false, 5, fmt.Sprintf("resource usage elevated at %.0f%%", usage)}
	}
	return nil
}

var documentExtensions = map[string]struct{}{
	".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".pdf": {}, ".txt": {}, ".md": {}, ".odt": {}, ".pages": {},
}

func judgeFileDeleted(e Event, _ *Preferences) *verdict {
	path := payloadString(e, "path")
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := documentExtensions[ext]; ok {
		return &verdict{TierMedium, 0.6, true, 6, fmt.Sprintf("document deleted: %s", path)}
	}
	return &verdict{TierLow, 0.2, false, 2, "non-document file deleted"}
}

func isVIP(sender string, prefs *Preferences) bool {
	if prefs == nil || sender == "" {
		return false
	}
	for _, vip := range prefs.VIPSenders {
		if strings.EqualFold(vip, sender) {
			return true
		}
	}
	if at := strings.LastIndexByte(sender, '@'); at >= 0 {
		domain := sender[at+1:]
		for _, vip := range prefs.VIPDomains {
			if strings.EqualFold(vip, domain) {
				return true
			}
		}
	}
	return false
}

func payloadString(e Event, key string) string {
	s, _ := e.Payload[key].(string)
	return strings.ToLower(strings.TrimSpace(s))
}

func payloadFloat(e Event, key string) float64 {
	switch v := e.Payload[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}
