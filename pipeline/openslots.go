package pipeline

import (
	"sort"
	"strconv"
	"strings"
)

// dayCodes maps the provider's German day names to two-letter codes used in
// slot tokens. Unknown day names fall back to their first two letters.
var dayCodes = map[string]string{
	"Montag":     "Mo",
	"Dienstag":   "Di",
	"Mittwoch":   "Mi",
	"Donnerstag": "Do",
	"Freitag":    "Fr",
	"Samstag":    "Sa",
	"Sonntag":    "So",
}

// ComputeOpenSlots converts a weekly opening-hours map ("Montag" ->
// "13:00–22:00, 23:00–01:00") into sorted 2-hour slot tokens like "Mo12".
func ComputeOpenSlots(openingHours map[string]string) []string {
	if len(openingHours) == 0 {
		return nil
	}
	slotSet := make(map[string]struct{})
	for dayName, hours := range openingHours {
		day, ok := dayCodes[dayName]
		if !ok {
			runes := []rune(dayName)
			if len(runes) < 2 {
				continue
			}
			day = string(runes[:2])
		}
		trimmed := strings.ToLower(strings.TrimSpace(hours))
		if trimmed == "" || trimmed == "geschlossen" || trimmed == "closed" {
			continue
		}
		for _, rng := range strings.Split(hours, ",") {
			for _, h := range blockHours(strings.TrimSpace(rng)) {
				slotSet[day+pad2(h)] = struct{}{}
			}
		}
	}
	slots := make([]string, 0, len(slotSet))
	for s := range slotSet {
		slots = append(slots, s)
	}
	sort.Strings(slots)
	return slots
}

// blockHours parses "13:00–15:45" into the 2-hour block start hours that
// overlap the range. En and em dashes are normalized to hyphens first.
func blockHours(s string) []int {
	s = strings.NewReplacer("–", "-", "—", "-").Replace(s)
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return nil
	}
	start, ok := parseHour(parts[0])
	if !ok {
		return nil
	}
	endStr := strings.TrimSpace(parts[1])
	end, ok := parseHour(endStr)
	if !ok {
		return nil
	}
	if i := strings.Index(endStr, ":"); i >= 0 {
		if m, err := strconv.Atoi(strings.TrimSpace(endStr[i+1:])); err == nil && m > 0 {
			end++ // partial hour touches the next block
		}
	}
	var blocks []int
	for h := 0; h < 24; h += 2 {
		if h < end && h+2 > start {
			blocks = append(blocks, h)
		}
	}
	return blocks
}

func parseHour(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	h, err := strconv.Atoi(s)
	if err != nil || h < 0 || h > 24 {
		return 0, false
	}
	return h, true
}

func pad2(h int) string {
	if h < 10 {
		return "0" + strconv.Itoa(h)
	}
	return strconv.Itoa(h)
}
