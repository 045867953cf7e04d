package ctt

import "strings"

// NewViewTracker lists every audience group except the actor's as not having
// seen the latest change.
func NewViewTracker(audience []string, actorGroup string) string {
	unseen := make([]string, 0, len(audience))
	for _, group := range audience {
		if group == "" || group == actorGroup {
			continue
		}
		unseen = append(unseen, group)
	}
	if len(unseen) == 0 {
		return None
	}
	return strings.Join(unseen, ".")
}

// AckViewTracker removes group from a stored view tracker.
func AckViewTracker(current string, group string) string {
	parts := strings.Split(current, ".")
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == None || part == group {
			continue
		}
		kept = append(kept, part)
	}
	if len(kept) == 0 {
		return None
	}
	return strings.Join(kept, ".")
}

// ToggleTicket adds value to the ticket list, or removes it when already present.
func ToggleTicket(current string, value string) string {
	value = strings.TrimSpace(value)
	parts := strings.Split(current, ",")
	kept := make([]string, 0, len(parts)+1)
	found := false
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || part == None {
			continue
		}
		if part == value {
			found = true
			continue
		}
		kept = append(kept, part)
	}
	if !found && value != "" && value != None {
		kept = append(kept, value)
	}
	if len(kept) == 0 {
		return None
	}
	return strings.Join(kept, ",")
}
