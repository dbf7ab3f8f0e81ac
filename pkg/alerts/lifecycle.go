// Package alerts models the alert lifecycle: a single unacknowledged to
// acknowledged transition, immutable priorities, and the trailing weekly
// window used by the dashboard counts.
package alerts

import (
	"time"

	"github.com/vigia-iot/vigia/pkg/model"
)

// State is the lifecycle state of an alert.
type State string

const (
	StateUnacknowledged State = "unacknowledged"
	StateAcknowledged   State = "acknowledged"
)

// StateOf derives the lifecycle state from the alert record.
func StateOf(a *model.Alert) State {
	if a.Acknowledged {
		return StateAcknowledged
	}
	return StateUnacknowledged
}

// Acknowledge moves the alert to the acknowledged state. The transition is
// monotonic: acknowledging an already-acknowledged alert is a no-op, never
// an error, and there is no reverse transition.
func Acknowledge(a *model.Alert) {
	a.Acknowledged = true
}

// WindowDays is the length of the dashboard's trailing alert window.
const WindowDays = 7

// WeeklyWindow returns the trailing window [now-7d, now], inclusive of now.
// Evaluated at call time, never cached.
func WeeklyWindow(now time.Time) (from, to time.Time) {
	return now.AddDate(0, 0, -WindowDays), now
}

// InWindow reports whether the alert was created within [from, to].
func InWindow(a *model.Alert, from, to time.Time) bool {
	return !a.CreatedAt.Before(from) && !a.CreatedAt.After(to)
}

// PartitionByPriority buckets the alerts created within [from, to] by
// priority. Each alert contributes to exactly one bucket; every known
// priority is present in the result even when its count is zero.
func PartitionByPriority(list []model.Alert, from, to time.Time) map[model.Priority]int {
	counts := make(map[model.Priority]int, 3)
	for _, p := range model.Priorities() {
		counts[p] = 0
	}
	for i := range list {
		if InWindow(&list[i], from, to) {
			counts[list[i].Priority]++
		}
	}
	return counts
}
