package matching

import (
	"fmt"
	"sort"
)

// Day is a single-letter weekday key.
type Day string

// Weekday keys, Monday through Saturday.
const (
	Monday    Day = "M"
	Tuesday   Day = "T"
	Wednesday Day = "W"
	Thursday  Day = "R"
	Friday    Day = "F"
	Saturday  Day = "S"
)

// Days lists the weekday keys in calendar order.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// Timeslots lists the fixed daily windows shared by tutee and tutor schedules.
var Timeslots = []string{
	"07:30-09:00",
	"09:00-10:30",
	"10:30-12:00",
	"12:00-13:30",
	"13:30-15:00",
	"15:00-16:30",
	"16:30-18:00",
}

var (
	dayIndex  = indexDays(Days)
	slotIndex = indexSlots(Timeslots)
)

// Schedule maps each weekday to the timeslots that are free on it.
type Schedule map[Day][]string

// IsDay reports whether d is one of the known weekday keys.
func IsDay(d Day) bool {
	_, ok := dayIndex[d]
	return ok
}

// IsTimeslot reports whether slot is one of the canonical timeslots.
func IsTimeslot(slot string) bool {
	_, ok := slotIndex[slot]
	return ok
}

// Overlap counts the (day, timeslot) pairs free in both schedules.
// Repeated labels within a day count once; unknown days and slots never match.
func (s Schedule) Overlap(other Schedule) int {
	if len(s) == 0 || len(other) == 0 {
		return 0
	}
	total := 0
	for _, day := range Days {
		mine, theirs := s[day], other[day]
		if len(mine) == 0 || len(theirs) == 0 {
			continue
		}
		free := make(map[string]struct{}, len(theirs))
		for _, slot := range theirs {
			free[slot] = struct{}{}
		}
		seen := make(map[string]struct{}, len(mine))
		for _, slot := range mine {
			if _, dup := seen[slot]; dup {
				continue
			}
			seen[slot] = struct{}{}
			if _, ok := free[slot]; ok && IsTimeslot(slot) {
				total++
			}
		}
	}
	return total
}

// Validate rejects unknown weekday keys and timeslot labels.
func (s Schedule) Validate() error {
	for day, slots := range s {
		if !IsDay(day) {
			return fmt.Errorf("unknown weekday %q", day)
		}
		for _, slot := range slots {
			if !IsTimeslot(slot) {
				return fmt.Errorf("unknown timeslot %q on %s", slot, day)
			}
		}
	}
	return nil
}

// Normalize returns a copy with duplicate slots removed, slots in canonical
// order and empty days dropped.
func (s Schedule) Normalize() Schedule {
	out := make(Schedule, len(s))
	for day, slots := range s {
		seen := make(map[string]struct{}, len(slots))
		kept := make([]string, 0, len(slots))
		for _, slot := range slots {
			if _, dup := seen[slot]; dup {
				continue
			}
			seen[slot] = struct{}{}
			kept = append(kept, slot)
		}
		if len(kept) == 0 {
			continue
		}
		sort.SliceStable(kept, func(i, j int) bool {
			return slotOrder(kept[i]) < slotOrder(kept[j])
		})
		out[day] = kept
	}
	return out
}

// Size counts the free (day, timeslot) pairs.
func (s Schedule) Size() int {
	return s.Overlap(s)
}

func slotOrder(slot string) int {
	if idx, ok := slotIndex[slot]; ok {
		return idx
	}
	return len(Timeslots)
}

func indexDays(days []Day) map[Day]int {
	idx := make(map[Day]int, len(days))
	for i, d := range days {
		idx[d] = i
	}
	return idx
}

func indexSlots(slots []string) map[string]int {
	idx := make(map[string]int, len(slots))
	for i, s := range slots {
		idx[s] = i
	}
	return idx
}
