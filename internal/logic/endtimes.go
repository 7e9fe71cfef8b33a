package logic

import "sort"

// DeriveEffectiveEnds computes the effective end time for every schedule.
// Explicit end times always win and are never overwritten. A schedule
// without one ends, on each device it references, at the next distinct
// start time on that device's timeline of enabled schedules, wrapping past
// midnight. When the schedule spans several devices, the latest (wrap-aware)
// of the per-device ends becomes its effective end, so it keeps controlling
// devices that have no later schedule while ceding the others sooner.
func DeriveEffectiveEnds(schedules []Schedule) map[string]Minute {
	ends := make(map[string]Minute, len(schedules))

	timelines := deviceTimelines(schedules)

	for i := range schedules {
		s := &schedules[i]
		if s.End != nil {
			ends[s.ID] = *s.End
			continue
		}

		// Span 0 means "no next start found yet"; a full-day window
		// (end == start) has span MinutesPerDay.
		bestSpan := Minute(0)
		end := s.Start
		for _, device := range s.Devices {
			devEnd := nextStart(timelines[device], s.Start)
			span := StartAge(devEnd, s.Start)
			if span == 0 {
				span = MinutesPerDay
			}
			if span > bestSpan {
				bestSpan = span
				end = devEnd
			}
		}
		ends[s.ID] = end
	}

	return ends
}

// deviceTimelines collects the sorted start times of all enabled schedules
// per device. Disabled schedules never truncate a neighbor's window.
func deviceTimelines(schedules []Schedule) map[string][]Minute {
	timelines := make(map[string][]Minute)
	for i := range schedules {
		s := &schedules[i]
		if !s.Enabled {
			continue
		}
		for _, device := range s.Devices {
			timelines[device] = append(timelines[device], s.Start)
		}
	}
	for device := range timelines {
		starts := timelines[device]
		sort.Slice(starts, func(a, b int) bool { return starts[a] < starts[b] })
	}
	return timelines
}

// nextStart returns the next chronological start after the given one,
// wrapping to the earliest start of the day. Entries equal to start are
// skipped so two schedules sharing a start time do not zero each other's
// window. With no other start on the timeline the schedule runs a full day,
// expressed as end == start.
func nextStart(timeline []Minute, start Minute) Minute {
	for _, t := range timeline {
		if t > start {
			return t
		}
	}
	for _, t := range timeline {
		if t < start {
			return t
		}
	}
	return start
}
