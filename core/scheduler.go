package core

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint32
	Handler  func(t *Timer, now uint32) uint8
	Next     *Timer

	scheduled bool
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Scheduler keeps timers sorted by WakeTime and runs them from the main
// loop. It is never touched from an event handler, so it needs no masking.
type Scheduler struct {
	timerList *Timer
}

// Schedule adds a timer to the schedule, moving it if it is already queued
func (s *Scheduler) Schedule(t *Timer) {
	if t.scheduled {
		s.remove(t)
	}
	s.insertTimer(t)
}

// Cancel removes a timer from the schedule if it is queued
func (s *Scheduler) Cancel(t *Timer) {
	if t.scheduled {
		s.remove(t)
	}
}

// Pending returns the number of queued timers
func (s *Scheduler) Pending() int {
	n := 0
	for t := s.timerList; t != nil; t = t.Next {
		n++
	}
	return n
}

// insertTimer inserts a timer in sorted order by WakeTime
func (s *Scheduler) insertTimer(t *Timer) {
	t.scheduled = true
	if s.timerList == nil || timerIsBefore(t.WakeTime, s.timerList.WakeTime) {
		t.Next = s.timerList
		s.timerList = t
		return
	}

	current := s.timerList
	for current.Next != nil && timerIsBefore(current.Next.WakeTime, t.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

func (s *Scheduler) remove(t *Timer) {
	if s.timerList == t {
		s.timerList = t.Next
	} else {
		for cur := s.timerList; cur != nil; cur = cur.Next {
			if cur.Next == t {
				cur.Next = t.Next
				break
			}
		}
	}
	t.Next = nil
	t.scheduled = false
}

// Dispatch processes due timers
func (s *Scheduler) Dispatch(now uint32) {
	// Process all timers with WakeTime <= now
	for s.timerList != nil && !timerIsBefore(now, s.timerList.WakeTime) {
		timer := s.timerList
		s.timerList = timer.Next
		timer.Next = nil // Clear Next pointer to avoid circular references
		timer.scheduled = false

		// Reschedule if requested
		if timer.Handler(timer, now) == SF_RESCHEDULE {
			s.insertTimer(timer)
		}
	}
}
