package core

import "testing"

func TestSchedulerOrder(t *testing.T) {
	var s Scheduler
	var fired []int

	mk := func(id int, wake uint32) *Timer {
		return &Timer{
			WakeTime: wake,
			Handler: func(*Timer, uint32) uint8 {
				fired = append(fired, id)
				return SF_DONE
			},
		}
	}

	s.Schedule(mk(3, 30))
	s.Schedule(mk(1, 10))
	s.Schedule(mk(2, 20))

	if s.Pending() != 3 {
		t.Fatalf("Expected 3 pending timers, got %d", s.Pending())
	}

	s.Dispatch(20)
	if len(fired) != 2 || fired[0] != 1 || fired[1] != 2 {
		t.Errorf("Expected timers 1,2 to fire in order, got %v", fired)
	}

	s.Dispatch(29)
	if len(fired) != 2 {
		t.Errorf("Timer 3 fired early: %v", fired)
	}

	s.Dispatch(30)
	if len(fired) != 3 || s.Pending() != 0 {
		t.Errorf("Expected all timers fired, got %v with %d pending", fired, s.Pending())
	}
}

func TestSchedulerReschedule(t *testing.T) {
	var s Scheduler
	count := 0
	timer := &Timer{WakeTime: 5}
	timer.Handler = func(tm *Timer, now uint32) uint8 {
		count++
		if count == 3 {
			return SF_DONE
		}
		tm.WakeTime = now + 5
		return SF_RESCHEDULE
	}
	s.Schedule(timer)

	for now := uint32(0); now <= 30; now++ {
		s.Dispatch(now)
	}
	if count != 3 {
		t.Errorf("Expected 3 runs, got %d", count)
	}
}

func TestSchedulerMoveAndCancel(t *testing.T) {
	var s Scheduler
	fired := 0
	timer := &Timer{WakeTime: 10, Handler: func(*Timer, uint32) uint8 {
		fired++
		return SF_DONE
	}}

	s.Schedule(timer)
	timer.WakeTime = 50
	s.Schedule(timer) // moves rather than duplicates
	if s.Pending() != 1 {
		t.Fatalf("Expected 1 pending timer, got %d", s.Pending())
	}

	s.Dispatch(10)
	if fired != 0 {
		t.Error("Moved timer fired at its old wake time")
	}

	s.Cancel(timer)
	s.Dispatch(60)
	if fired != 0 || s.Pending() != 0 {
		t.Errorf("Cancelled timer fired=%d pending=%d", fired, s.Pending())
	}
}

func TestSchedulerWraparound(t *testing.T) {
	var s Scheduler
	var fired []int
	s.Schedule(&Timer{WakeTime: 0xFFFFFFF0, Handler: func(*Timer, uint32) uint8 {
		fired = append(fired, 1)
		return SF_DONE
	}})
	s.Schedule(&Timer{WakeTime: 0x10, Handler: func(*Timer, uint32) uint8 {
		fired = append(fired, 2)
		return SF_DONE
	}})

	s.Dispatch(0xFFFFFFF8)
	if len(fired) != 1 || fired[0] != 1 {
		t.Errorf("Expected only the pre-wrap timer, got %v", fired)
	}
	s.Dispatch(0x10)
	if len(fired) != 2 {
		t.Errorf("Expected post-wrap timer to fire, got %v", fired)
	}
}
