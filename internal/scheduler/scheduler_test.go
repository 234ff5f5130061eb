package scheduler

import "testing"

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	// Should add a valid cron job without error
	id, err := s.AddJob("* * * * *", func() {})
	if err != nil {
		t.Fatalf("Expected no error adding job, got %v", err)
	}
	if id <= 0 {
		t.Errorf("Expected positive entry id, got %d", id)
	}
	if s.Next(id).IsZero() {
		t.Error("Expected next activation time for scheduled job")
	}
	if s.Len() != 1 {
		t.Errorf("Expected 1 job, got %d", s.Len())
	}
	s.Remove(id)
	if s.Len() != 0 {
		t.Errorf("Expected no jobs after remove, got %d", s.Len())
	}
	if !s.Next(id).IsZero() {
		t.Error("Expected removed job to have no next activation")
	}
}

func TestSchedulerInvalidExpression(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	for _, expr := range []string{"", "* * *", "0 0 * * * *", "61 * * * *"} {
		if _, err := s.AddJob(expr, func() {}); err == nil {
			t.Errorf("Expected error for %q", expr)
		}
		if err := s.Validate(expr); err == nil {
			t.Errorf("Expected Validate error for %q", expr)
		}
	}
	if err := s.Validate("0 9 * * 1"); err != nil {
		t.Errorf("Expected valid expression, got %v", err)
	}
}
