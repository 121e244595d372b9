package errsink

import "testing"

func TestSink_ZeroValueIsEmpty(t *testing.T) {
	var s Sink
	if s.Error() != nil {
		t.Errorf("Error() = %v, want nil", s.Error())
	}
	if s.Clear() {
		t.Error("Clear() on empty sink = true, want false")
	}
}

func TestSink_SetAndClear(t *testing.T) {
	var s Sink

	s.Set("YARN ResourceManager (RM) is out of reach.")
	got := s.Error()
	if got == nil {
		t.Fatal("Error() = nil after Set")
	}
	if got.Message != "YARN ResourceManager (RM) is out of reach." {
		t.Errorf("Message = %q", got.Message)
	}
	if got.At.IsZero() {
		t.Error("At is zero, want set")
	}

	if !s.Clear() {
		t.Error("Clear() = false, want true")
	}
	if s.Error() != nil {
		t.Error("Error() != nil after Clear")
	}
}

func TestSink_ErrorReturnsCopy(t *testing.T) {
	var s Sink
	s.Set("first")

	e := s.Error()
	e.Message = "mutated"

	if got := s.Error().Message; got != "first" {
		t.Errorf("Message = %q after mutating copy, want %q", got, "first")
	}
}
