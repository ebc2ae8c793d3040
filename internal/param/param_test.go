package param

import (
	"errors"
	"testing"
)

func testSpace(t *testing.T) *Space {
	t.Helper()
	s, err := NewSpace(
		Parameter{Name: "A", Min: 2, Max: 7, Estimate: Est(4)},
		Parameter{Name: "B", Min: -1, Max: 12, Estimate: Est(3)},
		Parameter{Name: "C", Min: 0, Max: 10, Estimate: Est(5)},
		Parameter{Name: "D", Min: 1.5, Max: 5, Estimate: Est(4.6)},
	)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	return s
}

func TestNewSpaceValidation(t *testing.T) {
	cases := []struct {
		name   string
		params []Parameter
	}{
		{"too few", []Parameter{{Name: "A", Min: 0, Max: 1}}},
		{"empty name", []Parameter{{Name: "", Min: 0, Max: 1}, {Name: "B", Min: 0, Max: 1}}},
		{"duplicate", []Parameter{{Name: "A", Min: 0, Max: 1}, {Name: "A", Min: 0, Max: 1}}},
		{"dash in name", []Parameter{{Name: "k-scale", Min: 0, Max: 1}, {Name: "B", Min: 0, Max: 1}}},
		{"inverted range", []Parameter{{Name: "A", Min: 1, Max: 0}, {Name: "B", Min: 0, Max: 1}}},
		{"estimate outside range", []Parameter{
			{Name: "A", Min: 0, Max: 1, Estimate: Est(2)},
			{Name: "B", Min: 0, Max: 1},
		}},
	}
	for _, tc := range cases {
		if _, err := NewSpace(tc.params...); err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
	}
}

func TestBoundsAndEstimate(t *testing.T) {
	s := testSpace(t)

	lo, hi, err := s.Bounds("B")
	if err != nil {
		t.Fatalf("Bounds: %v", err)
	}
	if lo != -1 || hi != 12 {
		t.Errorf("Bounds(B) = [%g, %g], want [-1, 12]", lo, hi)
	}

	est, err := s.Estimate("D")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est == nil || *est != 4.6 {
		t.Errorf("Estimate(D) = %v, want 4.6", est)
	}

	if _, _, err := s.Bounds("nope"); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("Bounds(nope) error = %v, want ErrUnknownParameter", err)
	}
}

func TestActiveClassification(t *testing.T) {
	s := testSpace(t)

	// No classification recorded: everything is active.
	if got := s.Active(1); len(got) != 4 {
		t.Fatalf("Active(1) = %v, want all 4 parameters", got)
	}

	if err := s.SetActive(2, []string{"C", "A"}); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	got := s.Active(2)
	if len(got) != 2 || got[0] != "A" || got[1] != "C" {
		t.Errorf("Active(2) = %v, want sorted [A C]", got)
	}

	active, err := s.IsActive("B", 2)
	if err != nil {
		t.Fatalf("IsActive: %v", err)
	}
	if active {
		t.Error("IsActive(B, 2) = true, want false")
	}

	if _, err := s.IsActive("nope", 2); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("IsActive(nope) error = %v, want ErrUnknownParameter", err)
	}

	if err := s.SetActive(0, []string{"A"}); err == nil {
		t.Error("SetActive(0) accepted a non-1-based iteration")
	}
	if err := s.SetActive(2, []string{"missing"}); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("SetActive(unknown) error = %v, want ErrUnknownParameter", err)
	}
}
