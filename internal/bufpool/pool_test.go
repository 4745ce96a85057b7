package bufpool

import "testing"

func TestNewPool(t *testing.T) {
	p, err := NewPool(4, 4096, 4096)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	if p.Len() != 4 {
		t.Errorf("Len() = %d, want 4", p.Len())
	}
	for i := 0; i < p.Len(); i++ {
		if p.Status(i) != StatusReadyForSubmit {
			t.Errorf("buffer %d status = %v, want ReadyForSubmit (zero value)", i, p.Status(i))
		}
		if p.Buffer(i).Index() != i {
			t.Errorf("buffer %d Index() = %d, want %d", i, p.Buffer(i).Index(), i)
		}
	}
}

func TestPool_Next(t *testing.T) {
	p, err := NewPool(3, 4096, 4096)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	tests := []struct {
		from, want int
	}{
		{0, 1},
		{1, 2},
		{2, 0},
	}
	for _, tt := range tests {
		if got := p.Next(tt.from); got != tt.want {
			t.Errorf("Next(%d) = %d, want %d", tt.from, got, tt.want)
		}
	}
}

func TestPool_SetStatus(t *testing.T) {
	p, err := NewPool(2, 4096, 4096)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	p.SetStatus(1, StatusInvalid)
	if p.Status(1) != StatusInvalid {
		t.Errorf("Status(1) = %v, want Invalid", p.Status(1))
	}
	if p.Status(0) != StatusReadyForSubmit {
		t.Errorf("Status(0) = %v, want ReadyForSubmit", p.Status(0))
	}
}

func TestNewPool_InvalidN(t *testing.T) {
	if _, err := NewPool(0, 4096, 4096); err == nil {
		t.Error("NewPool(0, ...) = nil error, want error")
	}
}
