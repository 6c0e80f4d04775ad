package util

import "testing"

func TestAbs(t *testing.T) {
	if Abs(-5) != 5 {
		t.Error("Abs(-5) should be 5")
	}
	if Abs(5) != 5 {
		t.Error("Abs(5) should be 5")
	}
	if Abs(int16(-32)) != 32 {
		t.Error("Abs(int16(-32)) should be 32")
	}
	if Abs(float32(-3.5)) != float32(3.5) {
		t.Error("Abs(float32(-3.5)) should be 3.5")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		x, lo, hi, want int
	}{
		{5, 0, 10, 5},
		{-3, 0, 10, 0},
		{42, 0, 10, 10},
		{0, 0, 0, 0},
	}
	for _, tt := range tests {
		if got := Clamp(tt.x, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tt.x, tt.lo, tt.hi, got, tt.want)
		}
	}
	if got := Clamp(1.5, -1.0, 1.0); got != 1.0 {
		t.Errorf("Clamp(1.5) = %v, want 1", got)
	}
}

func TestILog(t *testing.T) {
	tests := []struct {
		x    uint32
		want int
	}{
		{0, 0}, {1, 1}, {2, 2}, {3, 2}, {255, 8}, {256, 9}, {1 << 31, 32},
	}
	for _, tt := range tests {
		if got := ILog(tt.x); got != tt.want {
			t.Errorf("ILog(%d) = %d, want %d", tt.x, got, tt.want)
		}
	}
	if got := ILog64(1 << 40); got != 41 {
		t.Errorf("ILog64(1<<40) = %d, want 41", got)
	}
}
