package geom

import (
	"math"
	"testing"
)

const eps = 1e-9

func TestVectorArithmetic(t *testing.T) {
	a := V(1, 2)
	b := V(3, -4)

	if got := a.Add(b); got != V(4, -2) {
		t.Errorf("Add: got %v, want (4, -2)", got)
	}
	if got := a.Sub(b); got != V(-2, 6) {
		t.Errorf("Sub: got %v, want (-2, 6)", got)
	}
	if got := b.Scale(0.5); got != V(1.5, -2) {
		t.Errorf("Scale: got %v, want (1.5, -2)", got)
	}
	if got := b.Length(); got != 5 {
		t.Errorf("Length: got %f, want 5", got)
	}

	// operands are values and must not change
	if a != V(1, 2) || b != V(3, -4) {
		t.Errorf("operands mutated: a=%v b=%v", a, b)
	}
}

func TestNormalized(t *testing.T) {
	tests := []struct {
		name string
		in   Vector
		want float64
	}{
		{"zero", Zero, 0},
		{"unit x", V(1, 0), 1},
		{"diagonal", V(3, 4), 1},
		{"negative", V(-0.001, -7), 1},
		{"large", V(1e150, 1e150), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalized().Length()
			if math.Abs(got-tt.want) > eps {
				t.Errorf("Normalized().Length() = %f, want %f", got, tt.want)
			}
		})
	}

	if n := Zero.Normalized(); !n.IsZero() {
		t.Errorf("zero vector should normalize to zero, got %v", n)
	}

	n := V(3, 4).Normalized()
	if math.Abs(n.X-0.6) > eps || math.Abs(n.Y-0.8) > eps {
		t.Errorf("direction not preserved: got %v", n)
	}
}

func TestString(t *testing.T) {
	if got := V(1.234, -5).String(); got != "(1.23, -5.00)" {
		t.Errorf("String() = %q", got)
	}
}
