package nn

import (
	"math/rand"
	"testing"

	"github.com/seplab/dptnet/tensor"
)

func TestGLUShape(t *testing.T) {
	g, err := NewGLU(6, 12, "tanh", rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("NewGLU failed: %v", err)
	}
	out := g.Forward(tensor.New(2, 6, 9))
	if out.Shape[0] != 2 || out.Shape[1] != 12 || out.Shape[2] != 9 {
		t.Errorf("Expected shape [2 12 9], got %v", out.Shape)
	}
}

// tanh output times a sigmoid gate keeps every value inside (-1, 1).
func TestGLUTanhBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	g, err := NewGLU(4, 8, "tanh", rng)
	if err != nil {
		t.Fatalf("NewGLU failed: %v", err)
	}

	x := tensor.New(1, 4, 20)
	for i := range x.Data {
		x.Data[i] = float32(rng.NormFloat64() * 5)
	}

	out := g.Forward(x)
	for i, v := range out.Data {
		if v <= -1 || v >= 1 {
			t.Fatalf("out[%d] = %f escapes (-1, 1)", i, v)
		}
	}
}

func TestGLURejectsUnknownActivation(t *testing.T) {
	if _, err := NewGLU(4, 8, "bogus", nil); err == nil {
		t.Error("expected error for unknown activation")
	}
}
