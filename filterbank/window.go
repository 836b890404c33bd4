package filterbank

import (
	"fmt"
	"math"
)

// buildWindow returns the named window of the given size. Windows are
// periodic, matching the overlap-add analysis the bases are used with.
func buildWindow(name string, size int) ([]float32, error) {
	win := make([]float32, size)
	switch name {
	case "", WindowHann:
		for i := range win {
			win[i] = float32(0.5 - 0.5*math.Cos(2.0*math.Pi*float64(i)/float64(size)))
		}
	case WindowHamming:
		for i := range win {
			win[i] = float32(0.54 - 0.46*math.Cos(2.0*math.Pi*float64(i)/float64(size)))
		}
	case WindowRect:
		for i := range win {
			win[i] = 1
		}
	default:
		return nil, fmt.Errorf("filterbank: unknown window %q", name)
	}
	return win, nil
}
