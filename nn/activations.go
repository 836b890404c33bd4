package nn

import (
	"fmt"

	"github.com/seplab/dptnet/tensor"
)

// ActivationByName resolves an elementwise activation by its config name.
// Unknown names fail here so a bad config never reaches a forward pass.
func ActivationByName(name string) (func(*tensor.Tensor) *tensor.Tensor, error) {
	switch name {
	case "relu":
		return tensor.ReLU, nil
	case "sigmoid":
		return tensor.Sigmoid, nil
	case "tanh":
		return tensor.Tanh, nil
	}
	return nil, fmt.Errorf("nn: unknown activation %q", name)
}
