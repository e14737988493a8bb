// Package optimizer implements parameter-update rules over a module's
// named parameters: plain Stochastic Gradient Descent and Adam.
package optimizer

import "github.com/rz-123/TinyAI-sub001/nn"

// Optimizer mutates a module's parameters in place from their accumulated
// gradients.
type Optimizer interface {
	Step(params []nn.NamedParameter)
	SetLearningRate(lr float32)
}
