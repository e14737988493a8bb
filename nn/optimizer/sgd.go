package optimizer

import "github.com/rz-123/TinyAI-sub001/nn"

// SGD is plain Stochastic Gradient Descent: param -= lr * grad. Params
// with no accumulated gradient (never touched by Backward this step) are
// skipped rather than treated as zero.
type SGD struct {
	LearningRate float32
}

// NewSGD returns an SGD optimizer with the given learning rate.
func NewSGD(lr float32) *SGD {
	return &SGD{LearningRate: lr}
}

// SetLearningRate updates the learning rate used by subsequent Step calls.
func (s *SGD) SetLearningRate(lr float32) { s.LearningRate = lr }

// Step applies one SGD update to every parameter with a non-nil gradient.
func (s *SGD) Step(params []nn.NamedParameter) {
	for _, p := range params {
		grad := p.Node.Grad()
		if grad == nil {
			continue
		}
		value := p.Node.Value().Data()
		gradData := grad.Data()
		for i := range value {
			value[i] -= s.LearningRate * gradData[i]
		}
	}
}
