package optimizer

import (
	"github.com/chewxy/math32"
	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn"
)

// Adam is Adaptive Moment Estimation: it tracks per-parameter first and
// second moment estimates of the gradient, bias-corrected by the global
// step count t.
type Adam struct {
	LearningRate float32
	Beta1        float32
	Beta2        float32
	Epsilon      float32

	m map[*graph.Node][]float32
	v map[*graph.Node][]float32
	t int
}

// NewAdam returns an Adam optimizer with the given hyperparameters.
func NewAdam(lr, beta1, beta2, eps float32) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        beta1,
		Beta2:        beta2,
		Epsilon:      eps,
		m:            make(map[*graph.Node][]float32),
		v:            make(map[*graph.Node][]float32),
	}
}

// SetLearningRate updates the learning rate used by subsequent Step calls.
func (a *Adam) SetLearningRate(lr float32) { a.LearningRate = lr }

// Step applies one Adam update to every parameter with a non-nil gradient.
//
//	m_t = beta1*m_{t-1} + (1-beta1)*grad
//	v_t = beta2*v_{t-1} + (1-beta2)*grad^2
//	param -= lr * m_hat / (sqrt(v_hat) + eps)
func (a *Adam) Step(params []nn.NamedParameter) {
	a.t++
	beta1Corr := 1 - math32.Pow(a.Beta1, float32(a.t))
	beta2Corr := 1 - math32.Pow(a.Beta2, float32(a.t))

	for _, p := range params {
		grad := p.Node.Grad()
		if grad == nil {
			continue
		}
		value := p.Node.Value().Data()
		gradData := grad.Data()

		mVec, ok := a.m[p.Node]
		if !ok {
			mVec = make([]float32, len(value))
			a.m[p.Node] = mVec
		}
		vVec, ok := a.v[p.Node]
		if !ok {
			vVec = make([]float32, len(value))
			a.v[p.Node] = vVec
		}

		for i := range value {
			g := gradData[i]
			mVec[i] = a.Beta1*mVec[i] + (1-a.Beta1)*g
			vVec[i] = a.Beta2*vVec[i] + (1-a.Beta2)*g*g

			mHat := mVec[i] / beta1Corr
			vHat := vVec[i] / beta2Corr

			value[i] -= a.LearningRate * mHat / (math32.Sqrt(vHat) + a.Epsilon)
		}
	}
}
