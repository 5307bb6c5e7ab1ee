package core

// Model is a frozen sequence classifier: one encoding in, one logit per
// class out. Implementations must be safe for concurrent Forward calls.
type Model interface {
	Forward(enc Encoding) ([]float32, error)

	Release()
}

type ModelLoader func(path string, numLabels int) (Model, error)
