package output

import "sync"

// ChartPoints is the capacity of the chart history.
const ChartPoints = 1000

// Ring is a fixed-capacity window of the most recent samples. It starts
// zero-filled so it always holds exactly Cap values.
type Ring struct {
	mu   sync.Mutex
	data []float64
	// head is the index of the oldest sample
	head int
}

func NewRing(capacity int) *Ring {
	return &Ring{data: make([]float64, capacity)}
}

// Push appends v, discarding the oldest sample.
func (r *Ring) Push(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
}

func (r *Ring) Cap() int {
	return len(r.data)
}

// Values returns all samples, oldest first.
func (r *Ring) Values() []float64 {
	return r.Last(len(r.data))
}

// Last returns the n most recent samples, oldest first.
func (r *Ring) Last(n int) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > len(r.data) {
		n = len(r.data)
	}
	if n < 0 {
		n = 0
	}
	out := make([]float64, n)
	start := r.head + len(r.data) - n
	for i := range out {
		out[i] = r.data[(start+i)%len(r.data)]
	}
	return out
}
