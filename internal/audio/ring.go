package audio

import "sync"

// ring is a bounded sample queue. Writes past capacity drop the oldest
// samples so output latency stays bounded.
type ring struct {
	mu    sync.Mutex
	data  []int16
	start int
	size  int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{data: make([]int16, capacity)}
}

func (r *ring) write(samples []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.data)
	if len(samples) >= capacity {
		copy(r.data, samples[len(samples)-capacity:])
		r.start = 0
		r.size = capacity
		return
	}

	if overflow := r.size + len(samples) - capacity; overflow > 0 {
		r.start = (r.start + overflow) % capacity
		r.size -= overflow
	}

	end := (r.start + r.size) % capacity
	n := copy(r.data[end:], samples)
	copy(r.data, samples[n:])
	r.size += len(samples)
}

func (r *ring) read(out []int16) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := min(len(out), r.size)
	capacity := len(r.data)
	n := copy(out[:want], r.data[r.start:min(r.start+want, capacity)])
	copy(out[n:want], r.data)
	r.start = (r.start + want) % capacity
	r.size -= want
	return want
}

func (r *ring) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

func (r *ring) reset() {
	r.mu.Lock()
	r.start = 0
	r.size = 0
	r.mu.Unlock()
}
