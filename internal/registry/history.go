package registry

import "wisefido-telemetry/internal/models"

// HistorySize readings kept per device
const HistorySize = 20

// history fixed-capacity FIFO ring; oldest entry is evicted on overflow
type history struct {
	buf   [HistorySize]models.Reading
	start int
	size  int
}

func (h *history) push(r models.Reading) {
	if h.size < HistorySize {
		h.buf[(h.start+h.size)%HistorySize] = r
		h.size++
		return
	}
	h.buf[h.start] = r
	h.start = (h.start + 1) % HistorySize
}

// snapshot returns copies in insertion order, oldest first
func (h *history) snapshot() []models.Reading {
	out := make([]models.Reading, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%HistorySize].Clone()
	}
	return out
}
