package scheduler

import (
	"encoding/binary"
	"sync/atomic"
)

// Mixer scales 16-bit PCM samples by a left/right volume pair before
// they reach the output sink (spec §4.F "volume/mixer"). Volume is
// stored as fixed-point percent (0-100) so reads and writes from
// concurrent connections need no separate lock.
type Mixer struct {
	left  atomic.Int32
	right atomic.Int32
}

// NewMixer creates a Mixer at full volume (100/100).
func NewMixer() *Mixer {
	m := &Mixer{}
	m.left.Store(100)
	m.right.Store(100)
	return m
}

// SetVolume sets the left/right channel volumes, each 0-100.
func (m *Mixer) SetVolume(left, right int) {
	m.left.Store(int32(clampVolume(left)))
	m.right.Store(int32(clampVolume(right)))
}

// Volume returns the current left/right volumes.
func (m *Mixer) Volume() (left, right int) {
	return int(m.left.Load()), int(m.right.Load())
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Apply scales buf in place, treating it as interleaved little-endian
// 16-bit stereo samples. Mono streams are scaled uniformly by the left
// volume. Buffers whose length isn't a whole number of sample frames are
// left with a short trailing remainder unscaled.
func (m *Mixer) Apply(buf []byte, channels int) {
	left, right := m.Volume()
	if left == 100 && right == 100 {
		return
	}

	frameBytes := 2 * channels
	for off := 0; off+frameBytes <= len(buf); off += frameBytes {
		for ch := 0; ch < channels; ch++ {
			vol := left
			if channels == 2 && ch == 1 {
				vol = right
			}
			i := off + ch*2
			sample := int16(binary.LittleEndian.Uint16(buf[i : i+2]))
			scaled := int32(sample) * int32(vol) / 100
			binary.LittleEndian.PutUint16(buf[i:i+2], uint16(int16(scaled)))
		}
	}
}
