package audio

import (
	"math"
	"sync"
	"time"
)

// Fallback tone played in place of audio the client cannot decode.
const (
	FallbackToneFrequency  = 660.0
	FallbackToneDuration   = 200 * time.Millisecond
	FallbackToneVolume     = 0.25
	FallbackToneSampleRate = 24000
)

// Test sound played on demand to check the output device.
const (
	TestToneFrequency  = 440.0
	TestToneDuration   = 300 * time.Millisecond
	TestToneVolume     = 0.25
	TestToneSampleRate = 24000
)

// Tone produces a mono sine wave of the given frequency, duration and volume.
func Tone(frequency float64, d time.Duration, sampleRate int, volume float64) []float32 {
	n := int(int64(d) * int64(sampleRate) / int64(time.Second))
	samples := make([]float32, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		samples[i] = float32(volume * math.Sin(2*math.Pi*frequency*t))
	}
	return samples
}

// LevelMeter smooths successive RMS readings into a display level.
type LevelMeter struct {
	mu    sync.Mutex
	level float64
}

// Observe folds a new RMS reading into the level and returns it.
func (m *LevelMeter) Observe(rms float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = m.level*0.8 + rms*0.2
	return m.level
}

// Level returns the current smoothed level.
func (m *LevelMeter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Reset drops the level back to silence.
func (m *LevelMeter) Reset() {
	m.mu.Lock()
	m.level = 0
	m.mu.Unlock()
}
