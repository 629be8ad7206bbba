// Package sink implements the pluggable audio output sinks the scheduler
// forwards decoded PCM into: a subprocess pipe ("command") and an RTP
// broadcast ("rtp"). ALSA/OSS/CoreAudio device backends are native,
// platform-specific collaborators outside this module's scope (spec §6).
package sink

import "io"

// Format describes the PCM stream every sink receives: defaults are
// 16-bit, 44100 Hz, stereo, native endianness (spec §4.F), forced to
// this format for RTP and CoreAudio backends.
type Format struct {
	Rate     int
	Bits     int
	Channels int
}

// DefaultFormat is the PCM format assumed absent any decoder-supplied
// override.
var DefaultFormat = Format{Rate: 44100, Bits: 16, Channels: 2}

// Sink accepts a continuous stream of PCM samples in Format and delivers
// them to an output device, subprocess, or network broadcast. Write may
// block the caller; the scheduler is responsible for running it off its
// own serialising goroutine.
type Sink interface {
	io.Writer
	// Format reports the PCM format this sink expects its input in.
	Format() Format
	// Close releases any underlying resource (subprocess, socket).
	Close() error
}
