package scheduler

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/dgnsrekt/disorder/internal/sink"
)

// pcmHeaderSize is the fixed header every decoder's stdout begins with
// (spec §6: "PCM framed by a fixed 16-byte header describing {rate,
// bits, channels, endianness}").
const pcmHeaderSize = 16

// endiannessLittle/endiannessBig are the values the header's endianness
// field carries; any value other than endiannessBig is read as
// little-endian (matching a permissive decoder contract rather than
// failing tracks outright).
const (
	endiannessLittle = 0
	endiannessBig    = 1
)

// decodedFormat is the PCM format a decoder subprocess actually reports,
// which may differ from sink.DefaultFormat for sinks that do not force a
// specific format (spec §4.F: "forced to this format for RTP and
// CoreAudio backends").
type decodedFormat struct {
	sink.Format
	bigEndian bool
}

// readPCMHeader parses the 16-byte header disorder-decode-style programs
// emit before raw samples: rate (u32), bits (u32), channels (u32),
// endianness (u32), all in the stream's own declared byte order.
func readPCMHeader(r io.Reader) (decodedFormat, error) {
	buf := make([]byte, pcmHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return decodedFormat{}, fmt.Errorf("scheduler: reading pcm header: %w", err)
	}

	// The endianness field is itself subject to the stream's declared
	// order, but since a decoder always emits wire-native headers we read
	// it little-endian first and fix up interpretation of the rest below.
	endianness := binary.LittleEndian.Uint32(buf[12:16])
	bo := binary.ByteOrder(binary.LittleEndian)
	big := endianness == endiannessBig
	if big {
		bo = binary.BigEndian
	}

	return decodedFormat{
		Format: sink.Format{
			Rate:     int(bo.Uint32(buf[0:4])),
			Bits:     int(bo.Uint32(buf[4:8])),
			Channels: int(bo.Uint32(buf[8:12])),
		},
		bigEndian: big,
	}, nil
}

// decoderProcess is a running decoder subprocess: its stdout PCM has
// already had the header consumed, leaving only raw samples to copy.
type decoderProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	format decodedFormat
}

// startDecoder launches command/args (resolved from the PlayerTable) and
// reads off its PCM header, grounded on the teacher's
// ffmpeg.Encoder.Stream subprocess-pipe-plus-stderr-drain pattern.
func startDecoder(ctx context.Context, command string, args []string, log *slog.Logger) (*decoderProcess, error) {
	cmd := exec.CommandContext(ctx, command, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("scheduler: creating decoder stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("scheduler: creating decoder stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("scheduler: starting decoder %q: %w", command, err)
	}

	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := stderr.Read(buf)
			if n > 0 {
				log.Debug("decoder output", "command", command, "output", string(buf[:n]))
			}
			if err != nil {
				return
			}
		}
	}()

	format, err := readPCMHeader(stdout)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	return &decoderProcess{cmd: cmd, stdout: stdout, format: format}, nil
}

// signal sends sig to the decoder process (spec §4.F "scratch:
// terminate the decoder with the configured signal").
func (d *decoderProcess) signal(sig syscall.Signal) error {
	if d.cmd.Process == nil {
		return nil
	}
	return d.cmd.Process.Signal(sig)
}

// wait blocks until the subprocess exits, returning its exit status and
// whether it exited cleanly.
func (d *decoderProcess) wait() (wstat int, ok bool) {
	err := d.cmd.Wait()
	if err == nil {
		return 0, true
	}
	if exitErr, isExit := err.(*exec.ExitError); isExit {
		return exitErr.ExitCode(), false
	}
	return -1, false
}

// runTracklength invokes a configured `tracklength` program, which prints
// a decimal seconds value on stdout (spec §6), and parses its result.
func runTracklength(ctx context.Context, command string, args []string) (int, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("scheduler: running tracklength command %q: %w", command, err)
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(out.String()))
	if err != nil {
		return 0, fmt.Errorf("scheduler: parsing tracklength output %q: %w", out.String(), err)
	}
	return seconds, nil
}
