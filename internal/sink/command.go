package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
)

// CommandSink pipes PCM into the stdin of a configured speaker_command
// subprocess (spec §6 "command: pipe PCM into speaker_command's stdin"),
// grounded on the teacher's ffmpeg.Encoder subprocess-pipe-plus-stderr-
// drain pattern.
type CommandSink struct {
	format Format
	cmd    *exec.Cmd
	stdin  io.WriteCloser
}

// NewCommandSink starts shellCommand under the shell, wiring its stdin to
// receive PCM writes. The subprocess's stderr is drained to the logger in
// the background so a chatty player cannot deadlock on a full pipe.
func NewCommandSink(ctx context.Context, shellCommand string, format Format, log *slog.Logger) (*CommandSink, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", shellCommand)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("sink: creating stdin pipe for %q: %w", shellCommand, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("sink: creating stderr pipe for %q: %w", shellCommand, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("sink: starting speaker command %q: %w", shellCommand, err)
	}

	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := stderr.Read(buf)
			if n > 0 {
				log.Debug("speaker command output", "output", string(buf[:n]))
			}
			if err != nil {
				return
			}
		}
	}()

	return &CommandSink{format: format, cmd: cmd, stdin: stdin}, nil
}

// Write implements Sink.
func (s *CommandSink) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

// Format implements Sink.
func (s *CommandSink) Format() Format { return s.format }

// Close implements Sink: it closes the subprocess's stdin and waits for
// it to exit.
func (s *CommandSink) Close() error {
	if err := s.stdin.Close(); err != nil {
		return fmt.Errorf("sink: closing speaker command stdin: %w", err)
	}
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("sink: speaker command exited with error: %w", err)
	}
	return nil
}
