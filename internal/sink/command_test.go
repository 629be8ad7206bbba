package sink

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandSinkWritesToSubprocessStdin(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := NewCommandSink(ctx, "cat > /dev/null", DefaultFormat, slog.Default())
	require.NoError(t, err)

	n, err := s.Write([]byte{0x01, 0x02, 0x03, 0x04})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, s.Close())
}

func TestCommandSinkFormat(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := NewCommandSink(ctx, "cat > /dev/null", DefaultFormat, slog.Default())
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, DefaultFormat, s.Format())
}
