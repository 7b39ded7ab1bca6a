package format

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandFormatterRunsInDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	dir := t.TempDir()
	var out bytes.Buffer
	f := &CommandFormatter{Command: []string{"sh", "-c", "pwd && touch formatted"}, Stdout: &out}

	require.NoError(t, f.Format(context.Background(), dir))
	_, err := os.Stat(filepath.Join(dir, "formatted"))
	assert.NoError(t, err)
	assert.NotEmpty(t, out.String())
}

func TestCommandFormatterMissingBinary(t *testing.T) {
	f := NewCommandFormatter([]string{"svcgen-no-such-formatter-binary"})
	err := f.Format(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "svcgen-no-such-formatter-binary")
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestEmptyCommandAndNop(t *testing.T) {
	assert.NoError(t, NewCommandFormatter(nil).Format(context.Background(), "/does/not/matter"))
	assert.NoError(t, Nop{}.Format(context.Background(), "/does/not/matter"))
}
