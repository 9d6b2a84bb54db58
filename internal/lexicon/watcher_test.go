package lexicon_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-triage/internal/lexicon"
)

func writeLexicon(t *testing.T, path, version string) {
	t.Helper()
	src := strings.Replace(string(lexicon.DefaultSource()),
		`version = "2026.10-default"`, `version = "`+version+`"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
}

func TestWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.toml")
	writeLexicon(t, path, "v1")

	initial, err := lexicon.LoadFile(path)
	require.NoError(t, err)
	holder := lexicon.NewHolder(initial)

	w := lexicon.NewWatcher(path, holder, lexicon.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	// First reload sees content it has not hashed yet.
	assert.Equal(t, lexicon.ReloadApplied, w.Reload())
	assert.Equal(t, lexicon.ReloadUnchanged, w.Reload())

	writeLexicon(t, path, "v2")
	assert.Equal(t, lexicon.ReloadApplied, w.Reload())
	assert.Equal(t, "v2", holder.Current().Version)

	// Invalid content is rejected and v2 stays live.
	require.NoError(t, os.WriteFile(path, []byte("version = \"v3\"\n"), 0o644))
	assert.Equal(t, lexicon.ReloadRejected, w.Reload())
	assert.Equal(t, "v2", holder.Current().Version)
}

func TestHolderSwap(t *testing.T) {
	def := lexicon.MustDefault()
	h := lexicon.NewHolder(def)

	assert.Same(t, def, h.Current())

	other, err := lexicon.Parse(lexicon.DefaultSource(), lexicon.FormatTOML)
	require.NoError(t, err)

	old := h.Swap(other)
	assert.Same(t, def, old)
	assert.Same(t, other, h.Current())

	var p lexicon.Provider = def
	assert.Same(t, def, p.Current())
}
