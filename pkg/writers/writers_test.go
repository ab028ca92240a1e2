package writers

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/gkgsynth/internal/arrowrow"
	"github.com/TFMV/gkgsynth/pkg/core"
)

func sampleRows() []core.Row {
	r := core.Record{
		Date: "20250401", ArticleCount: 1, Themes: "TAX_FNCACT", Locations: "1#Japan#JA#JA#36#138#JA",
		Persons: "p", Organizations: "o", Tone: "0.5,1,2,3,4,5",
		CameoEventIDs: "1234100000", SourceDomain: "nhk.or.jp", SourceURL: "https://x",
	}
	s := r
	s.Date = "20250402"
	return []core.Row{r.Row(), s.Row()}
}

func TestFactoryTypes(t *testing.T) {
	assert.Equal(t, []string{"arrow", "json", "parquet"}, DefaultFactory.Types())

	_, err := DefaultFactory.Create(core.WriterConfig{Type: "avro", Path: "x"})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))

	_, err = DefaultFactory.Create(core.WriterConfig{Type: "json"})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func TestWritersCreateFiles(t *testing.T) {
	rec, err := arrowrow.Build(memory.NewGoAllocator(), sampleRows())
	require.NoError(t, err)
	defer rec.Release()

	for _, typ := range DefaultFactory.Types() {
		t.Run(typ, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "out."+typ)
			w, err := DefaultFactory.Create(core.WriterConfig{Type: typ, Path: path})
			require.NoError(t, err)
			require.NoError(t, w.Write(context.Background(), rec))
			require.NoError(t, w.Close())

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Positive(t, info.Size())
		})
	}
}

func TestJSONWriterContent(t *testing.T) {
	rec, err := arrowrow.Build(memory.NewGoAllocator(), sampleRows())
	require.NoError(t, err)
	defer rec.Release()

	path := filepath.Join(t.TempDir(), "out.json")
	w, err := NewJSONWriter(core.WriterConfig{Type: "json", Path: path})
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), rec))
	require.NoError(t, w.Write(context.Background(), rec))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var objs []map[string]any
	require.NoError(t, json.Unmarshal(data, &objs))
	require.Len(t, objs, 4)
	assert.Equal(t, "20250401", objs[0]["DATE"])
	assert.Equal(t, float64(1), objs[0]["NUMARTS"])
	assert.Equal(t, "20250402", objs[3]["DATE"])
}

func TestJSONWriterEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	w, err := NewJSONWriter(core.WriterConfig{Type: "json", Path: path})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var objs []map[string]any
	require.NoError(t, json.Unmarshal(data, &objs))
	assert.Empty(t, objs)
}

func TestWriteCanceled(t *testing.T) {
	rec, err := arrowrow.Build(memory.NewGoAllocator(), sampleRows())
	require.NoError(t, err)
	defer rec.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w, err := NewArrowWriter(core.WriterConfig{Type: "arrow", Path: filepath.Join(t.TempDir(), "out.arrow")})
	require.NoError(t, err)
	defer w.Close()
	assert.ErrorIs(t, w.Write(ctx, rec), context.Canceled)
}
