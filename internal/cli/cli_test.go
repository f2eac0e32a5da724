package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/logger"
	"github.com/librisapp/libris-server/internal/store"
	"github.com/librisapp/libris-server/internal/store/sqlite"
)

// seedCatalog creates n publications in a fresh data directory.
func seedCatalog(t *testing.T, n int) (dir string, ids []int64) {
	t.Helper()
	dir = t.TempDir()

	st, err := sqlite.Open(filepath.Join(dir, "libris.db"), logger.Discard().Logger)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	for i := range n {
		p := &domain.Publication{Title: "Publication " + string(rune('A'+i)), ISBN: "978000000000" + string(rune('0'+i))}
		require.NoError(t, st.CreatePublication(context.Background(), p))
		ids = append(ids, p.ID)
	}
	return dir, ids
}

func run(t *testing.T, dir string, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(append([]string{"--data-path", dir, "--env-file", filepath.Join(dir, "missing.env"), "--no-color"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportSimilarities(t *testing.T) {
	dir, ids := seedCatalog(t, 3)
	file := filepath.Join(dir, "edges.csv")
	content := "origin,destination,score\n" +
		itoa(ids[0]) + "," + itoa(ids[1]) + ",0.5\n" +
		itoa(ids[0]) + ",999,0.9\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	out, err := run(t, dir, "", "import-similarities", file)
	require.NoError(t, err, out)
	assert.Contains(t, out, "from edges.csv")
	assert.Contains(t, out, "Imported 2 edges")
	assert.Contains(t, out, "Skipped 2 edges", "both directions of the unknown pair")

	out, err = run(t, dir, "", "import-similarities", "--strict", file)
	assert.Error(t, err, out)

	out, err = run(t, dir, "", "imports", "--json")
	require.NoError(t, err, out)
	var runs []domain.SimilarityImport
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, "edges.csv", r.Source)
	}
}

func TestImportSimilarities_Stdin(t *testing.T) {
	dir, ids := seedCatalog(t, 2)
	line := `{"origin":` + itoa(ids[0]) + `,"destination":` + itoa(ids[1]) + `,"score":0.4}` + "\n"

	_, err := run(t, dir, line, "import-similarities", "-")
	require.Error(t, err, "format is required for stdin")

	out, err := run(t, dir, line, "import-similarities", "--format", "jsonl", "--no-symmetrize", "-")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Imported 1 edges from stdin")

	out, err = run(t, dir, "", "stats", "--json")
	require.NoError(t, err, out)
	var stats store.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Publications)
	assert.Equal(t, 1, stats.Similarities)
}

func TestStats_Table(t *testing.T) {
	dir, _ := seedCatalog(t, 2)

	out, err := run(t, dir, "", "stats")
	require.NoError(t, err, out)
	assert.Contains(t, out, "publications")
	assert.Contains(t, out, "similarity edges")
}

func TestReindex(t *testing.T) {
	dir, _ := seedCatalog(t, 3)

	out, err := run(t, dir, "", "reindex")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Indexed 3 documents")

	// The second run opens the index written by the first.
	out, err = run(t, dir, "", "reindex")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Indexed 3 documents")
	assert.FileExists(t, filepath.Join(dir, "search.version"))
}

func TestUnknownFormat(t *testing.T) {
	dir, _ := seedCatalog(t, 1)

	_, err := run(t, dir, "", "import-similarities", "--format", "xlsx", "edges.xlsx")
	assert.Error(t, err)
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
