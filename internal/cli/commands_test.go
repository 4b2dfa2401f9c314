package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/systemet/internal/catalog"
	"github.com/roach88/systemet/internal/store"
	"github.com/roach88/systemet/internal/testutil"
)

func firstCatalog() *catalog.StaticSource {
	return catalog.NewStaticSource(
		[]catalog.ProductSnapshot{
			{ID: "1001", NameBold: "Absolut", NameThin: "Vodka", Producer: "The Absolut Company",
				Category: [3]string{"Sprit", "Vodka", ""}, Country: "Sverige",
				Price: 249, VolumeML: 700, AlcoholPercent: 40},
			{ID: "1002", NameBold: "Rioja", NameThin: "Reserva", Producer: "Bodegas Ejemplo",
				Category: [3]string{"Vin", "Rött vin", ""}, Country: "Spanien",
				Price: 129, VolumeML: 750, AlcoholPercent: 13.5},
		},
		[]catalog.ProductSnapshot{
			{ID: "1003", NameBold: "Pilsner", Category: [3]string{"Öl", "Ljus lager", ""},
				Price: 0, VolumeML: 330, AlcoholPercent: 5},
		},
	)
}

// secondCatalog raises the vodka price and repeats the rest unchanged.
func secondCatalog() *catalog.StaticSource {
	return catalog.NewStaticSource(
		[]catalog.ProductSnapshot{
			{ID: "1001", NameBold: "Absolut", NameThin: "Vodka", Price: 259, VolumeML: 700, AlcoholPercent: 40},
			{ID: "1002", NameBold: "Rioja", NameThin: "Reserva", Price: 129, VolumeML: 750, AlcoholPercent: 13.5},
		},
		[]catalog.ProductSnapshot{
			{ID: "1003", NameBold: "Pilsner", Price: 0, VolumeML: 330, AlcoholPercent: 5},
		},
	)
}

type cliRun struct {
	out    string
	errOut string
	err    error
}

// execute runs the CLI against dbPath with a deterministic clock starting at
// start and a fixed run id.
func execute(t *testing.T, source catalog.Source, start time.Time, args ...string) cliRun {
	t.Helper()

	opts := &RootOptions{
		Source: source,
		Clock:  testutil.NewDeterministicClockAt(start, time.Second),
		RunIDs: testutil.NewFixedRunIDGenerator("run-golden"),
	}
	cmd := NewRootCommandWithOptions(opts)
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return cliRun{out: out.String(), errOut: errOut.String(), err: err}
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestUpdate_TextGolden(t *testing.T) {
	db := filepath.Join(t.TempDir(), "products.db")

	res := execute(t, firstCatalog(), testutil.DefaultEpoch, "--db", db, "update")
	require.NoError(t, res.err, res.errOut)

	newGoldie(t).Assert(t, "update_text", []byte(res.out))
}

func TestUpdate_SecondRunReportsChanges(t *testing.T) {
	db := filepath.Join(t.TempDir(), "products.db")

	res := execute(t, firstCatalog(), testutil.DefaultEpoch, "--db", db, "update")
	require.NoError(t, res.err)

	res = execute(t, secondCatalog(), testutil.DefaultEpoch.Add(24*time.Hour), "--db", db, "update")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Products: 0 new, 1 changed, 2 unchanged")
	assert.Contains(t, res.out, "Absolut Vodka: 249.00 kr -> 259.00 kr (+4.0%)")
	assert.NotContains(t, res.out, "Rioja Reserva:")
}

func TestUpdate_JSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "products.db")

	res := execute(t, firstCatalog(), testutil.DefaultEpoch, "--db", db, "--format", "json", "update")
	require.NoError(t, res.err)

	var resp struct {
		Status string `json:"status"`
		RunID  string `json:"run_id"`
		Data   struct {
			RunID           string  `json:"run_id"`
			State           string  `json:"state"`
			Inserted        int     `json:"inserted"`
			DurationSeconds float64 `json:"duration_seconds"`
			Changes         []struct {
				ProductID string `json:"product_id"`
				Outcome   string `json:"outcome"`
			} `json:"changes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-golden", resp.RunID)
	assert.Equal(t, "run-golden", resp.Data.RunID)
	assert.Equal(t, "done", resp.Data.State)
	assert.Equal(t, 3, resp.Data.Inserted)
	assert.Equal(t, 4.0, resp.Data.DurationSeconds)
	require.Len(t, resp.Data.Changes, 3)
	assert.Equal(t, "1001", resp.Data.Changes[0].ProductID)
	assert.Equal(t, "inserted", resp.Data.Changes[0].Outcome)
}

func TestUpdate_AbortedJSONCarriesRunID(t *testing.T) {
	db := filepath.Join(t.TempDir(), "products.db")
	src := firstCatalog()
	src.FailPage(1, errors.New("status 503"))

	res := execute(t, src, testutil.DefaultEpoch, "--db", db, "--format", "json", "update")
	require.Error(t, res.err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(res.out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "run-golden", resp.RunID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSyncAborted, resp.Error.Code)
}

func TestUpdate_VerboseReportsPageProgress(t *testing.T) {
	db := filepath.Join(t.TempDir(), "products.db")

	res := execute(t, firstCatalog(), testutil.DefaultEpoch, "--db", db, "--format", "json", "-v", "update")
	require.NoError(t, res.err)
	for _, line := range []string{"sync: fetching_page(1)\n", "sync: reconciling(1)\n", "sync: fetching_page(2)\n", "sync: reconciling(2)\n"} {
		assert.Contains(t, res.errOut, line)
	}
	assert.NotContains(t, res.errOut, "sync: done")
	assert.NotContains(t, res.out, "sync:")

	res = execute(t, firstCatalog(), testutil.DefaultEpoch, "--db", db, "update")
	require.NoError(t, res.err)
	assert.NotContains(t, res.errOut, "sync: fetching_page")
}

func TestUpdate_AbortedRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "products.db")
	src := firstCatalog()
	src.FailPage(1, errors.New("status 503"))

	res := execute(t, src, testutil.DefaultEpoch, "--db", db, "update")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.out, "Error [E006]: sync aborted")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	n, err := st.CountProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestUpdate_PartialFailureStillSucceeds(t *testing.T) {
	db := filepath.Join(t.TempDir(), "products.db")
	src := firstCatalog()
	src.FailPage(2, errors.New("status 503"))

	res := execute(t, src, testutil.DefaultEpoch, "--db", db, "update")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Pages:    2 total, 1 reconciled, 1 failed")
	assert.Contains(t, res.out, "Failed pages: [2]")
}

func TestStats_TextGolden(t *testing.T) {
	db := filepath.Join(t.TempDir(), "products.db")
	require.NoError(t, execute(t, firstCatalog(), testutil.DefaultEpoch, "--db", db, "update").err)

	res := execute(t, nil, testutil.DefaultEpoch, "--db", db, "stats")
	require.NoError(t, res.err)

	newGoldie(t).Assert(t, "stats_text", []byte(res.out))
}

func TestStats_EmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "products.db")

	res := execute(t, nil, testutil.DefaultEpoch, "--db", db, "--format", "json", "stats")
	require.NoError(t, res.err)

	var resp struct {
		Data StatsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.out), &resp))
	assert.Equal(t, 0, resp.Data.TotalProducts)
	assert.Empty(t, resp.Data.BestValue)
}

func TestSearch(t *testing.T) {
	db := filepath.Join(t.TempDir(), "products.db")
	require.NoError(t, execute(t, firstCatalog(), testutil.DefaultEpoch, "--db", db, "update").err)

	res := execute(t, nil, testutil.DefaultEpoch, "--db", db, "search", "RIOJA")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, `1 product(s) matching "RIOJA":`)
	assert.Contains(t, res.out, "Rioja Reserva")
	assert.Contains(t, res.out, "[1002]")

	res = execute(t, nil, testutil.DefaultEpoch, "--db", db, "search", "whisky")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, `No products match "whisky"`)

	res = execute(t, nil, testutil.DefaultEpoch, "--db", db, "--format", "json", "search", "a", "--limit", "1")
	require.NoError(t, res.err)
	var resp struct {
		Data SearchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.out), &resp))
	require.Len(t, resp.Data.Products, 1)
	assert.Equal(t, "1001", resp.Data.Products[0].ID, "best APK first")
}

func TestSearch_RequiresQuery(t *testing.T) {
	res := execute(t, nil, testutil.DefaultEpoch, "search")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "accepts 1 arg")
}

func TestProduct_WithHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "products.db")
	require.NoError(t, execute(t, firstCatalog(), testutil.DefaultEpoch, "--db", db, "update").err)
	require.NoError(t, execute(t, secondCatalog(), testutil.DefaultEpoch.Add(24*time.Hour), "--db", db, "update").err)

	res := execute(t, nil, testutil.DefaultEpoch.Add(48*time.Hour), "--db", db, "product", "1001")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Absolut Vodka [1001]")
	assert.Contains(t, res.out, "Price:      259.00 kr (+4.0% since first seen)")
	assert.Contains(t, res.out, "APK:        1.08 ml/kr")
	assert.Contains(t, res.out, "Price history (last 30 days):")
	assert.Contains(t, res.out, "2025-01-01 12:00     249.00 kr")
	assert.Contains(t, res.out, "2025-01-02 12:00     259.00 kr")

	// A one-day window at +48h only reaches back to the second observation.
	res = execute(t, nil, testutil.DefaultEpoch.Add(48*time.Hour), "--db", db, "--format", "json", "product", "1001", "--history", "1")
	require.NoError(t, res.err)
	var resp struct {
		Data ProductResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.out), &resp))
	assert.Equal(t, 1, resp.Data.HistoryDays)
	require.Len(t, resp.Data.History, 1)
	assert.Equal(t, 259.0, resp.Data.History[0].Price)

	res = execute(t, nil, testutil.DefaultEpoch.Add(72*time.Hour), "--db", db, "product", "1001", "--history", "1")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "No price history in the last 1 days")
}

func TestProduct_NotFound(t *testing.T) {
	db := filepath.Join(t.TempDir(), "products.db")

	res := execute(t, nil, testutil.DefaultEpoch, "--db", db, "product", "missing")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.out, "Error [E005]: product missing not found")
}

func TestRuns(t *testing.T) {
	db := filepath.Join(t.TempDir(), "products.db")

	res := execute(t, nil, testutil.DefaultEpoch, "--db", db, "runs")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "No sync runs recorded")

	require.NoError(t, execute(t, firstCatalog(), testutil.DefaultEpoch, "--db", db, "update").err)

	res = execute(t, nil, testutil.DefaultEpoch, "--db", db, "runs")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "2025-01-01 12:00  done       4s  pages 0/2 failed  +3 ~0 =0  skipped 0  failed 0")
	assert.Contains(t, res.out, "Database schema version 3")

	res = execute(t, nil, testutil.DefaultEpoch, "--db", db, "--format", "json", "runs")
	require.NoError(t, res.err)
	var resp struct {
		Data RunsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.out), &resp))
	assert.Equal(t, uint(3), resp.Data.SchemaVersion)
	require.Len(t, resp.Data.Runs, 1)
}

func TestOpenStore_BadPath(t *testing.T) {
	res := execute(t, nil, testutil.DefaultEpoch, "--db", "/nonexistent/dir/products.db", "stats")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.out, "Error [E003]: failed to open database")
}
