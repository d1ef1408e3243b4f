package commute

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/tutorder/artifact/fs"
	"github.com/poiesic/tutorder/core"
	"github.com/poiesic/tutorder/geo"
	"github.com/poiesic/tutorder/progress"
	"github.com/poiesic/tutorder/tabular"
)

var (
	fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	target = geo.Coordinates{Lat: 39.9087, Lng: 116.3975}
	near   = geo.Coordinates{Lat: 39.9200, Lng: 116.4000} // ~1.3 km
	far    = geo.Coordinates{Lat: 39.9869, Lng: 116.3059} // ~11.7 km
)

var places = map[string]geo.Coordinates{
	"天安门":  target,
	"王府井":  near,
	"北京大学": far,
	"无路可走": {Lat: 40.2, Lng: 116.2},
}

func fakeGeocoder() geo.GeocoderFunc {
	return func(ctx context.Context, address string) (geo.Coordinates, error) {
		c, ok := places[address]
		if !ok {
			return geo.Coordinates{}, geo.ErrNoResult
		}
		return c, nil
	}
}

type routeCall struct {
	mode geo.Mode
}

func fakeRouter(calls *[]routeCall) geo.RouterFunc {
	return func(ctx context.Context, origin, dest geo.Coordinates, mode geo.Mode) (time.Duration, error) {
		*calls = append(*calls, routeCall{mode: mode})
		if mode == geo.ModeTransit && origin == far && dest == target {
			return 42*time.Minute + 20*time.Second, nil
		}
		if mode == geo.ModeBicycling {
			return 7*time.Minute + 40*time.Second, nil
		}
		return 0, errors.New("quota exceeded")
	}
}

func writeTable(t *testing.T, name string, addresses ...string) string {
	t.Helper()
	table := tabular.New(core.ExportColumns()...)
	for _, addr := range addresses {
		table.Append([]string{addr, "数学", "周末", "", "200", "女", "高一", "原文 " + addr})
	}
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, tabular.Write(name, f, table))
	require.NoError(t, f.Close())
	return path
}

func setup(t *testing.T, router geo.Router) (*Augmenter, *fs.Store) {
	t.Helper()
	store, err := fs.New(t.TempDir())
	require.NoError(t, err)
	a, err := New(fakeGeocoder(), router, store, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return a, store
}

func readArtifact(t *testing.T, store *fs.Store, name string) *tabular.Table {
	t.Helper()
	rc, err := store.Open(context.Background(), name)
	require.NoError(t, err)
	defer rc.Close()
	table, err := tabular.ReadXLSX(rc)
	require.NoError(t, err)
	return table
}

func TestRun_RowIsolation(t *testing.T) {
	var calls []routeCall
	a, store := setup(t, fakeRouter(&calls))
	path := writeTable(t, "orders.xlsx", "火星", "王府井", "", "北京大学")

	var rec progress.Recorder
	name, err := a.Run(context.Background(), path, "天安门", &rec)
	require.NoError(t, err)
	assert.Equal(t, "commute_times_20250314_092653.xlsx", name)

	table := readArtifact(t, store, name)
	assert.Equal(t, append(core.ExportColumns(), Column), table.Columns)
	require.Len(t, table.Rows, 4)
	assert.Equal(t, Unresolvable, table.Value(0, Column))
	assert.Equal(t, "8 分钟", table.Value(1, Column))
	assert.Equal(t, Unresolvable, table.Value(2, Column))
	assert.Equal(t, "42 分钟", table.Value(3, Column))
	assert.Equal(t, "原文 北京大学", table.Value(3, core.FieldOriginalText))

	assert.Equal(t, []routeCall{{geo.ModeBicycling}, {geo.ModeTransit}}, calls)
	assert.Equal(t, []float64{25, 50, 75, 100}, rec.Percents())
}

func TestRun_RouteErrorPlaceholder(t *testing.T) {
	var calls []routeCall
	a, store := setup(t, fakeRouter(&calls))
	path := writeTable(t, "orders.csv", "无路可走", "王府井")

	name, err := a.Run(context.Background(), path, "天安门", nil)
	require.NoError(t, err)

	table := readArtifact(t, store, name)
	assert.Equal(t, "error: quota exceeded", table.Value(0, Column))
	assert.Equal(t, "8 分钟", table.Value(1, Column))
}

func TestRun_MissingColumns(t *testing.T) {
	var calls []routeCall
	a, _ := setup(t, fakeRouter(&calls))

	table := tabular.New(core.FieldAddress, core.FieldSubject)
	path := filepath.Join(t.TempDir(), "partial.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, tabular.WriteCSV(f, table))
	require.NoError(t, f.Close())

	_, err = a.Run(context.Background(), path, "天安门", nil)
	require.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), core.FieldSchedule)
	assert.Contains(t, err.Error(), core.FieldOriginalText)
	assert.NotContains(t, err.Error(), core.FieldSubject)
	assert.Empty(t, calls)
}

func TestRun_TargetUnresolvable(t *testing.T) {
	var calls []routeCall
	a, store := setup(t, fakeRouter(&calls))
	path := writeTable(t, "orders.xlsx", "王府井")

	var rec progress.Recorder
	_, err := a.Run(context.Background(), path, "亚特兰蒂斯", &rec)
	require.ErrorIs(t, err, ErrTargetUnresolvable)
	assert.ErrorIs(t, err, geo.ErrNoResult)
	assert.Empty(t, rec.Percents())

	infos, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestRun_ReplacesExistingColumn(t *testing.T) {
	var calls []routeCall
	a, store := setup(t, fakeRouter(&calls))

	table := tabular.New(append(core.ExportColumns(), Column)...)
	table.Append([]string{"王府井", "", "", "", "", "", "", "x", "stale"})
	path := filepath.Join(t.TempDir(), "again.xlsx")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, tabular.WriteXLSX(f, table))
	require.NoError(t, f.Close())

	name, err := a.Run(context.Background(), path, "天安门", nil)
	require.NoError(t, err)

	out := readArtifact(t, store, name)
	assert.Len(t, out.Columns, len(core.ExportColumns())+1)
	assert.Equal(t, "8 分钟", out.Value(0, Column))
}

func TestRun_UnreadableTable(t *testing.T) {
	var calls []routeCall
	a, _ := setup(t, fakeRouter(&calls))

	_, err := a.Run(context.Background(), filepath.Join(t.TempDir(), "missing.xlsx"), "天安门", nil)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "orders.pdf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	_, err = a.Run(context.Background(), path, "天安门", nil)
	assert.ErrorIs(t, err, tabular.ErrUnsupportedFormat)
}

func TestNew_RequiresDependencies(t *testing.T) {
	store, err := fs.New(t.TempDir())
	require.NoError(t, err)
	var calls []routeCall

	_, err = New(nil, fakeRouter(&calls), store)
	assert.ErrorIs(t, err, ErrGeocoderRequired)
	_, err = New(fakeGeocoder(), nil, store)
	assert.ErrorIs(t, err, ErrRouterRequired)
	_, err = New(fakeGeocoder(), fakeRouter(&calls), nil)
	assert.ErrorIs(t, err, ErrArtifactStoreRequired)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0 分钟", FormatDuration(20*time.Second))
	assert.Equal(t, "1 分钟", FormatDuration(30*time.Second))
	assert.Equal(t, "90 分钟", FormatDuration(90*time.Minute))
}
