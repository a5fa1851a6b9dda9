package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-risk/internal/analytics"
	"github.com/sells-group/inspection-risk/internal/config"
	"github.com/sells-group/inspection-risk/internal/loader"
	"github.com/sells-group/inspection-risk/internal/model"
	"github.com/sells-group/inspection-risk/internal/registry"
	"github.com/sells-group/inspection-risk/internal/resolve"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const ordersCSV = `order_id,customer_id,restaurant_name,cuisine_type,cost_of_the_order,day_of_the_week,rating,food_preparation_time,delivery_time
1,10,Joe's Pizza,Italian,20.00,Weekend,5,25,20
2,11,Casa Taco,Mexican,12.50,Weekday,Not given,30,25
3,12,Mystery Kitchen,American,8.00,Weekend,4,20,30
`

const mappingJSON = `{
  "_meta": {"source": "test"},
  "Joe's Pizza": {"camis": "123", "boro": "Manhattan", "dba": "JOE'S PIZZA"},
  "Casa Taco": {"camis": "300", "boro": "Queens", "dba": "CASA TACO"}
}`

const registryRows = `[
  {"camis": "123", "dba": "joe's pizza", "boro": "Manhattan", "inspection_date": "2024-01-10T00:00:00.000",
   "grade": "C", "grade_date": "2024-01-10T00:00:00.000", "critical_flag": "Critical",
   "violation_description": "Evidence of rodent activity", "action": "Establishment Closed by DOHMH"},
  {"camis": "300", "dba": "casa taco", "boro": "Queens", "inspection_date": "2024-02-01T00:00:00.000",
   "grade": "A", "grade_date": "2024-02-01T00:00:00.000", "critical_flag": "Not Critical",
   "violation_description": "Non-food contact surface not clean"}
]`

type fixture struct {
	cfg      *config.Config
	requests *atomic.Int32
	tokens   chan string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	ordersPath := filepath.Join(dir, "orders.csv")
	mappingPath := filepath.Join(dir, "mapping.json")
	require.NoError(t, os.WriteFile(ordersPath, []byte(ordersCSV), 0o644))
	require.NoError(t, os.WriteFile(mappingPath, []byte(mappingJSON), 0o644))

	f := &fixture{requests: new(atomic.Int32), tokens: make(chan string, 16)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		select {
		case f.tokens <- r.Header.Get(registry.AppTokenHeader):
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(registryRows))
	}))
	t.Cleanup(srv.Close)

	f.cfg = &config.Config{
		Orders:  config.OrdersConfig{CSVPath: ordersPath},
		Mapping: config.MappingConfig{Path: mappingPath},
		Registry: config.RegistryConfig{
			BaseURL: srv.URL, AppToken: "tok", BatchSize: 100, MaxRecords: 1000,
			TimeoutSecs: 5, RateLimit: 100, MaxRetries: 1,
		},
		Cache: config.CacheConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "risk.db"), MaxAgeDays: 7},
		Analytics: config.AnalyticsConfig{
			DefaultDays: 90, WatchlistSize: 10, AllowedWindows: []int{7, 30, 90},
		},
		Server: config.ServerConfig{Port: 8080},
		Log:    config.LogConfig{Level: "info", Format: "json"},
	}
	return f
}

// useConfig installs c as the command config for the duration of the test.
func useConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "analyze", "sync", "report", "unmatched", "inspect"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "inspection-risk", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCommandFlags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)

	require.NotNil(t, analyzeCmd.Flags().Lookup("days"))
	require.NotNil(t, analyzeCmd.Flags().Lookup("top-n"))
	require.NotNil(t, syncCmd.Flags().Lookup("days"))
	require.NotNil(t, reportCmd.Flags().Lookup("out"))
	require.NotNil(t, inspectCmd.Flags().Lookup("coverage"))
}

func TestResolvePort(t *testing.T) {
	assert.Equal(t, 9090, resolvePort(9090, 8080))
	assert.Equal(t, 8080, resolvePort(0, 8080))
	assert.Equal(t, 0, resolvePort(0, 0))
}

func TestServerOptions(t *testing.T) {
	f := newFixture(t)
	opts := serverOptions(f.cfg)
	assert.Equal(t, 90, opts.DefaultDays)
	assert.Equal(t, []int{7, 30, 90}, opts.AllowedWindows)
	assert.Equal(t, 10, opts.WatchlistSize)
}

func TestMetricNames(t *testing.T) {
	assert.Equal(t, []string{
		"borough-breakdown", "health", "revenue-at-risk", "revenue-by-grade",
		"rodent-orders", "summary", "watchlist",
	}, metricNames())
}

func TestNewRegistry_SendsAppToken(t *testing.T) {
	f := newFixture(t)
	rows, err := newRegistry(f.cfg.Registry).FetchPage(context.Background(), 10, 0, "")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "tok", <-f.tokens)
}

func TestInitEnv_StoreReusedAcrossRuns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := initEnv(ctx, f.cfg)
	require.NoError(t, err)
	a, err := e.Cache.Get(ctx, 30)
	require.NoError(t, err)
	e.Close()

	rar := a.RevenueAtRisk()
	assert.Equal(t, 20.0, rar.TotalRevenueAtRisk)
	assert.Equal(t, int32(1), f.requests.Load())

	// A second process finds the fresh snapshot and skips the registry.
	e2, err := initEnv(ctx, f.cfg)
	require.NoError(t, err)
	defer e2.Close()
	a2, err := e2.Cache.Get(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, rar, a2.RevenueAtRisk())
	assert.Equal(t, int32(1), f.requests.Load())
}

func TestInitEnv_NoStore(t *testing.T) {
	f := newFixture(t)
	f.cfg.Cache.Driver = "none"

	e, err := initEnv(context.Background(), f.cfg)
	require.NoError(t, err)
	defer e.Close()
	assert.Nil(t, e.Store)
}

func TestInitEnv_BadDriver(t *testing.T) {
	f := newFixture(t)
	f.cfg.Cache.Driver = "mysql"

	_, err := initEnv(context.Background(), f.cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestAnalyzeCommand_Watchlist(t *testing.T) {
	f := newFixture(t)
	useConfig(t, f.cfg)

	var out bytes.Buffer
	analyzeCmd.SetOut(&out)
	analyzeCmd.SetContext(context.Background())
	t.Cleanup(func() { analyzeCmd.SetOut(nil) })

	require.NoError(t, analyzeCmd.RunE(analyzeCmd, []string{"watchlist"}))

	var got analytics.WatchlistReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got.Restaurants, 1)
	assert.Equal(t, "Joe's Pizza", got.Restaurants[0].RestaurantName)
	assert.Equal(t, 20.0, got.TotalWatchlistRevenue)
}

func TestAnalyzeCommand_UnknownMetric(t *testing.T) {
	f := newFixture(t)
	useConfig(t, f.cfg)

	err := analyzeCmd.RunE(analyzeCmd, []string{"bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown metric "bogus"`)
	assert.Equal(t, int32(0), f.requests.Load())
}

func TestAnalyzeCommand_RejectsUnlistedWindow(t *testing.T) {
	f := newFixture(t)
	useConfig(t, f.cfg)
	require.NoError(t, analyzeCmd.Flags().Set("days", "45"))
	t.Cleanup(func() { _ = analyzeCmd.Flags().Set("days", "0") })

	err := analyzeCmd.RunE(analyzeCmd, []string{"summary"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "days must be one of 7, 30, 90")
	assert.Equal(t, int32(0), f.requests.Load())
}

func TestReportCommand(t *testing.T) {
	f := newFixture(t)
	useConfig(t, f.cfg)
	path := filepath.Join(t.TempDir(), "out.xlsx")

	var out bytes.Buffer
	reportCmd.SetOut(&out)
	reportCmd.SetContext(context.Background())
	require.NoError(t, reportCmd.Flags().Set("out", path))
	t.Cleanup(func() {
		reportCmd.SetOut(nil)
		_ = reportCmd.Flags().Set("out", "")
	})

	require.NoError(t, reportCmd.RunE(reportCmd, nil))
	assert.Equal(t, path, strings.TrimSpace(out.String()))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSyncCommand(t *testing.T) {
	f := newFixture(t)
	useConfig(t, f.cfg)

	var out bytes.Buffer
	syncCmd.SetOut(&out)
	syncCmd.SetContext(context.Background())
	t.Cleanup(func() { syncCmd.SetOut(nil) })

	require.NoError(t, syncCmd.RunE(syncCmd, nil))
	assert.Equal(t, int32(3), f.requests.Load())
	assert.Contains(t, out.String(), "DAYS")
	assert.Equal(t, 5, strings.Count(out.String(), "\n"))
}

func TestSyncCommand_RequiresStore(t *testing.T) {
	f := newFixture(t)
	f.cfg.Cache.Driver = "none"
	useConfig(t, f.cfg)

	err := syncCmd.RunE(syncCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be none")
}

func TestUnmatchedCommand(t *testing.T) {
	f := newFixture(t)
	useConfig(t, f.cfg)

	var out bytes.Buffer
	unmatchedCmd.SetOut(&out)
	unmatchedCmd.SetContext(context.Background())
	t.Cleanup(func() { unmatchedCmd.SetOut(nil) })

	require.NoError(t, unmatchedCmd.RunE(unmatchedCmd, nil))
	s := out.String()
	assert.Contains(t, s, "Mystery Kitchen")
	assert.NotContains(t, s, "Casa Taco")
	assert.Contains(t, s, "2 of 3 restaurants matched (2 mapping entries)")
	assert.Equal(t, int32(0), f.requests.Load())
}

func TestInspectCommand(t *testing.T) {
	f := newFixture(t)
	useConfig(t, f.cfg)

	var out bytes.Buffer
	inspectCmd.SetOut(&out)
	inspectCmd.SetContext(context.Background())
	t.Cleanup(func() { inspectCmd.SetOut(nil) })

	require.NoError(t, inspectCmd.RunE(inspectCmd, []string{"Joe's Pizza"}))
	s := out.String()
	assert.Contains(t, s, "Joe's Pizza (CAMIS 123)")
	assert.Contains(t, s, "1 orders, 20.00 revenue")

	err := inspectCmd.RunE(inspectCmd, []string{"Mystery Kitchen"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no mapping")

	err = inspectCmd.RunE(inspectCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--coverage")
}

func TestFormatHistory(t *testing.T) {
	rating := 5.0
	rows := []model.Inspection{
		{Identifier: "123", Grade: "B", GradeDate: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
			CriticalFlag: "Critical", ViolationDescription: "Live mice present"},
		{Identifier: "123", Grade: "C", GradeDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			Action: "Establishment re-closed by DOHMH"},
	}
	orders := []model.Order{
		{OrderID: 7, Cost: 12.5, DayOfWeek: "Weekend", Rating: &rating},
		{OrderID: 8, Cost: 7.5, DayOfWeek: "Weekday"},
	}

	var buf bytes.Buffer
	formatHistory(&buf, "Joe's Pizza", "123", rows, orders)
	s := buf.String()
	assert.Contains(t, s, "latest grade: C (2024-01-10)")
	assert.Contains(t, s, "inspection rows: 2")
	assert.Contains(t, s, "critical violations: 1")
	assert.Contains(t, s, "rodent violations: 1")
	assert.Contains(t, s, "closure actions: 1")
	assert.Contains(t, s, "2 orders, 20.00 revenue")

	buf.Reset()
	formatHistory(&buf, "Quiet Cafe", "999", nil, nil)
	assert.Contains(t, buf.String(), "latest grade: none")
}

func TestFormatCoverage(t *testing.T) {
	var buf bytes.Buffer
	formatCoverage(&buf, []string{"1", "2", "3"}, []model.Inspection{{Identifier: "2"}, {Identifier: "2"}})
	s := buf.String()
	assert.Contains(t, s, "1 of 3 mapped identifiers have inspection rows")
	assert.Contains(t, s, "missing: 1")
	assert.Contains(t, s, "missing: 3")
}

func TestFormatUnmatched(t *testing.T) {
	m := resolve.NewMatcher([]model.MappingEntry{{Name: "Known", Identifier: "1"}})
	stats := []loader.RestaurantStats{
		{RestaurantName: "Known", Cuisine: "Thai", OrderCount: 3, TotalRevenue: 60},
		{RestaurantName: "Stranger", Cuisine: "Greek", OrderCount: 2, TotalRevenue: 25.5},
	}

	var buf bytes.Buffer
	formatUnmatched(&buf, stats, []string{"Stranger"}, m)
	s := buf.String()
	assert.Contains(t, s, "Stranger")
	assert.Contains(t, s, "25.50")
	assert.NotContains(t, s, "Thai")
	assert.Contains(t, s, "1 of 2 restaurants matched (1 mapping entries)")
}

func TestFormatSyncResults(t *testing.T) {
	var buf bytes.Buffer
	formatSyncResults(&buf, []syncResult{{Days: 7, Rows: 12, Elapsed: 1500 * time.Millisecond}})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"7", "12", "1.5s"}, strings.Fields(lines[2]))
}
