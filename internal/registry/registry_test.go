package registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-risk/internal/fetcher"
	"github.com/sells-group/inspection-risk/internal/resilience"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Get(ctx context.Context, rawURL string, query url.Values) (io.ReadCloser, error) {
	args := m.Called(ctx, rawURL, query)
	if rc, ok := args.Get(0).(io.ReadCloser); ok {
		return rc, args.Error(1)
	}
	return nil, args.Error(1)
}

func body(s string) io.ReadCloser { return io.NopCloser(strings.NewReader(s)) }

func offsetIs(offset int) any {
	return mock.MatchedBy(func(q url.Values) bool { return q.Get("$offset") == strconv.Itoa(offset) })
}

func rowsJSON(n int) string {
	rows := make([]map[string]string, n)
	for i := range rows {
		rows[i] = map[string]string{"camis": strconv.Itoa(i)}
	}
	b, _ := json.Marshal(rows)
	return string(b)
}

func TestClean(t *testing.T) {
	var rows []rawRow
	require.NoError(t, json.Unmarshal([]byte(`[{
		"camis": "0041",
		"dba": " joe's pizza ",
		"boro": "Manhattan",
		"inspection_date": "2024-03-05T00:00:00.000",
		"action": "Establishment Closed by DOHMH.",
		"violation_description": "Evidence of mice",
		"critical_flag": "Critical",
		"score": "27",
		"grade": " c",
		"grade_date": "2024-03-05",
		"zipcode": "10012"
	}, {"camis": 30075445, "score": "n/a", "inspection_date": "not a date"}]`), &rows))

	got := rows[0].clean()
	assert.Equal(t, "0041", got.Identifier)
	assert.Equal(t, "JOE'S PIZZA", got.EstablishmentName)
	assert.Equal(t, "MANHATTAN", got.Borough)
	assert.Equal(t, "ESTABLISHMENT CLOSED BY DOHMH.", got.Action)
	assert.Equal(t, "EVIDENCE OF MICE", got.ViolationDescription)
	assert.Equal(t, "Critical", got.CriticalFlag)
	assert.Equal(t, "C", got.Grade)
	assert.Equal(t, "10012", got.ZipCode)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), got.InspectionDate)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), got.GradeDate)
	require.NotNil(t, got.Score)
	assert.Equal(t, 27.0, *got.Score)

	numeric := rows[1].clean()
	assert.Equal(t, "30075445", numeric.Identifier)
	assert.Nil(t, numeric.Score)
	assert.True(t, numeric.InspectionDate.IsZero())
	assert.True(t, numeric.GradeDate.IsZero())
	assert.Equal(t, "", numeric.Grade)
}

func TestWindowClause(t *testing.T) {
	now := time.Date(2024, 4, 10, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, "inspection_date >= '2024-01-11T00:00:00'", WindowClause(now, 90))
	assert.Equal(t, "inspection_date >= '2024-04-03T00:00:00'", WindowClause(now, 7))
}

func TestInClause(t *testing.T) {
	assert.Equal(t, "camis IN ('1','0042','o''brien')", InClause([]string{"1", "0042", "o'brien"}))
}

func TestFetchAll_PaginatesOverHTTP(t *testing.T) {
	var pages atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "inspection_date DESC", q.Get("$order"))
		assert.Equal(t, "2", q.Get("$limit"))
		assert.Equal(t, "secret", r.Header.Get("X-App-Token"))
		assert.True(t, strings.HasPrefix(q.Get("$where"), "inspection_date >= '"))

		switch q.Get("$offset") {
		case "0":
			_, _ = w.Write([]byte(`[{"camis":"1","grade":"a"},{"camis":"2"}]`))
		case "2":
			_, _ = w.Write([]byte(`[{"camis":"3"}]`))
		default:
			t.Errorf("unexpected offset %s", q.Get("$offset"))
		}
	}))
	defer srv.Close()

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Headers:   map[string]string{"X-App-Token": "secret"},
		RateLimit: 1000,
		Retry:     resilience.RetryConfig{MaxAttempts: 1},
	})
	c := New(f, Options{BaseURL: srv.URL, BatchSize: 2})

	rows, err := c.FetchAll(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "A", rows[0].Grade)
	assert.Equal(t, "3", rows[2].Identifier)
	assert.Equal(t, int32(2), pages.Load())
}

func TestFetchAll_NoWindow(t *testing.T) {
	mf := new(mockFetcher)
	mf.On("Get", mock.Anything, DefaultBaseURL, mock.MatchedBy(func(q url.Values) bool {
		return q.Get("$where") == "" && q.Get("$limit") == "10000"
	})).Return(body(`[]`), nil).Once()

	rows, err := New(mf, Options{}).FetchAll(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
	mf.AssertExpectations(t)
}

func TestFetchAll_StopsAtMaxRecords(t *testing.T) {
	mf := new(mockFetcher)
	mf.On("Get", mock.Anything, mock.Anything, offsetIs(0)).Return(body(rowsJSON(2)), nil).Once()
	mf.On("Get", mock.Anything, mock.Anything, offsetIs(2)).Return(body(rowsJSON(2)), nil).Once()

	rows, err := New(mf, Options{BatchSize: 2, MaxRecords: 4}).FetchAll(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	mf.AssertExpectations(t)
}

func TestFetchAll_FailedPageKeepsPartial(t *testing.T) {
	mf := new(mockFetcher)
	mf.On("Get", mock.Anything, mock.Anything, offsetIs(0)).Return(body(rowsJSON(2)), nil).Once()
	mf.On("Get", mock.Anything, mock.Anything, offsetIs(2)).Return(nil, errors.New("http 500")).Once()

	rows, err := New(mf, Options{BatchSize: 2}).FetchAll(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	mf.AssertExpectations(t)
}

func TestFetchAll_MalformedPageKeepsPartial(t *testing.T) {
	mf := new(mockFetcher)
	mf.On("Get", mock.Anything, mock.Anything, offsetIs(0)).Return(body(rowsJSON(2)), nil).Once()
	mf.On("Get", mock.Anything, mock.Anything, offsetIs(2)).Return(body(`{"error":"bad"}`), nil).Once()

	rows, err := New(mf, Options{BatchSize: 2}).FetchAll(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestFetchAll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mf := new(mockFetcher)
	mf.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, context.Canceled)

	_, err := New(mf, Options{}).FetchAll(ctx, 90)
	require.Error(t, err)
}

func TestFetchByIdentifiers(t *testing.T) {
	ids := make([]string, 250)
	for i := range ids {
		ids[i] = strconv.Itoa(i)
	}

	mf := new(mockFetcher)
	mf.On("Get", mock.Anything, mock.Anything, mock.MatchedBy(func(q url.Values) bool {
		return strings.HasPrefix(q.Get("$where"), "camis IN ('0',")
	})).Return(body(rowsJSON(3)), nil).Once()
	mf.On("Get", mock.Anything, mock.Anything, mock.MatchedBy(func(q url.Values) bool {
		return strings.HasPrefix(q.Get("$where"), "camis IN ('200',")
	})).Return(body(rowsJSON(1)), nil).Once()

	rows, err := New(mf, Options{BatchSize: 5}).FetchByIdentifiers(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	mf.AssertExpectations(t)
}

func TestFetchByIdentifiers_Empty(t *testing.T) {
	mf := new(mockFetcher)
	rows, err := New(mf, Options{}).FetchByIdentifiers(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
	mf.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestFetchByIdentifiers_Error(t *testing.T) {
	mf := new(mockFetcher)
	mf.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("http 400"))

	_, err := New(mf, Options{}).FetchByIdentifiers(context.Background(), []string{"1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry: fetch by identifiers")
}
