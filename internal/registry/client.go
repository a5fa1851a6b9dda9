// Package registry pages through the public restaurant inspection dataset
// over the Socrata SODA API.
package registry

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-risk/internal/fetcher"
	"github.com/sells-group/inspection-risk/internal/model"
)

// Defaults for the public dataset.
const (
	DefaultBaseURL    = "https://data.cityofnewyork.us/resource/43nn-pn8j.json"
	DefaultBatchSize  = 10000
	DefaultMaxRecords = 200000

	// identifierChunk bounds the IN list of one identifier query.
	identifierChunk = 200

	orderNewestFirst = "inspection_date DESC"

	// AppTokenHeader carries the optional Socrata app token.
	AppTokenHeader = "X-App-Token"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	BatchSize  int
	MaxRecords int
}

// Client fetches inspection rows page by page.
type Client struct {
	fetcher fetcher.Fetcher
	opts    Options
	now     func() time.Time
}

// New creates a Client. Zero options take the package defaults.
func New(f fetcher.Fetcher, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = DefaultMaxRecords
	}
	return &Client{fetcher: f, opts: opts, now: time.Now}
}

// FetchPage requests one page, newest inspections first.
func (c *Client) FetchPage(ctx context.Context, limit, offset int, where string) ([]model.Inspection, error) {
	q := url.Values{
		"$limit":  {strconv.Itoa(limit)},
		"$offset": {strconv.Itoa(offset)},
		"$order":  {orderNewestFirst},
	}
	if where != "" {
		q.Set("$where", where)
	}

	body, err := c.fetcher.Get(ctx, c.opts.BaseURL, q)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: fetch page at offset %d", offset)
	}
	defer body.Close() //nolint:errcheck

	var rows []model.Inspection
	if _, err := fetcher.DecodeJSONArray(ctx, body, func(r rawRow) error {
		rows = append(rows, r.clean())
		return nil
	}); err != nil {
		return nil, eris.Wrapf(err, "registry: decode page at offset %d", offset)
	}
	return rows, nil
}

// WindowClause restricts results to inspections on or after the start of
// the day `days` days before now.
func WindowClause(now time.Time, days int) string {
	start := now.AddDate(0, 0, -days)
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	return fmt.Sprintf("inspection_date >= '%s'", start.Format("2006-01-02T15:04:05"))
}

// FetchAll pages through inspections from the last `days` days (all of them
// when days <= 0) until a short page or MaxRecords. A page that fails after
// retries ends pagination; the rows fetched so far are returned.
func (c *Client) FetchAll(ctx context.Context, days int) ([]model.Inspection, error) {
	log := zap.L().With(zap.String("component", "registry"), zap.Int("days", days))

	var where string
	if days > 0 {
		where = WindowClause(c.now(), days)
	}

	var all []model.Inspection
	for offset := 0; offset < c.opts.MaxRecords; offset += c.opts.BatchSize {
		page, err := c.FetchPage(ctx, c.opts.BatchSize, offset, where)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "registry: fetch all")
			}
			log.Error("page failed, keeping rows fetched so far",
				zap.Int("offset", offset),
				zap.Int("fetched", len(all)),
				zap.Error(err),
			)
			break
		}
		all = append(all, page...)
		log.Debug("fetched page", zap.Int("offset", offset), zap.Int("total", len(all)))
		if len(page) < c.opts.BatchSize {
			break
		}
	}

	log.Info("fetched inspections", zap.Int("records", len(all)))
	return all, nil
}

// FetchByIdentifiers returns every inspection row for the given identifiers.
// Unlike FetchAll, any failed page is an error.
func (c *Client) FetchByIdentifiers(ctx context.Context, ids []string) ([]model.Inspection, error) {
	var all []model.Inspection
	for start := 0; start < len(ids); start += identifierChunk {
		where := InClause(ids[start:min(start+identifierChunk, len(ids))])
		for offset := 0; ; offset += c.opts.BatchSize {
			page, err := c.FetchPage(ctx, c.opts.BatchSize, offset, where)
			if err != nil {
				return nil, eris.Wrap(err, "registry: fetch by identifiers")
			}
			all = append(all, page...)
			if len(page) < c.opts.BatchSize {
				break
			}
		}
	}
	return all, nil
}

// InClause builds `camis IN ('a','b')` with single quotes escaped.
func InClause(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = "'" + strings.ReplaceAll(id, "'", "''") + "'"
	}
	return "camis IN (" + strings.Join(quoted, ",") + ")"
}
