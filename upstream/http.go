package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"airnav/notamwatch/notam"
	"airnav/notamwatch/notam/fieldmap"
)

// maxResponseBodyBytes limits how much of a response is read.
const maxResponseBodyBytes = 10 * 1024 * 1024 // 10 MB

// Default transport settings.
const (
	defaultPageSize       = 100
	defaultPageDelay      = 500 * time.Millisecond
	defaultRequestTimeout = 30 * time.Second
	defaultUserAgent      = "notamwatch/1.0"
)

// HTTPConfig configures the direct API transport.
type HTTPConfig struct {
	// Endpoint is the search URL (form POST).
	Endpoint string
	// PageSize is the requested rows per page.
	PageSize int
	// PageDelay is the fixed pause between successive page requests.
	PageDelay time.Duration
	// RequestTimeout bounds a single HTTP round trip.
	RequestTimeout time.Duration
	// UserAgent sent with every request.
	UserAgent string
	// Retry is the per-request transient-failure budget.
	Retry RetryPolicy
}

// WithDefaults returns a copy with defaults applied to zero-value fields.
func (c HTTPConfig) WithDefaults() HTTPConfig {
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	if c.PageDelay <= 0 {
		c.PageDelay = defaultPageDelay
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = DefaultRetryPolicy()
	}
	return c
}

// HTTPTransport fetches records through the portal's search endpoint,
// page by page. Pages are requested strictly sequentially with a fixed
// delay to respect upstream rate limits.
type HTTPTransport struct {
	cfg    HTTPConfig
	client *http.Client
	table  *fieldmap.Table
	log    *zap.Logger
}

// NewHTTPTransport builds the primary transport. A nil client gets a
// default one bound to the configured request timeout.
func NewHTTPTransport(cfg HTTPConfig, client *http.Client, table *fieldmap.Table, log *zap.Logger) *HTTPTransport {
	cfg = cfg.WithDefaults()
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &HTTPTransport{cfg: cfg, client: client, table: table, log: log}
}

// Fetch retrieves every page for the window. It stops on a short page, an
// empty page, or once the advertised total is reached. It aborts with
// ErrPageDuplicate if two consecutive pages open with the same keys, and
// with ErrTotalMismatch if the stream ends short of the advertised total,
// so a broken upstream paginator is surfaced instead of tolerated.
func (t *HTTPTransport) Fetch(ctx context.Context, source notam.Source, window Window) ([]notam.Record, *FetchReport, error) {
	if err := window.Validate(); err != nil {
		return nil, nil, err
	}

	report := &FetchReport{TotalCount: -1}

	var (
		all      []notam.Record
		prevPage []notam.Record
		rowsSeen int
	)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		pageRecs, rowCount, total, err := t.fetchPage(ctx, source, window, page, report)
		if err != nil {
			return nil, nil, fmt.Errorf("page %d: %w", page, err)
		}
		report.Pages = page
		if total >= 0 && report.TotalCount < 0 {
			report.TotalCount = total
			t.log.Debug("upstream advertised total",
				zap.String("source", source.Code), zap.Int("total", total))
		}

		if rowCount == 0 {
			break
		}
		if samePageStart(prevPage, pageRecs) {
			return nil, nil, fmt.Errorf("%w: pages %d and %d", ErrPageDuplicate, page-1, page)
		}

		// Pagination arithmetic runs on raw row counts: padding rows
		// the mapper drops still occupied a slot on the page.
		rowsSeen += rowCount
		all = append(all, pageRecs...)
		t.log.Debug("page fetched",
			zap.String("source", source.Code),
			zap.Int("page", page),
			zap.Int("rows", rowCount),
			zap.Int("records", len(pageRecs)),
			zap.Int("cumulative", len(all)))

		if report.TotalCount >= 0 && rowsSeen >= report.TotalCount {
			break
		}
		if rowCount < t.cfg.PageSize {
			break
		}

		prevPage = pageRecs
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(t.cfg.PageDelay):
		}
	}

	if report.TotalCount >= 0 && rowsSeen < report.TotalCount {
		return nil, nil, fmt.Errorf("%w: got %d of %d rows", ErrTotalMismatch, rowsSeen, report.TotalCount)
	}

	return all, report, nil
}

// fetchPage issues one page request under the retry policy and normalizes
// the rows. It returns the mapped records plus the raw row count, since
// non-record rows still count toward the page. Timeouts, 5xx, and
// malformed bodies are retried; 4xx are not.
func (t *HTTPTransport) fetchPage(ctx context.Context, source notam.Source, window Window, page int, report *FetchReport) ([]notam.Record, int, int, error) {
	form := t.searchForm(source, window, page)

	var (
		records  []notam.Record
		rowCount int
		total    int
	)

	err := t.cfg.Retry.Do(ctx, func() error {
		body, err := t.post(ctx, form)
		if err != nil {
			return err
		}

		parser, err := SniffParser(body)
		if err != nil {
			return err
		}
		rows, pageTotal, err := parser.Parse(body)
		if err != nil {
			return err
		}

		fetchedAt := time.Now().UTC()
		records = records[:0]
		rowCount = len(rows)
		for _, row := range rows {
			rec, drift, ok := t.table.Record(row, source.Code, fetchedAt)
			if !ok {
				continue
			}
			for _, d := range drift {
				t.log.Warn("schema drift", zap.String("source", source.Code), zap.String("detail", d.String()))
			}
			report.Drift = appendDrift(report.Drift, drift)
			records = append(records, rec)
		}
		total = pageTotal
		return nil
	})
	if err != nil {
		return nil, 0, 0, err
	}
	return records, rowCount, total, nil
}

func (t *HTTPTransport) post(ctx context.Context, form url.Values) ([]byte, error) {
	// The timeout applies per round trip whatever client was injected.
	ctx, cancel := context.WithTimeout(ctx, t.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("User-Agent", t.cfg.UserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, Permanent(fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	return body, nil
}

// searchForm builds the portal's form-POST payload for one page.
func (t *HTTPTransport) searchForm(source notam.Source, window Window, page int) url.Values {
	fromDate, fromTime, toDate, toTime := window.FormDates()

	var series []string
	snow := ""
	for _, s := range source.Series {
		// SNOWTAM travels in its own form field.
		if strings.EqualFold(s, "SNOWTAM") {
			snow = "SNOWTAM"
			continue
		}
		series = append(series, s)
	}

	form := url.Values{}
	form.Set("sch_inorout", source.Scope)
	form.Set("sch_airport", strings.Join(source.Stations, ","))
	form.Set("sch_from_date", fromDate)
	form.Set("sch_from_time", fromTime)
	form.Set("sch_to_date", toDate)
	form.Set("sch_to_time", toTime)
	form.Set("sch_series", strings.Join(series, ","))
	form.Set("sch_snow_series", snow)
	form.Set("sch_notam_no", "")
	form.Set("sch_qcode", "")
	form.Set("sch_fir", "")
	form.Set("sch_full_text", "")
	form.Set("ibsheetPageNo", strconv.Itoa(page))
	form.Set("ibsheetRowPerPage", strconv.Itoa(t.cfg.PageSize))
	return form
}

func appendDrift(dst []fieldmap.Drift, src []fieldmap.Drift) []fieldmap.Drift {
	for _, d := range src {
		dup := false
		for _, have := range dst {
			if have == d {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, d)
		}
	}
	return dst
}
