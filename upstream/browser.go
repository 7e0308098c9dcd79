package upstream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"airnav/notamwatch/notam"
	"airnav/notamwatch/notam/fieldmap"
)

// Browser transport defaults.
const (
	defaultBrowserTimeout = 2 * time.Minute
	pageSettleDelay       = 2 * time.Second
	resultSettleDelay     = 3 * time.Second
)

// BrowserConfig configures the headless-browser fallback transport.
type BrowserConfig struct {
	// PortalURL is the interactive portal page.
	PortalURL string
	// Timeout bounds one full browser session.
	Timeout time.Duration
	// UserAgent for the browser session.
	UserAgent string
	// Headful disables headless mode (debugging only).
	Headful bool
}

// BrowserTransport replicates the search through the portal UI: it fills
// the same window fields, toggles the station and series buttons, runs
// the search, and reads the results grid through the in-page grid API
// with a plain DOM walk as fallback. Output is normalized through the
// same field-mapping table as the API transport, so both produce
// identical Record shapes.
type BrowserTransport struct {
	cfg   BrowserConfig
	table *fieldmap.Table
	log   *zap.Logger
}

func NewBrowserTransport(cfg BrowserConfig, table *fieldmap.Table, log *zap.Logger) *BrowserTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultBrowserTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &BrowserTransport{cfg: cfg, table: table, log: log}
}

func (t *BrowserTransport) Fetch(ctx context.Context, source notam.Source, window Window) ([]notam.Record, *FetchReport, error) {
	if err := window.Validate(); err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !t.cfg.Headful),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(t.cfg.UserAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	fromDate, fromTime, toDate, toTime := window.FormDates()

	var gridRows []map[string]string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(t.cfg.PortalURL),
		chromedp.Sleep(pageSettleDelay),
		chromedp.Evaluate(dismissModalScript, nil),
		chromedp.Evaluate(selectScopeScript(source.Scope), nil),
		chromedp.Evaluate(toggleStationsScript(source.Stations), nil),
		chromedp.Evaluate(toggleSeriesScript(source.Series), nil),
		chromedp.Evaluate(fillWindowScript(fromDate, fromTime, toDate, toTime), nil),
		chromedp.Evaluate(clickSearchScript, nil),
		chromedp.Sleep(resultSettleDelay),
		chromedp.Evaluate(extractGridScript, &gridRows),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("browser session: %w", err)
	}

	fetchedAt := time.Now().UTC()
	report := &FetchReport{Pages: 1, TotalCount: -1}

	records := make([]notam.Record, 0, len(gridRows))
	for _, row := range gridRows {
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

	t.log.Info("browser fetch complete",
		zap.String("source", source.Code),
		zap.Int("records", len(records)))

	return records, report, nil
}

// dismissModalScript force-closes the portal's entry modal.
const dismissModalScript = `(function() {
	if (typeof $ !== 'undefined' && $('.modal').length > 0) {
		$('.modal').modal('hide');
		$('.modal-backdrop').remove();
		$('body').removeClass('modal-open');
	}
	return true;
})()`

// clickSearchScript fires the search button.
const clickSearchScript = `(function() {
	var btn = document.querySelector('a.btn-primary');
	if (btn) { btn.click(); return true; }
	return false;
})()`

func selectScopeScript(scope string) string {
	// The international tab is a labelled toggle; domestic is the default.
	if scope != "I" {
		return `true`
	}
	return `(function() {
		var labels = document.querySelectorAll('label, span');
		for (var i = 0; i < labels.length; i++) {
			if (labels[i].textContent.indexOf('국제') >= 0) { labels[i].click(); return true; }
		}
		return false;
	})()`
}

func toggleStationsScript(stations []string) string {
	return `(function() {
		var wanted = ` + jsStringArray(stations) + `;
		var clicked = 0;
		document.querySelectorAll('button.bt-sm').forEach(function(btn) {
			if (wanted.indexOf(btn.textContent.trim()) >= 0) { btn.click(); clicked++; }
		});
		return clicked;
	})()`
}

func toggleSeriesScript(series []string) string {
	return `(function() {
		var wanted = ` + jsStringArray(series) + `;
		var clicked = 0;
		document.querySelectorAll('div.mntype-block2').forEach(function(div) {
			var link = div.querySelector('a');
			if (link && wanted.indexOf(link.textContent.trim()) >= 0) { div.click(); clicked++; }
		});
		return clicked;
	})()`
}

func fillWindowScript(fromDate, fromTime, toDate, toTime string) string {
	return `(function() {
		var set = function(name, value) {
			var el = document.getElementsByName(name)[0];
			if (el) { el.value = value; }
		};
		set('sch_from_date', '` + fromDate + `');
		set('sch_from_time', '` + fromTime + `');
		set('sch_to_date', '` + toDate + `');
		set('sch_to_time', '` + toTime + `');
		return true;
	})()`
}

// extractGridScript reads the results through the in-page grid API and
// falls back to walking the rendered table rows when the API is absent.
// Either path yields an array of objects keyed by the grid's snake_case
// field names, matching the mapping table's fallback aliases.
const extractGridScript = `(function() {
	var out = [];
	if (typeof Grids !== 'undefined' && Grids && Grids.length > 0) {
		var grid = Grids[0];
		var rowCount = grid.GetDataRows ? grid.GetDataRows() : 0;
		for (var i = 1; i <= rowCount; i++) {
			var row = {
				notam_type: String(grid.GetCellValue(i, 'C2') || ''),
				issue_time: String(grid.GetCellValue(i, 'C3') || ''),
				location: String(grid.GetCellValue(i, 'C4') || ''),
				notam_no: String(grid.GetCellValue(i, 'C5') || ''),
				qcode: String(grid.GetCellValue(i, 'C6') || ''),
				start_time: String(grid.GetCellValue(i, 'C7') || ''),
				end_time: String(grid.GetCellValue(i, 'C8') || ''),
				full_text: String(grid.GetCellValue(i, 'C9') || ''),
				full_text_detail: String(grid.GetCellValue(i, 'C10') || '')
			};
			if (row.notam_no.trim() !== '') { out.push(row); }
		}
		return out;
	}
	var names = ['', 'notam_type', 'issue_time', 'location', 'notam_no',
		'qcode', 'start_time', 'end_time', 'full_text', 'full_text_detail'];
	document.querySelectorAll('table tbody tr').forEach(function(tr) {
		var cells = tr.querySelectorAll('td');
		if (cells.length < names.length) { return; }
		var row = {};
		for (var i = 1; i < names.length; i++) {
			row[names[i]] = cells[i].textContent.trim();
		}
		if (row.notam_no && row.notam_no.indexOf('NOTAM NO') < 0) { out.push(row); }
	});
	return out;
})()`

func jsStringArray(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = `'` + strings.ReplaceAll(s, `'`, ``) + `'`
	}
	return `[` + strings.Join(quoted, ",") + `]`
}
