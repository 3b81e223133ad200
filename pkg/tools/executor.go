package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"zara-assistant-be/internal/pkg/logger"
	"zara-assistant-be/pkg/metrics"
	"zara-assistant-be/pkg/rag"
)

const (
	ProductionTimeseries = "production.timeseries"
	CSVTimeseries        = "csv.timeseries"
	FilesSearch          = "files.search"

	maxSearchRows = 50
)

// SearchColumns is the fixed column set of a files.search table.
var SearchColumns = []string{"filename", "mime_type", "doc_type", "basin", "block"}

const notRecognized = "Tool not recognized."

// Executor runs the closed set of planner tools against the metrics API.
// Execute never returns an error; every failure becomes a Text result.
type Executor struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  logger.ILogger
}

func NewExecutor(baseURL string, timeout time.Duration, log logger.ILogger) *Executor {
	return &Executor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: timeout,
		logger:  log,
	}
}

func (e *Executor) Execute(ctx context.Context, call *rag.ToolCall) rag.Content {
	if call == nil {
		return rag.Text{Body: notRecognized}
	}

	var (
		result rag.Content
		err    error
	)
	switch call.Name {
	case ProductionTimeseries:
		result, err = e.productionTimeseries(ctx, call.Args)
	case CSVTimeseries:
		result, err = e.csvTimeseries(ctx, call.Args)
	case FilesSearch:
		result, err = e.filesSearch(ctx, call.Args)
	default:
		metrics.ToolCallsTotal.WithLabelValues("unknown", "not_recognized").Inc()
		e.logger.Warn("TOOLS", "Unknown tool requested", map[string]interface{}{"tool": call.Name})
		return rag.Text{Body: notRecognized}
	}

	if err != nil {
		return e.explain(call.Name, err)
	}
	metrics.ToolCallsTotal.WithLabelValues(call.Name, "success").Inc()
	return result
}

func (e *Executor) explain(tool string, err error) rag.Content {
	if errors.Is(err, rag.ErrToolArgumentInvalid) {
		metrics.ToolCallsTotal.WithLabelValues(tool, "invalid_args").Inc()
		e.logger.Warn("TOOLS", "Tool arguments rejected", map[string]interface{}{"tool": tool, "error": err.Error()})
		return rag.Text{Body: fmt.Sprintf("I couldn't run %s: %v.", tool, err)}
	}

	metrics.ToolCallsTotal.WithLabelValues(tool, "upstream_error").Inc()
	e.logger.Error("TOOLS", "Tool call failed", map[string]interface{}{"tool": tool, "error": err.Error()})
	return rag.Text{Body: fmt.Sprintf("The %s tool is unavailable right now, please try again later.", tool)}
}

type timeseriesResponse struct {
	GroupBy string        `json:"groupby"`
	Dates   []interface{} `json:"dates"`
	Oil     []interface{} `json:"oil"`
	Gas     []interface{} `json:"gas"`
	Water   []interface{} `json:"water"`
}

func (e *Executor) productionTimeseries(ctx context.Context, raw map[string]interface{}) (rag.Content, error) {
	var args ProductionArgs
	if err := bindArgs(raw, &args); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("start", args.Start)
	params.Set("end", args.End)
	params.Set("groupby", args.GroupBy)
	setIfPresent(params, "block", args.Block)
	setIfPresent(params, "well", args.Well)

	var data timeseriesResponse
	if err := e.getJSON(ctx, "/api/metrics/production", params, &data); err != nil {
		return nil, err
	}

	return &rag.Chart{
		Title: fmt.Sprintf("Production (%s)", orDefault(data.GroupBy, args.GroupBy)),
		Series: []rag.Series{
			{Name: "Oil (bopd)", X: data.Dates, Y: data.Oil},
			{Name: "Gas (mmscfd)", X: data.Dates, Y: data.Gas},
		},
		XLabel: "Date",
		YLabel: "Value",
	}, nil
}

func (e *Executor) csvTimeseries(ctx context.Context, raw map[string]interface{}) (rag.Content, error) {
	var args CSVArgs
	if err := bindArgs(raw, &args); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("start", args.Start)
	params.Set("end", args.End)
	params.Set("groupby", args.GroupBy)
	setIfPresent(params, "block", args.Block)
	setIfPresent(params, "well", args.Well)

	var data timeseriesResponse
	if err := e.getJSON(ctx, "/api/metrics/aceh/production", params, &data); err != nil {
		return nil, err
	}

	y, name := data.Water, "Water (bbl)"
	switch {
	case strings.HasSuffix(args.Value, "OIL_VOL"):
		y, name = data.Oil, "Oil (bbl)"
	case strings.HasSuffix(args.Value, "GAS_VOL"):
		y, name = data.Gas, "Gas (mscf)"
	}

	title := fmt.Sprintf("%s by %s", name, orDefault(data.GroupBy, args.GroupBy))
	if args.Block != "" {
		title += " — " + args.Block
	}
	if args.Well != "" {
		title += " — " + args.Well
	}

	return &rag.Chart{
		Title:  title,
		Series: []rag.Series{{Name: name, X: data.Dates, Y: y}},
		XLabel: "Date",
		YLabel: name,
	}, nil
}

func (e *Executor) filesSearch(ctx context.Context, raw map[string]interface{}) (rag.Content, error) {
	var args SearchArgs
	if err := bindArgs(raw, &args); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", args.Q)

	var hits []map[string]interface{}
	if err := e.getJSON(ctx, "/api/drive/search", params, &hits); err != nil {
		return nil, err
	}
	if len(hits) > maxSearchRows {
		hits = hits[:maxSearchRows]
	}

	rows := make([]map[string]interface{}, 0, len(hits))
	for _, hit := range hits {
		row := make(map[string]interface{}, len(SearchColumns))
		for _, col := range SearchColumns {
			v, ok := hit[col]
			if !ok || v == nil {
				v = ""
			}
			row[col] = v
		}
		rows = append(rows, row)
	}

	return &rag.Table{Columns: append([]string(nil), SearchColumns...), Rows: rows}, nil
}

func (e *Executor) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	endpoint := e.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func setIfPresent(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}
