package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"zara-assistant-be/internal/pkg/logger"
	"zara-assistant-be/pkg/llm"
	"zara-assistant-be/pkg/rag"
)

const (
	passageSummaryLimit = 400
	summaryLimit        = 2000
)

// Generator is the one-shot slice of the provider gateway.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error)
}

// Planner asks the model which shape the final answer should take.
type Planner struct {
	generator Generator
	composer  *PromptComposer
	logger    logger.ILogger
}

func NewPlanner(generator Generator, log logger.ILogger) *Planner {
	return &Planner{
		generator: generator,
		composer:  NewPromptComposer(),
		logger:    log,
	}
}

// Plan never fails the turn. A gateway error yields an empty Text, and an
// unparseable answer yields Text with the raw response.
func (p *Planner) Plan(ctx context.Context, query string, passages []rag.Passage, preferVisual bool) rag.Content {
	prompt := p.composer.Compose(query, Summarize(passages), preferVisual)

	raw, err := p.generator.Generate(ctx, prompt, llm.WithTemperature(0))
	if err != nil {
		p.logger.Warn("PLANNER", "Planner call failed, defaulting to text", map[string]interface{}{"error": err.Error()})
		return rag.Text{}
	}

	parsed := ParseStructured(raw)
	if !parsed.OK {
		p.logger.Debug("PLANNER", "Planner output not structured", map[string]interface{}{
			"error": fmt.Sprintf("%v", parsed.Err),
		})
		return rag.Text{Body: parsed.Raw}
	}
	return parsed.Content
}

// Summarize caps each passage and the joined summary to bound prompt size.
func Summarize(passages []rag.Passage) string {
	parts := make([]string, 0, len(passages))
	for _, ps := range passages {
		parts = append(parts, truncate(ps.Text, passageSummaryLimit))
	}
	return truncate(strings.Join(parts, "\n"), summaryLimit)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// PromptComposer assembles the planner instruction prompt
type PromptComposer struct{}

func NewPromptComposer() *PromptComposer {
	return &PromptComposer{}
}

func (c *PromptComposer) Compose(query, summary string, preferVisual bool) string {
	var prompt strings.Builder

	c.writeSystemRole(&prompt)
	c.writeShapes(&prompt)
	c.writeTools(&prompt)
	c.writeRules(&prompt, preferVisual)

	prompt.WriteString("\nUser question:\n")
	prompt.WriteString(query)
	prompt.WriteString("\n\nRelevant notes:\n")
	prompt.WriteString(summary)

	return prompt.String()
}

func (c *PromptComposer) writeSystemRole(prompt *strings.Builder) {
	prompt.WriteString("You plan responses for a UI that supports TEXT, TABLE, VIZ, or TOOL calls.\n\n")
	prompt.WriteString("Return JSON ONLY using one of:\n\n")
}

func (c *PromptComposer) writeShapes(prompt *strings.Builder) {
	prompt.WriteString(`{ "type":"text", "text":"..." }` + "\n\n")
	prompt.WriteString(`{ "type":"table", "columns":[...], "rows":[ {...}, {...} ] }` + "\n\n")
	prompt.WriteString(`{ "type":"viz",
  "title":"string",
  "traces":[ {"x":[...], "y":[...], "mode":"lines|markers", "name":"label"} ],
  "layout": { "xaxis_title":"", "yaxis_title":"", "legend":true }
}` + "\n\n")
}

func (c *PromptComposer) writeTools(prompt *strings.Builder) {
	prompt.WriteString(`{ "type":"tool", "name":"production.timeseries",
  "args": { "start":"YYYY-MM-DD", "end":"YYYY-MM-DD", "groupby":"day|week|month", "block": "optional", "well": "optional" } }` + "\n\n")
	prompt.WriteString(`{ "type":"tool", "name":"csv.timeseries",
  "args": { "date_col":"DATEPRD", "value":"BORE_OIL_VOL|BORE_GAS_VOL|BORE_WAT_VOL",
            "groupby":"day|week|month", "block":"optional", "well":"optional",
            "start":"YYYY-MM-DD", "end":"YYYY-MM-DD" } }` + "\n\n")
	prompt.WriteString(`{ "type":"tool", "name":"files.search", "args": { "q":"keyword" } }` + "\n\n")
}

func (c *PromptComposer) writeRules(prompt *strings.Builder, preferVisual bool) {
	prompt.WriteString("Prefer TOOL for any visualization/tabular answer that relies on user data.\n")
	if preferVisual {
		prompt.WriteString("The user asked for a visual answer: choose VIZ, TABLE or TOOL unless that is impossible.\n")
	}
	prompt.WriteString("Never include code or markdown. Output must be a single JSON object.\n")
}

// --- Best-effort structured parse ---

// Parsed is the tagged result of ParseStructured: either Content (OK) or the
// untouched raw text with the reason it could not be parsed.
type Parsed struct {
	OK      bool
	Content rag.Content
	Raw     string
	Err     error
}

type planJSON struct {
	Type    string                   `json:"type"`
	Text    string                   `json:"text"`
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
	Title   string                   `json:"title"`
	Traces  []struct {
		X    []interface{} `json:"x"`
		Y    []interface{} `json:"y"`
		Name string        `json:"name"`
	} `json:"traces"`
	Layout struct {
		XAxisTitle string `json:"xaxis_title"`
		YAxisTitle string `json:"yaxis_title"`
	} `json:"layout"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// ParseStructured extracts the JSON object spanning from the first '{' to the
// last '}' of raw and decodes it into a plan. It never panics.
func ParseStructured(raw string) Parsed {
	unparsed := func(err error) Parsed {
		return Parsed{Raw: raw, Err: fmt.Errorf("%w: %w", rag.ErrMalformedPlannerOutput, err)}
	}

	jsonContent, ok := extractJSON(raw)
	if !ok {
		return unparsed(fmt.Errorf("no JSON object found"))
	}

	var p planJSON
	if err := json.Unmarshal([]byte(jsonContent), &p); err != nil {
		return unparsed(err)
	}

	switch strings.ToLower(p.Type) {
	case "text":
		return Parsed{OK: true, Content: rag.Text{Body: p.Text}, Raw: raw}

	case "table":
		if len(p.Columns) == 0 {
			return unparsed(fmt.Errorf("table without columns"))
		}
		return Parsed{OK: true, Content: &rag.Table{Columns: p.Columns, Rows: p.Rows}, Raw: raw}

	case "viz", "chart":
		chart := &rag.Chart{Title: p.Title, XLabel: p.Layout.XAxisTitle, YLabel: p.Layout.YAxisTitle}
		for _, t := range p.Traces {
			chart.Series = append(chart.Series, rag.Series{Name: t.Name, X: t.X, Y: t.Y})
		}
		return Parsed{OK: true, Content: chart, Raw: raw}

	case "tool":
		if p.Name == "" {
			return unparsed(fmt.Errorf("tool call without name"))
		}
		args := p.Args
		if args == nil {
			args = map[string]interface{}{}
		}
		return Parsed{OK: true, Content: &rag.ToolCall{Name: p.Name, Args: args}, Raw: raw}

	default:
		return unparsed(fmt.Errorf("unknown plan type %q", p.Type))
	}
}

// extractJSON isolates JSON content from response
func extractJSON(response string) (string, bool) {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return "", false
	}

	return response[startIdx : endIdx+1], true
}
