package rag

// Mode selects how much of the pipeline a turn runs
type Mode string

const (
	ModeEnhanced      Mode = "enhanced" // full pipeline (default)
	ModeNormal        Mode = "normal"
	ModeQuery         Mode = "query"
	ModeVisualization Mode = "visualization"
)

// Query is one user turn. Immutable once received.
type Query struct {
	Text           string
	TenantID       string
	FileID         string // optional scope, empty for all documents
	ConversationID string
	Mode           Mode
}

// Passage is a retrieved chunk of source text.
type Passage struct {
	SourceID   string  `json:"source_id"`
	FileID     string  `json:"file_id"`
	Text       string  `json:"text"`
	Page       int     `json:"page"`
	Section    string  `json:"section"`
	Similarity float64 `json:"similarity"`
}

// Kind tags the variants of Content
type Kind string

const (
	KindText  Kind = "text"
	KindTable Kind = "table"
	KindChart Kind = "chart"
	KindTool  Kind = "tool"
)

// Content is the shape of a turn's final answer: Text, *Table, *Chart or
// *ToolCall. Tool results never carry a *ToolCall.
type Content interface {
	Kind() Kind
}

type Text struct {
	Body string
}

type Table struct {
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
}

type Series struct {
	Name string        `json:"name"`
	X    []interface{} `json:"x"`
	Y    []interface{} `json:"y"`
}

type Chart struct {
	Title  string   `json:"title"`
	Series []Series `json:"series"`
	XLabel string   `json:"x_label"`
	YLabel string   `json:"y_label"`
}

type ToolCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

func (Text) Kind() Kind      { return KindText }
func (*Table) Kind() Kind    { return KindTable }
func (*Chart) Kind() Kind    { return KindChart }
func (*ToolCall) Kind() Kind { return KindTool }
