package message

import (
	"zara-assistant-be/pkg/agent"
	"zara-assistant-be/pkg/rag"
)

// Type is the wire name of an outbound event
type Type string

const (
	TypeUser           Type = "user"
	TypeStatus         Type = "agno_status"
	TypeStreamStart    Type = "stream_start"
	TypeStreamChunk    Type = "stream_chunk"
	TypeStreamEnd      Type = "stream_end"
	TypeAnswer         Type = "answer"
	TypeAnswerEnhanced Type = "answer_enhanced"
	TypeResult         Type = "result"
	TypeViz            Type = "viz"
	TypeTable          Type = "table"
	TypeEnhancement    Type = "agno_enhancement"
	TypeEvaluation     Type = "agno_evaluation"
	TypeHeartbeat      Type = "heartbeat"
)

// Pipeline stages reported in agno_status events.
const (
	StageClassify = "classify"
	StageContext  = "context"
	StageEnhance  = "enhance"
	StageRetrieve = "retrieve"
	StagePlan     = "plan"
	StageGenerate = "generate"
	StageTool     = "tool"
	StageEvaluate = "evaluate"
	StageError    = "error"
)

const (
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusError      = "error"
)

// Event is one outbound WebSocket frame.
type Event struct {
	Type    Type        `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	Stage   string      `json:"stage,omitempty"`
	Status  string      `json:"status,omitempty"`
}

// IsTerminal reports whether e carries the final content of a turn.
func (e Event) IsTerminal() bool {
	switch e.Type {
	case TypeAnswer, TypeTable, TypeViz, TypeStreamEnd:
		return true
	}
	return false
}

type sourceMeta struct {
	FileID  string `json:"file_id"`
	Page    int    `json:"page"`
	Section string `json:"section"`
}

type sourceObject struct {
	Text  string     `json:"text"`
	Meta  sourceMeta `json:"meta"`
	Score float64    `json:"score"`
}

type resultPayload struct {
	Objects []sourceObject `json:"objects"`
}

type vizTrace struct {
	X    []interface{} `json:"x"`
	Y    []interface{} `json:"y"`
	Mode string        `json:"mode"`
	Name string        `json:"name"`
}

type vizLayout struct {
	XAxisTitle string `json:"xaxis_title"`
	YAxisTitle string `json:"yaxis_title"`
	Legend     bool   `json:"legend"`
}

type vizPayload struct {
	Title  string     `json:"title"`
	Traces []vizTrace `json:"traces"`
	Layout vizLayout  `json:"layout"`
}

type evaluationPayload struct {
	ImprovementsMade bool     `json:"improvements_made"`
	Confidence       float64  `json:"confidence"`
	Reasoning        string   `json:"reasoning"`
	Suggestions      []string `json:"suggestions"`
}

func User(query string) Event {
	return Event{Type: TypeUser, Payload: query}
}

func Status(stage, status, msg string) Event {
	return Event{Type: TypeStatus, Payload: msg, Stage: stage, Status: status}
}

func Sources(passages []rag.Passage) Event {
	objects := make([]sourceObject, 0, len(passages))
	for _, p := range passages {
		objects = append(objects, sourceObject{
			Text:  p.Text,
			Meta:  sourceMeta{FileID: p.FileID, Page: p.Page, Section: p.Section},
			Score: p.Similarity,
		})
	}
	return Event{Type: TypeResult, Payload: resultPayload{Objects: objects}}
}

func StreamStart() Event {
	return Event{Type: TypeStreamStart, Payload: struct{}{}}
}

func StreamChunk(text string) Event {
	return Event{Type: TypeStreamChunk, Payload: text}
}

func StreamEnd() Event {
	return Event{Type: TypeStreamEnd, Payload: struct{}{}}
}

func Answer(text string) Event {
	return Event{Type: TypeAnswer, Payload: text}
}

func AnswerEnhanced(text string) Event {
	return Event{Type: TypeAnswerEnhanced, Payload: text}
}

func Table(t *rag.Table) Event {
	rows := t.Rows
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	return Event{Type: TypeTable, Payload: rag.Table{Columns: t.Columns, Rows: rows}}
}

func Viz(c *rag.Chart) Event {
	traces := make([]vizTrace, 0, len(c.Series))
	for _, s := range c.Series {
		traces = append(traces, vizTrace{X: nonNil(s.X), Y: nonNil(s.Y), Mode: "lines", Name: s.Name})
	}
	return Event{Type: TypeViz, Payload: vizPayload{
		Title:  c.Title,
		Traces: traces,
		Layout: vizLayout{XAxisTitle: c.XLabel, YAxisTitle: c.YLabel, Legend: true},
	}}
}

// Content renders a plan or tool result as its terminal event. A ToolCall
// has no wire form and renders as an empty answer.
func Content(c rag.Content) Event {
	switch v := c.(type) {
	case *rag.Table:
		return Table(v)
	case *rag.Chart:
		return Viz(v)
	case rag.Text:
		return Answer(v.Body)
	default:
		return Answer("")
	}
}

func Enhancement(e agent.Enhancement) Event {
	if e.Suggestions == nil {
		e.Suggestions = []string{}
	}
	return Event{Type: TypeEnhancement, Payload: e}
}

func Evaluation(e agent.Evaluation) Event {
	suggestions := e.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	return Event{Type: TypeEvaluation, Payload: evaluationPayload{
		ImprovementsMade: e.Changed(),
		Confidence:       e.Confidence,
		Reasoning:        e.Reasoning,
		Suggestions:      suggestions,
	}}
}

func Heartbeat() Event {
	return Event{Type: TypeHeartbeat}
}

func nonNil(v []interface{}) []interface{} {
	if v == nil {
		return []interface{}{}
	}
	return v
}
