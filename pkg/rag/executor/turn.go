package executor

import (
	"fmt"
	"time"

	"zara-assistant-be/pkg/ai/router"
	"zara-assistant-be/pkg/rag"
	"zara-assistant-be/pkg/rag/message"
)

// Emitter delivers one event to the client. An error means the client can no
// longer be reached.
type Emitter func(message.Event) error

const apology = "I'm sorry, I couldn't generate a response right now. Please try again in a moment."

const (
	outcomeFastPath     = "fast_path"
	outcomeText         = "text"
	outcomeTool         = "tool"
	outcomeApology      = "apology"
	outcomePartial      = "partial"
	outcomeError        = "error"
	outcomeDisconnected = "disconnected"
)

// turn tracks what has been sent so the stream and terminal-event rules hold
// even when a stage fails halfway.
type turn struct {
	id       string
	query    rag.Query
	emit     Emitter
	started  time.Time
	decision router.Decision
	passages int
	outcome  string

	streamOpen bool
	terminal   bool
	err        error
}

func newTurn(id string, q rag.Query, emit Emitter) *turn {
	return &turn{id: id, query: q, emit: emit, started: time.Now()}
}

// send emits e unless the connection is already gone. It reports whether the
// event was delivered.
func (t *turn) send(e message.Event) bool {
	if t.err != nil {
		return false
	}
	if err := t.emit(e); err != nil {
		t.err = fmt.Errorf("%w: %v", rag.ErrConnectionLost, err)
		return false
	}

	switch e.Type {
	case message.TypeStreamStart:
		t.streamOpen = true
	case message.TypeStreamEnd:
		t.streamOpen = false
	}
	if e.IsTerminal() {
		t.terminal = true
	}
	return true
}

func (t *turn) status(stage, status, msg string) bool {
	return t.send(message.Status(stage, status, msg))
}

func (t *turn) lost() bool {
	return t.err != nil
}

// fail closes any open stream, reports the error stage and apologizes if the
// client has not received content yet.
func (t *turn) fail() {
	if t.streamOpen {
		t.send(message.StreamEnd())
	}
	t.status(message.StageError, message.StatusError, "Something went wrong while processing your request")
	if !t.terminal {
		t.send(message.Answer(apology))
	}
}
