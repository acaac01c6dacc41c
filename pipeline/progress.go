package pipeline

import (
	"encoding/json"
	"io"

	"github.com/pterm/pterm"

	"github.com/teranos/matinee/logger"
)

// Type discriminates wire events.
type Type string

const (
	TypeProgress Type = "progress"
	TypeComplete Type = "complete"
	TypeError    Type = "error"
)

// Stage names a pipeline phase. Stages appear in events, logs, and error
// messages, so the strings are part of the wire contract.
type Stage string

const (
	StageScraping         Stage = "scraping"
	StageMatching         Stage = "matching"
	StagePoolBuilding     Stage = "pool_building"
	StageRecommending     Stage = "recommending"
	StageResultEnrichment Stage = "result_enrichment"

	// Stages used by the profile flows, which share the scraping and
	// matching stages above.
	StageAnalyzing Stage = "analyzing"
	StageComparing Stage = "comparing"
)

// Event is the wire form shared by the SSE, WebSocket, and CLI JSON
// transports. Progress events may carry within-stage counters; Completed
// marks the progress event that closes a stage. A run ends with exactly one
// terminal event: a complete event carrying the result payload, or an error
// event carrying the stage and reason.
//
// Result is *Result for recommendation runs; the analysis and comparison
// flows put their own payloads here.
type Event struct {
	Type      Type        `json:"type"`
	Stage     Stage       `json:"stage,omitempty"`
	Message   string      `json:"message,omitempty"`
	Current   int         `json:"current,omitempty"`
	Total     int         `json:"total,omitempty"`
	Completed bool        `json:"completed,omitempty"`
	Result    interface{} `json:"result,omitempty"`
}

// Emitter receives run lifecycle notifications. Methods are the event
// variants; implementations adapt them to a transport (SSE, WebSocket,
// terminal). Run invokes methods sequentially, so implementations need no
// locking of their own.
//
// Implementations include:
//   - CLIEmitter: pretty-printed terminal output using pterm
//   - JSONEmitter: one JSON event per line, for --json mode
//   - EventEmitter: wire-event callback, used by the server transports
type Emitter interface {
	// EmitStage announces the start of a pipeline stage.
	EmitStage(stage Stage, message string)

	// EmitProgress reports within-stage counters, e.g. matched titles so far
	// out of the scraped total.
	EmitProgress(stage Stage, message string, current, total int)

	// EmitStageComplete closes a stage with a summary line.
	EmitStageComplete(stage Stage, message string)

	// EmitComplete delivers the terminal payload, *Result for
	// recommendation runs. A run fires exactly one of EmitComplete or
	// EmitError, never both.
	EmitComplete(payload interface{})

	// EmitError reports the failure that aborted the run.
	EmitError(stage Stage, message string)
}

// EventEmitter adapts a per-event callback to the Emitter interface, building
// the wire Event for each variant. Transports that forward events verbatim
// use this instead of implementing Emitter themselves.
type EventEmitter func(Event)

func (f EventEmitter) EmitStage(stage Stage, message string) {
	f(Event{Type: TypeProgress, Stage: stage, Message: message})
}

func (f EventEmitter) EmitProgress(stage Stage, message string, current, total int) {
	f(Event{Type: TypeProgress, Stage: stage, Message: message, Current: current, Total: total})
}

func (f EventEmitter) EmitStageComplete(stage Stage, message string) {
	f(Event{Type: TypeProgress, Stage: stage, Message: message, Completed: true})
}

func (f EventEmitter) EmitComplete(payload interface{}) {
	f(Event{Type: TypeComplete, Result: payload})
}

func (f EventEmitter) EmitError(stage Stage, message string) {
	f(Event{Type: TypeError, Stage: stage, Message: message})
}

// NopEmitter discards all events. Used when the caller only wants the
// returned result.
type NopEmitter struct{}

func (NopEmitter) EmitStage(Stage, string)              {}
func (NopEmitter) EmitProgress(Stage, string, int, int) {}
func (NopEmitter) EmitStageComplete(Stage, string)      {}
func (NopEmitter) EmitComplete(interface{})             {}
func (NopEmitter) EmitError(Stage, string)              {}

// CLIEmitter prints progress to the terminal using pterm.
type CLIEmitter struct {
	verbosity int
}

// NewCLIEmitter creates a terminal progress emitter. Within-stage progress
// lines appear from verbosity 1 up; stage transitions always print.
func NewCLIEmitter(verbosity int) *CLIEmitter {
	return &CLIEmitter{verbosity: verbosity}
}

func (e *CLIEmitter) EmitStage(stage Stage, message string) {
	pterm.Printf("🔄 %s: %s\n", pterm.LightCyan(string(stage)), message)
}

func (e *CLIEmitter) EmitProgress(stage Stage, message string, current, total int) {
	if !logger.ShouldOutput(e.verbosity, logger.OutputProgress) {
		return
	}
	if total > 0 {
		pterm.Printf("   %s (%d/%d)\n", message, current, total)
		return
	}
	pterm.Printf("   %s\n", message)
}

func (e *CLIEmitter) EmitStageComplete(stage Stage, message string) {
	pterm.Printf("✅ %s\n", message)
}

func (e *CLIEmitter) EmitComplete(payload interface{}) {
	pterm.Success.Println("Done!")
}

func (e *CLIEmitter) EmitError(stage Stage, message string) {
	pterm.Error.Printf("Failed during %s: %s\n", stage, message)
}

// JSONEmitter writes one wire event per line, for scripting against the CLI.
type JSONEmitter struct {
	enc *json.Encoder
}

// NewJSONEmitter creates a JSON progress emitter writing to w.
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	return &JSONEmitter{enc: json.NewEncoder(w)}
}

func (e *JSONEmitter) emit(ev Event) { e.enc.Encode(ev) }

func (e *JSONEmitter) EmitStage(stage Stage, message string) {
	e.emit(Event{Type: TypeProgress, Stage: stage, Message: message})
}

func (e *JSONEmitter) EmitProgress(stage Stage, message string, current, total int) {
	e.emit(Event{Type: TypeProgress, Stage: stage, Message: message, Current: current, Total: total})
}

func (e *JSONEmitter) EmitStageComplete(stage Stage, message string) {
	e.emit(Event{Type: TypeProgress, Stage: stage, Message: message, Completed: true})
}

func (e *JSONEmitter) EmitComplete(payload interface{}) {
	e.emit(Event{Type: TypeComplete, Result: payload})
}

func (e *JSONEmitter) EmitError(stage Stage, message string) {
	e.emit(Event{Type: TypeError, Stage: stage, Message: message})
}
