package stream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RecordType is the discriminator carried in every record's "type" field.
type RecordType string

const (
	RecordStart    RecordType = "start"
	RecordProgress RecordType = "progress"
	RecordChunk    RecordType = "chunk"
	RecordComplete RecordType = "complete"
	RecordError    RecordType = "error"
)

// Terminal reports whether a record of this type ends the stream.
func (t RecordType) Terminal() bool {
	return t == RecordComplete || t == RecordError
}

// Record is one decoded protocol event. The set of implementations is closed:
// *StartRecord, *ProgressRecord, *ChunkRecord, *CompleteRecord and *ErrorRecord.
type Record interface {
	Type() RecordType
	isRecord()
}

// StartRecord announces the game the stream belongs to.
type StartRecord struct {
	GameID string
}

// ProgressRecord reports a named server-side step.
type ProgressRecord struct {
	Step string
}

// ChunkRecord carries a fragment of narrative text.
type ChunkRecord struct {
	Content string
}

// CompleteRecord terminates a successful stream with the suggested next actions.
type CompleteRecord struct {
	NextPrompts []string
}

// ErrorRecord terminates a failed stream.
type ErrorRecord struct {
	Message string
}

func (*StartRecord) Type() RecordType    { return RecordStart }
func (*ProgressRecord) Type() RecordType { return RecordProgress }
func (*ChunkRecord) Type() RecordType    { return RecordChunk }
func (*CompleteRecord) Type() RecordType { return RecordComplete }
func (*ErrorRecord) Type() RecordType    { return RecordError }

func (*StartRecord) isRecord()    {}
func (*ProgressRecord) isRecord() {}
func (*ChunkRecord) isRecord()    {}
func (*CompleteRecord) isRecord() {}
func (*ErrorRecord) isRecord()    {}

// wireRecord is the JSON shape of a single line.
type wireRecord struct {
	Type        RecordType `json:"type"`
	GameID      string     `json:"game_id,omitempty"`
	Content     string     `json:"content,omitempty"`
	Step        string     `json:"step,omitempty"`
	NextPrompts []string   `json:"next_prompts,omitempty"`
	Success     *bool      `json:"success,omitempty"`
	Message     string     `json:"message,omitempty"`
}

var (
	errMissingType = errors.New("record has no type")
	errUnknownType = errors.New("unknown record type")
)

// ParseRecord decodes one line into a Record. Any failure is reported as a
// *DecodeError; callers are expected to skip the line and continue.
func ParseRecord(line string) (Record, error) {
	var w wireRecord
	if err := json.Unmarshal([]byte(line), &w); err != nil {
		return nil, &DecodeError{Line: line, Err: err}
	}

	switch w.Type {
	case RecordStart:
		return &StartRecord{GameID: w.GameID}, nil
	case RecordProgress:
		return &ProgressRecord{Step: w.Step}, nil
	case RecordChunk:
		return &ChunkRecord{Content: w.Content}, nil
	case RecordComplete:
		return &CompleteRecord{NextPrompts: w.NextPrompts}, nil
	case RecordError:
		return &ErrorRecord{Message: w.Message}, nil
	case "":
		return nil, &DecodeError{Line: line, Err: errMissingType}
	default:
		return nil, &DecodeError{Line: line, Err: fmt.Errorf("%w %q", errUnknownType, w.Type)}
	}
}

// MarshalRecord encodes rec as a single newline-terminated line.
func MarshalRecord(rec Record) ([]byte, error) {
	w := wireRecord{Type: rec.Type()}

	switch r := rec.(type) {
	case *StartRecord:
		w.GameID = r.GameID
	case *ProgressRecord:
		w.Step = r.Step
	case *ChunkRecord:
		w.Content = r.Content
	case *CompleteRecord:
		ok := true
		w.NextPrompts = r.NextPrompts
		w.Success = &ok
	case *ErrorRecord:
		ok := false
		w.Message = r.Message
		w.Success = &ok
	default:
		return nil, fmt.Errorf("unsupported record %T", rec)
	}

	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return append(data, '\n'), nil
}
