package stream

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Record
		wantErr bool
	}{
		{
			name: "start",
			line: `{"type":"start","game_id":"g1"}`,
			want: &StartRecord{GameID: "g1"},
		},
		{
			name: "chunk",
			line: `{"type":"chunk","content":"Hello "}`,
			want: &ChunkRecord{Content: "Hello "},
		},
		{
			name: "progress",
			line: `{"type":"progress","step":"character_created"}`,
			want: &ProgressRecord{Step: "character_created"},
		},
		{
			name: "complete",
			line: `{"type":"complete","next_prompts":["look","go north"],"success":true}`,
			want: &CompleteRecord{NextPrompts: []string{"look", "go north"}},
		},
		{
			name: "error",
			line: `{"type":"error","message":"model unavailable","success":false}`,
			want: &ErrorRecord{Message: "model unavailable"},
		},
		{
			name:    "not json",
			line:    `{"type":"chunk","content":`,
			wantErr: true,
		},
		{
			name:    "missing type",
			line:    `{"content":"x"}`,
			wantErr: true,
		},
		{
			name:    "unknown type",
			line:    `{"type":"heartbeat"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecord(tt.line)
			if tt.wantErr {
				var decodeErr *DecodeError
				if !errors.As(err, &decodeErr) {
					t.Fatalf("ParseRecord() error = %v, want *DecodeError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRecord() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseRecord() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestMarshalRecord_RoundTripsThroughParse(t *testing.T) {
	recs := []Record{
		&StartRecord{GameID: "g1"},
		&ProgressRecord{Step: "story_framework_added"},
		&ChunkRecord{Content: "line one\nline two"},
		&CompleteRecord{NextPrompts: []string{"a", "b"}},
		&ErrorRecord{Message: "boom"},
	}

	for _, rec := range recs {
		data, err := MarshalRecord(rec)
		if err != nil {
			t.Fatalf("MarshalRecord(%T) error = %v", rec, err)
		}
		if data[len(data)-1] != '\n' {
			t.Errorf("MarshalRecord(%T) missing trailing newline", rec)
		}

		got, err := ParseRecord(string(data[:len(data)-1]))
		if err != nil {
			t.Fatalf("ParseRecord() error = %v", err)
		}
		if !reflect.DeepEqual(got, rec) {
			t.Errorf("round trip = %#v, want %#v", got, rec)
		}
	}
}

func TestRecordType_Terminal(t *testing.T) {
	for _, typ := range []RecordType{RecordStart, RecordChunk, RecordProgress} {
		if typ.Terminal() {
			t.Errorf("%s.Terminal() = true", typ)
		}
	}
	for _, typ := range []RecordType{RecordComplete, RecordError} {
		if !typ.Terminal() {
			t.Errorf("%s.Terminal() = false", typ)
		}
	}
}
