package stream

import (
	"errors"
	"testing"
)

func TestDispatch_RoutesByType(t *testing.T) {
	var calls []string
	h := Handlers{
		OnStart:    func(id string) { calls = append(calls, "start:"+id) },
		OnChunk:    func(c string) { calls = append(calls, "chunk:"+c) },
		OnProgress: func(s string) { calls = append(calls, "progress:"+s) },
		OnComplete: func(p []string) { calls = append(calls, "complete") },
		OnError:    func(err error) { calls = append(calls, "error:"+err.Error()) },
	}

	recs := []Record{
		&StartRecord{GameID: "g1"},
		&ProgressRecord{Step: "character_created"},
		&ChunkRecord{Content: "a"},
		&ChunkRecord{Content: "a"},
		&CompleteRecord{},
		&ErrorRecord{Message: "bad"},
	}
	for _, rec := range recs {
		if err := Dispatch(rec, h); err != nil {
			t.Fatalf("Dispatch(%T) error = %v", rec, err)
		}
	}

	want := []string{"start:g1", "progress:character_created", "chunk:a", "chunk:a", "complete", "error:bad"}
	if !equalLines(calls, want) {
		t.Errorf("calls = %q, want %q", calls, want)
	}
}

func TestDispatch_IgnoresMissingPayloadAndUnsetHandlers(t *testing.T) {
	called := false
	h := Handlers{
		OnStart:    func(string) { called = true },
		OnChunk:    func(string) { called = true },
		OnProgress: func(string) { called = true },
	}

	for _, rec := range []Record{&StartRecord{}, &ChunkRecord{}, &ProgressRecord{}} {
		if err := Dispatch(rec, h); err != nil {
			t.Fatalf("Dispatch(%T) error = %v", rec, err)
		}
	}
	if called {
		t.Error("handler called for record without payload")
	}

	if err := Dispatch(&CompleteRecord{NextPrompts: []string{"x"}}, Handlers{}); err != nil {
		t.Errorf("Dispatch() with no handlers error = %v", err)
	}
}

func TestDispatch_TerminalDefaults(t *testing.T) {
	var prompts []string
	var gotErr error
	h := Handlers{
		OnComplete: func(p []string) { prompts = p },
		OnError:    func(err error) { gotErr = err },
	}

	_ = Dispatch(&CompleteRecord{}, h)
	if prompts == nil || len(prompts) != 0 {
		t.Errorf("complete without prompts = %#v, want empty non-nil slice", prompts)
	}

	_ = Dispatch(&ErrorRecord{}, h)
	var streamErr *StreamError
	if !errors.As(gotErr, &streamErr) || streamErr.Message == "" {
		t.Errorf("error without message = %v, want *StreamError with message", gotErr)
	}
}

func TestDispatch_RecoversHandlerPanic(t *testing.T) {
	h := Handlers{
		OnChunk: func(string) { panic("consumer exploded") },
	}

	err := Dispatch(&ChunkRecord{Content: "x"}, h)

	var handlerErr *HandlerError
	if !errors.As(err, &handlerErr) {
		t.Fatalf("Dispatch() error = %v, want *HandlerError", err)
	}
	if handlerErr.Record != RecordChunk {
		t.Errorf("HandlerError.Record = %s, want chunk", handlerErr.Record)
	}
}
