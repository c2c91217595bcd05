package narratium

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/tjfontaine/narratium-client/internal/stream"
	"github.com/tjfontaine/narratium-client/internal/testutil"
)

func TestClient_Session(t *testing.T) {
	recorder, cleanup := testutil.NewVCRRecorder(t, "narratium_session")
	defer cleanup()

	c := NewClient(testutil.BackendURL(), WithHTTPClient(testutil.VCRHTTPClient(recorder)))
	ctx := context.Background()

	created, err := c.Initialize(ctx, &InitializeRequest{Model: "qwen2.5-14b-instruct-1m", Language: "zh", Type: "openai"})
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if created.GameID != "g-7f3a" {
		t.Fatalf("Initialize() game id = %q, want g-7f3a", created.GameID)
	}

	var chunks []string
	var options []string
	res, err := c.StreamSetup(ctx, &SetupRequest{
		GameID:         created.GameID,
		StoryFramework: "An open-world fantasy adventure.",
		CharacterInfo:  "Character name: Lin\nCharacter description: A wandering scholar",
	}, stream.Handlers{
		OnChunk:    func(s string) { chunks = append(chunks, s) },
		OnComplete: func(next []string) { options = next },
	})
	if err != nil {
		t.Fatalf("StreamSetup() error = %v", err)
	}
	if got := strings.Join(chunks, ""); got != "雨后的山路泛着微光。" {
		t.Errorf("StreamSetup() chunks = %q", got)
	}
	if res.Narrative != "雨后的山路泛着微光。" {
		t.Errorf("Result.Narrative = %q", res.Narrative)
	}
	if !reflect.DeepEqual(options, []string{"走进山洞", "沿溪而下"}) {
		t.Errorf("OnComplete() options = %v", options)
	}
	if res.GameID != "g-7f3a" || len(res.Progress) != 1 {
		t.Errorf("Result = %+v", res)
	}

	act, err := c.Action(ctx, &ActionRequest{GameID: created.GameID, UserInput: "走进山洞"})
	if err != nil {
		t.Fatalf("Action() error = %v", err)
	}
	if act.Narrative != "洞里很暗。" || len(act.NextPrompts) != 2 {
		t.Errorf("Action() = %+v", act)
	}

	status, err := c.Status(ctx, created.GameID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Narrative != act.Narrative {
		t.Errorf("Status() narrative = %q, want %q", status.Narrative, act.Narrative)
	}

	del, err := c.DeleteGame(ctx, created.GameID)
	if err != nil {
		t.Fatalf("DeleteGame() error = %v", err)
	}
	if !strings.Contains(del.Message, "deleted") {
		t.Errorf("DeleteGame() message = %q", del.Message)
	}
}

func TestClient_Errors(t *testing.T) {
	recorder, cleanup := testutil.NewVCRRecorder(t, "narratium_errors")
	defer cleanup()

	c := NewClient(testutil.BackendURL(), WithHTTPClient(testutil.VCRHTTPClient(recorder)))
	ctx := context.Background()

	t.Run("unknown game", func(t *testing.T) {
		_, err := c.Action(ctx, &ActionRequest{GameID: "missing", UserInput: "look"})
		var te *TransportError
		if !errors.As(err, &te) {
			t.Fatalf("Action() error = %v, want *TransportError", err)
		}
		if te.StatusCode != http.StatusNotFound || te.Detail != "Game not found" {
			t.Errorf("TransportError = %+v", te)
		}
	})

	t.Run("success false", func(t *testing.T) {
		_, err := c.Setup(ctx, &SetupRequest{GameID: "g-7f3a"})
		var ae *ApplicationError
		if !errors.As(err, &ae) {
			t.Fatalf("Setup() error = %v, want *ApplicationError", err)
		}
		if ae.Message != "Failed to generate story" {
			t.Errorf("ApplicationError.Message = %q", ae.Message)
		}
	})

	t.Run("stream server error", func(t *testing.T) {
		var gotErr error
		_, err := c.StreamAction(ctx, &ActionRequest{GameID: "g-7f3a", UserInput: "look"}, stream.Handlers{
			OnError: func(err error) { gotErr = err },
		})
		if err == nil || err != gotErr {
			t.Fatalf("StreamAction() error = %v, OnError = %v", err, gotErr)
		}
		var te *TransportError
		if !errors.As(err, &te) || te.StatusCode != http.StatusInternalServerError {
			t.Errorf("StreamAction() error = %v, want 500 *TransportError", err)
		}
	})
}

func TestClient_Headers(t *testing.T) {
	var got http.Header
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"game_id":"g-1","success":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/",
		WithBearerToken(func() string { return "dev-token-123" }),
		WithUserAgent("narratium-test"),
	)

	if _, err := c.Initialize(context.Background(), &InitializeRequest{Language: "en", Type: "openai"}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if got.Get("Authorization") != "Bearer dev-token-123" {
		t.Errorf("Authorization = %q", got.Get("Authorization"))
	}
	if got.Get("User-Agent") != "narratium-test" {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
	if got.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if _, ok := body["model"]; ok {
		t.Errorf("empty model should be omitted, body = %v", body)
	}
	if body["language"] != "en" {
		t.Errorf("language = %v", body["language"])
	}
}

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name  string
		token func() string
		want  string
	}{
		{"token", func() string { return "abc" }, "Bearer abc"},
		{"empty", func() string { return "" }, ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			BearerAuth(tt.token)(h)
			if got := h.Get("Authorization"); got != tt.want {
				t.Errorf("Authorization = %q, want %q", got, tt.want)
			}
		})
	}
}
