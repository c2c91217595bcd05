package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

// chunkReader returns its chunks one Read at a time.
type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.chunks) > 0 && len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func readAll(t *testing.T, r io.Reader) []string {
	t.Helper()

	dec := NewDecoder(r)
	var lines []string
	for {
		line, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return lines
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		lines = append(lines, line)
	}
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

const sampleStream = `{"type":"start","game_id":"g1"}
{"type":"chunk","content":"勇者は森へ"}

{"type":"chunk","content":"入った。🌲"}
   
{"type":"complete","next_prompts":["看看四周","向北走"]}
`

func TestDecoder_SplitInvariance(t *testing.T) {
	want := readAll(t, strings.NewReader(sampleStream))
	if len(want) != 4 {
		t.Fatalf("baseline lines = %d, want 4: %q", len(want), want)
	}

	data := []byte(sampleStream)
	for i := 0; i <= len(data); i++ {
		for j := i; j <= len(data); j += 7 {
			r := &chunkReader{chunks: [][]byte{
				append([]byte(nil), data[:i]...),
				append([]byte(nil), data[i:j]...),
				append([]byte(nil), data[j:]...),
			}}
			got := readAll(t, r)
			if !equalLines(got, want) {
				t.Fatalf("split at %d/%d: got %q, want %q", i, j, got, want)
			}
		}
	}
}

func TestDecoder_OneByteReads(t *testing.T) {
	want := readAll(t, strings.NewReader(sampleStream))
	got := readAll(t, iotest.OneByteReader(strings.NewReader(sampleStream)))

	if !equalLines(got, want) {
		t.Errorf("one-byte reads: got %q, want %q", got, want)
	}
}

func TestDecoder_FinalRecordWithoutNewline(t *testing.T) {
	got := readAll(t, strings.NewReader("{\"type\":\"chunk\",\"content\":\"a\"}\n{\"type\":\"complete\"}"))

	want := []string{`{"type":"chunk","content":"a"}`, `{"type":"complete"}`}
	if !equalLines(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDecoder_CarriageReturns(t *testing.T) {
	got := readAll(t, strings.NewReader("{\"type\":\"start\",\"game_id\":\"g\"}\r\n\r\n"))

	want := []string{`{"type":"start","game_id":"g"}`}
	if !equalLines(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDecoder_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	dec := NewDecoder(io.MultiReader(strings.NewReader("{\"type\":\"chunk\",\"content\":\"a\"}\n"), iotest.ErrReader(boom)))

	line, err := dec.Next()
	if err != nil {
		t.Fatalf("first Next() error = %v", err)
	}
	if line != `{"type":"chunk","content":"a"}` {
		t.Errorf("first line = %q", line)
	}

	if _, err := dec.Next(); !errors.Is(err, boom) {
		t.Errorf("second Next() error = %v, want %v", err, boom)
	}
}

func TestDecoder_LongRecord(t *testing.T) {
	long := `{"type":"chunk","content":"` + strings.Repeat("長", 800*1024) + `"}`
	got := readAll(t, iotest.HalfReader(strings.NewReader(long+"\n"+`{"type":"complete"}`+"\n")))

	if len(got) != 2 || got[0] != long || got[1] != `{"type":"complete"}` {
		t.Fatalf("got %d lines, want the long record and complete", len(got))
	}
}
