package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const initialBufferSize = 64 * 1024

// Decoder yields newline-delimited text records from a byte source.
//
// Bytes are decoded as UTF-8 through a streaming transformer, so a multi-byte
// character split across two reads is carried forward instead of corrupted.
// Blank and whitespace-only lines are discarded. A final line without a
// trailing newline is still returned once the source reaches end of stream.
// Records have no length limit.
type Decoder struct {
	reader *bufio.Reader
	line   int
	done   bool
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		reader: bufio.NewReaderSize(transform.NewReader(r, unicode.UTF8.NewDecoder()), initialBufferSize),
	}
}

// Next returns the next non-blank record. It returns io.EOF once the source is
// exhausted; any other error means the underlying read failed.
func (d *Decoder) Next() (string, error) {
	for !d.done {
		text, err := d.reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				d.done = true
				return "", fmt.Errorf("stream read error: %w", err)
			}
			d.done = true
			if text == "" {
				break
			}
		}

		d.line++
		text = strings.TrimRight(text, "\r\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		return text, nil
	}
	return "", io.EOF
}

// Line reports the 1-based line number of the record most recently returned by Next.
func (d *Decoder) Line() int {
	return d.line
}
