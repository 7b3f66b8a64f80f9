package singer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
)

// maxLineBytes bounds a single Singer line. Wide records with embedded
// custom_fields blobs can run large, so this is generous.
const maxLineBytes = 20 * 1024 * 1024

// Reader iterates over Singer messages from a line-oriented stream.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader over r, conventionally stdin.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Reader{scanner: scanner}
}

// Next returns the next message in the stream, skipping blank lines.
// Returns io.EOF when the stream is exhausted.
func (r *Reader) Next(ctx context.Context) (*Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, fmt.Errorf("failed to read stream: %w", err)
			}
			return nil, io.EOF
		}

		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		msg, err := Decode(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		return msg, nil
	}
}

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int { return r.line }
