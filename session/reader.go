package session

import (
	"errors"
	"fmt"
	"io"
)

const endLine = '\n'

// ReadLine fills buf from r until the last byte received is a line
// terminator, the peer closes, or buf is full. Whatever the last stored byte
// is, it is then overwritten with NUL, so a line that fills buf without a
// terminator loses its final byte.
//
// Parameters:
//   - r: The connection to read from
//   - buf: The line buffer; its length is the capacity
//
// Returns:
//   - The number of bytes stored; 0 when the peer closed before sending anything
//   - A non-nil error when a read fails for any reason other than EOF
func ReadLine(r io.Reader, buf []byte) (int, error) {
	pos := 0
	for pos < len(buf) {
		n, err := r.Read(buf[pos:])
		pos += n
		if n > 0 && buf[pos-1] == endLine {
			break
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return 0, fmt.Errorf("receive failed: %w", err)
		}
	}

	if pos > 0 {
		buf[pos-1] = 0
	}

	return pos, nil
}
