package pump

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrCommandRejected is returned when the pump answers with an error status
var ErrCommandRejected = errors.New("pump rejected command")

const (
	stx             = 0x02
	etx             = 0x03
	maxResponseSize = 256
)

// readResponse collects one response line. It stops at a newline, at the
// ETX framing byte, when a read returns no data (read timeout) or on EOF.
func readResponse(r io.Reader) ([]byte, error) {
	var out []byte
	buf := make([]byte, 64)
	for len(out) < maxResponseSize {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if bytes.IndexByte(buf[:n], '\n') >= 0 || bytes.IndexByte(buf[:n], etx) >= 0 {
			break
		}
		if err != nil && err != io.EOF {
			return out, err
		}
		if err == io.EOF || n == 0 {
			break
		}
	}
	return out, nil
}

// decodeResponse maps each byte to the code point of the same value, so
// arbitrary bytes decode without error, then strips framing and whitespace.
func decodeResponse(raw []byte) string {
	runes := make([]rune, 0, len(raw))
	for _, b := range raw {
		if b == stx || b == etx {
			continue
		}
		runes = append(runes, rune(b))
	}
	return strings.TrimSpace(string(runes))
}

// checkResponse flags firmware error replies such as "00S?OOR" or "?NA".
// The alarm marker only counts right after the address digits and the
// optional status letter; a '?' later in the payload is data.
func checkResponse(command, resp string) error {
	status := strings.TrimLeft(resp, "0123456789")
	if len(status) > 0 && status[0] >= 'A' && status[0] <= 'Z' {
		status = status[1:]
	}
	if strings.HasPrefix(status, "?") {
		return fmt.Errorf("%w: %s -> %q", ErrCommandRejected, command, resp)
	}
	return nil
}
