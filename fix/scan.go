package fix

import (
	"bytes"
)

// ScanMessages is a bufio.SplitFunc that frames a byte stream into single
// FIX messages. A message ends after its "10=nnn" trailer (and the delimiter
// that follows it, when present) or at a newline, whichever comes first, so
// raw SOH wire captures and one-message-per-line logs both work. Lines that
// are not FIX at all are still returned; the parser ignores them.
func ScanMessages(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) && isSeparator(data[start]) {
		start++
	}
	rest := data[start:]
	if len(rest) == 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	nl := bytes.IndexByte(rest, '\n')
	end, complete := trailerEnd(rest, nl, atEOF)
	switch {
	case end >= 0:
		return start + end, rest[:end], nil
	case !complete:
		// trailer split across reads
		return start, nil, nil
	case nl >= 0:
		return start + nl + 1, bytes.TrimRight(rest[:nl], "\r"), nil
	case atEOF:
		return len(data), rest, nil
	}
	return start, nil, nil
}

// trailerEnd finds the end of the first checksum trailer that precedes the
// newline at nl (-1 when there is none). complete is false when a trailer
// may still be arriving.
func trailerEnd(b []byte, nl int, atEOF bool) (end int, complete bool) {
	limit := len(b)
	if nl >= 0 {
		limit = nl
	}
	from := 0
	for from < limit {
		i := indexTrailer(b[from:limit])
		if i < 0 {
			return -1, true
		}
		i += from
		digits := i + 4 // past delimiter and "10="
		if digits+3 > limit {
			if nl < 0 && !atEOF {
				return -1, false
			}
			return -1, true
		}
		if isDigit(b[digits]) && isDigit(b[digits+1]) && isDigit(b[digits+2]) {
			end := digits + 3
			if end < len(b) && isDelimiter(b[end]) {
				end++
			} else if end == len(b) && !atEOF {
				return -1, false
			}
			return end, true
		}
		from = i + 1
	}
	return -1, true
}

func indexTrailer(b []byte) int {
	for i := 0; i+3 < len(b); i++ {
		if isDelimiter(b[i]) && b[i+1] == '1' && b[i+2] == '0' && b[i+3] == '=' {
			return i
		}
	}
	return -1
}

func isDelimiter(c byte) bool { return c == SOH || c == DefaultAltDelimiter }
func isDigit(c byte) bool     { return c >= '0' && c <= '9' }

func isSeparator(c byte) bool {
	return c == '\n' || c == '\r' || c == ' ' || c == '\t' || isDelimiter(c)
}
