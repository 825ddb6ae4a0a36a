package client

import (
	"bytes"
	"io"
	"net/url"
	"strconv"
	"strings"

	weberrors "github.com/webstress/webload/pkg/errors"
	"github.com/webstress/webload/pkg/response"
)

// initialReadSize is the size of the first read issued against a
// connection and of every refill after it.
const initialReadSize = 4096

var (
	crlfDelimiter = []byte("\r\n\r\n")
	lfDelimiter   = []byte("\n\n")
)

// readResponse reads one complete HTTP response from the connection.
// onHeaders, when non-nil, fires once the final header block has been
// parsed, before any body data is consumed.
//
// Body framing follows a strict priority: Content-Length, then chunked
// transfer encoding, then Connection: close. A response that matches none
// of the three is rejected rather than guessed at.
func readResponse(requestURL *url.URL, conn io.Reader, onHeaders func()) (*response.Response, error) {
	data := make([]byte, 0, initialReadSize)
	chunk := make([]byte, initialReadSize)

	n, err := conn.Read(chunk)
	if n <= 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, weberrors.NewIOError("reading the initial response data", err)
	}
	data = append(data, chunk[:n]...)

	for {
		headerEnd, delimLen := findHeaderDelimiter(data)
		for headerEnd < 0 {
			n, err := conn.Read(chunk)
			if n <= 0 {
				if err == nil {
					err = io.EOF
				}
				return nil, weberrors.NewIOError("reading the response header data", err)
			}
			// Rescan only the new region, backed up far enough to catch a
			// delimiter split across the read boundary.
			scanFrom := len(data) - 3
			if scanFrom < 0 {
				scanFrom = 0
			}
			data = append(data, chunk[:n]...)
			headerEnd, delimLen = findHeaderDelimiterFrom(data, scanFrom)
		}

		resp, err := parseHeaderBlock(requestURL, data[:headerEnd])
		if err != nil {
			return nil, err
		}
		leftover := data[headerEnd+delimLen:]

		// A 100 Continue is discarded and the real response parsed from
		// whatever follows it.
		if resp.StatusCode == 100 {
			data = append(data[:0:0], leftover...)
			if len(data) == 0 {
				n, err := conn.Read(chunk)
				if n <= 0 {
					if err == nil {
						err = io.EOF
					}
					return nil, weberrors.NewIOError("reading the response after a 100 Continue", err)
				}
				data = append(data, chunk[:n]...)
			}
			continue
		}

		if onHeaders != nil {
			onHeaders()
		}

		body, err := readBody(resp, &netBuf{conn: conn, data: leftover})
		if err != nil {
			return nil, err
		}
		if err := resp.SetBody(body); err != nil {
			return nil, err
		}
		return resp, nil
	}
}

// findHeaderDelimiter locates the end of the header block. CRLFCRLF is
// preferred; a bare LFLF from a non-compliant server is accepted as a
// fallback. It returns the delimiter offset and length, or (-1, 0).
func findHeaderDelimiter(data []byte) (int, int) {
	return findHeaderDelimiterFrom(data, 0)
}

func findHeaderDelimiterFrom(data []byte, from int) (int, int) {
	if idx := bytes.Index(data[from:], crlfDelimiter); idx >= 0 {
		return from + idx, len(crlfDelimiter)
	}
	if idx := bytes.Index(data[from:], lfDelimiter); idx >= 0 {
		return from + idx, len(lfDelimiter)
	}
	return -1, 0
}

// parseHeaderBlock parses the status line and header lines. A line with no
// colon that starts with "http/" is taken as the status line of a new
// response; some servers send a 100 Continue with no blank line after it,
// which makes the real status line show up in the middle of the headers.
func parseHeaderBlock(requestURL *url.URL, block []byte) (*response.Response, error) {
	lines := strings.Split(string(block), "\n")

	var resp *response.Response
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}

		// The first non-empty line must be a status line; stray blank lines
		// ahead of it are tolerated, a header line is not.
		if resp == nil {
			parsed, err := parseStatusLine(requestURL, line)
			if err != nil {
				return nil, err
			}
			resp = parsed
			continue
		}

		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			if strings.HasPrefix(strings.ToLower(line), "http/") {
				parsed, err := parseStatusLine(requestURL, line)
				if err != nil {
					return nil, err
				}
				resp = parsed
				continue
			}
			return nil, weberrors.NewParseError("unable to parse response header line "+strconv.Quote(line), nil)
		}

		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		resp.AddHeader(name, value)
	}

	if resp == nil {
		return nil, weberrors.NewParseError("response contained no status line", nil)
	}
	return resp, nil
}

// parseStatusLine parses "<protocol> <code> <message>". Both spaces are
// required and the code must be numeric.
func parseStatusLine(requestURL *url.URL, line string) (*response.Response, error) {
	sp1 := strings.IndexByte(line, ' ')
	if sp1 < 0 {
		return nil, weberrors.NewParseError("unable to parse response status line "+strconv.Quote(line), nil)
	}
	rest := line[sp1+1:]
	sp2 := strings.IndexByte(rest, ' ')
	if sp2 < 0 {
		return nil, weberrors.NewParseError("unable to parse response status line "+strconv.Quote(line), nil)
	}

	code, err := strconv.Atoi(rest[:sp2])
	if err != nil {
		return nil, weberrors.NewParseError("unable to parse response status code "+strconv.Quote(rest[:sp2]), err)
	}

	return response.New(requestURL, code, line[:sp1], rest[sp2+1:]), nil
}

// readBody consumes the response body using the framing the headers call
// for. Bytes already buffered past the header delimiter are consumed
// exactly once, before any further reads from the connection.
func readBody(resp *response.Response, buf *netBuf) ([]byte, error) {
	if resp.ContentLength >= 0 {
		if resp.ContentLength == 0 {
			return nil, nil
		}
		return buf.readExact(resp.ContentLength)
	}

	if te := resp.Header("transfer-encoding"); te != "" {
		if !strings.EqualFold(strings.TrimSpace(te), "chunked") {
			return nil, weberrors.NewParseError("unsupported transfer encoding "+strconv.Quote(te), nil)
		}
		return readChunkedBody(buf)
	}

	// An absent Connection header also frames by connection close; only a
	// present value other than "close" leaves the body length ambiguous.
	connHdr := strings.TrimSpace(resp.Header("connection"))
	if connHdr == "" || strings.EqualFold(connHdr, "close") {
		return buf.readToEOF(), nil
	}

	return nil, weberrors.NewParseError("unable to determine how the response body is framed", nil)
}

// readChunkedBody decodes a chunked transfer encoding stream. Size lines
// tolerate stray CR and LF bytes before the first hex digit and stray
// spaces before the terminator, and may end in CRLF or a bare LF. A
// zero-size chunk ends the body.
func readChunkedBody(buf *netBuf) ([]byte, error) {
	var body []byte
	for {
		size, err := readChunkSize(buf)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return body, nil
		}
		chunk, err := buf.readExact(size)
		if err != nil {
			return nil, err
		}
		body = append(body, chunk...)
	}
}

func readChunkSize(buf *netBuf) (int, error) {
	var line []byte
	for {
		b, err := buf.nextByte()
		if err != nil {
			return 0, weberrors.NewIOError("reading a chunk size line", err)
		}
		if b == '\r' || b == '\n' {
			if len(line) == 0 {
				// Stray terminator left over from the previous chunk.
				continue
			}
			if b == '\r' {
				// The LF should follow; a bare CR line is close enough.
				if next, err := buf.nextByte(); err == nil && next != '\n' {
					buf.unread(next)
				}
			}
			break
		}
		line = append(line, b)
	}

	sizeStr := strings.TrimSpace(string(line))
	size, err := strconv.ParseInt(sizeStr, 16, 32)
	if err != nil || size < 0 {
		return 0, weberrors.NewParseError("unable to parse chunk size "+strconv.Quote(sizeStr), err)
	}
	return int(size), nil
}

// netBuf layers buffered leftover bytes over a connection. All body reads
// go through it so buffered data is never re-requested and never dropped.
type netBuf struct {
	conn io.Reader
	data []byte
	pos  int
}

func (b *netBuf) buffered() int {
	return len(b.data) - b.pos
}

// nextByte returns the next body byte, refilling from the connection when
// the buffer is exhausted.
func (b *netBuf) nextByte() (byte, error) {
	if b.pos >= len(b.data) {
		chunk := make([]byte, initialReadSize)
		n, err := b.conn.Read(chunk)
		if n <= 0 {
			if err == nil {
				err = io.EOF
			}
			return 0, err
		}
		b.data = chunk[:n]
		b.pos = 0
	}
	c := b.data[b.pos]
	b.pos++
	return c, nil
}

// unread pushes one byte back so the next nextByte returns it again.
func (b *netBuf) unread(c byte) {
	if b.pos > 0 && b.data[b.pos-1] == c {
		b.pos--
		return
	}
	b.data = append([]byte{c}, b.data[b.pos:]...)
	b.pos = 0
}

// readExact returns exactly n bytes, draining the buffer before touching
// the connection. Running out of data early is an I/O error.
func (b *netBuf) readExact(n int) ([]byte, error) {
	out := make([]byte, 0, n)

	if avail := b.buffered(); avail > 0 {
		take := avail
		if take > n {
			take = n
		}
		out = append(out, b.data[b.pos:b.pos+take]...)
		b.pos += take
	}

	for len(out) < n {
		chunk := make([]byte, n-len(out))
		read, err := b.conn.Read(chunk)
		if read > 0 {
			out = append(out, chunk[:read]...)
			continue
		}
		if err == nil {
			err = io.EOF
		}
		return nil, weberrors.NewIOError("reading the response body", err)
	}
	return out, nil
}

// readToEOF drains the buffer and then the connection until it ends. Read
// errors are treated the same as a clean EOF: servers that frame by
// closing the connection often reset it instead of shutting down politely,
// and the data received up to that point is the body.
func (b *netBuf) readToEOF() []byte {
	out := append([]byte(nil), b.data[b.pos:]...)
	b.pos = len(b.data)

	chunk := make([]byte, initialReadSize)
	for {
		n, err := b.conn.Read(chunk)
		if n > 0 {
			out = append(out, chunk[:n]...)
		}
		if err != nil || n <= 0 {
			return out
		}
	}
}
