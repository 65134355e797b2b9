package debug

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

const contentLength = "Content-Length"

// Request is a message sent by the client.
type Request struct {
	Seq       int             `json:"seq"`
	Type      string          `json:"type"`
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Response answers a Request.
type Response struct {
	Seq        int    `json:"seq"`
	Type       string `json:"type"`
	RequestSeq int    `json:"request_seq"`
	Command    string `json:"command"`
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Body       any    `json:"body,omitempty"`
}

// Event is a message the server sends on its own.
type Event struct {
	Seq   int    `json:"seq"`
	Type  string `json:"type"`
	Event string `json:"event"`
	Body  any    `json:"body,omitempty"`
}

// reader decodes Content-Length framed messages.
type reader struct {
	r *bufio.Reader
}

func newReader(r io.Reader) *reader {
	return &reader{r: bufio.NewReader(r)}
}

// read returns the body of the next message.
func (r *reader) read() ([]byte, error) {
	length := -1
	for {
		line, err := r.r.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" && length < 0 {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("reading header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if length < 0 {
				return nil, fmt.Errorf("missing %s header", contentLength)
			}
			break
		}
		name, val, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("invalid header line %q", line)
		}
		if strings.EqualFold(strings.TrimSpace(name), contentLength) {
			n, err := strconv.Atoi(strings.TrimSpace(val))
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid %s %q", contentLength, strings.TrimSpace(val))
			}
			length = n
		}
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}

// writer encodes Content-Length framed messages and numbers them.
type writer struct {
	mutex sync.Mutex
	w     io.Writer
	seq   int
}

// send assigns the next sequence number through setSeq and writes msg.
func (w *writer) send(msg any, setSeq func(int)) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.seq++
	setSeq(w.seq)
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	frame := make([]byte, 0, len(body)+32)
	frame = fmt.Appendf(frame, "%s: %d\r\n\r\n", contentLength, len(body))
	frame = append(frame, body...)
	_, err = w.w.Write(frame)
	return err
}

func (w *writer) respond(req *Request, body any, err error) error {
	resp := &Response{
		Type:       "response",
		RequestSeq: req.Seq,
		Command:    req.Command,
		Success:    err == nil,
		Body:       body,
	}
	if err != nil {
		resp.Message = err.Error()
	}
	return w.send(resp, func(seq int) { resp.Seq = seq })
}

func (w *writer) event(name string, body any) error {
	ev := &Event{Type: "event", Event: name, Body: body}
	return w.send(ev, func(seq int) { ev.Seq = seq })
}
