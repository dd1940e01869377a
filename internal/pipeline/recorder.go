package pipeline

import (
	"bytes"
	"net/http"
	"strconv"
)

// Recorder buffers a handler's response so later stages can inspect and
// rewrite it before anything reaches the client.
type Recorder struct {
	header http.Header
	status int
	wrote  bool
	body   bytes.Buffer
}

func newRecorder() *Recorder {
	return &Recorder{header: make(http.Header), status: http.StatusOK}
}

// Header implements http.ResponseWriter.
func (rw *Recorder) Header() http.Header {
	return rw.header
}

// WriteHeader implements http.ResponseWriter. Only the first call counts.
func (rw *Recorder) WriteHeader(code int) {
	if rw.wrote {
		return
	}
	rw.status = code
	rw.wrote = true
}

// Write implements http.ResponseWriter.
func (rw *Recorder) Write(b []byte) (int, error) {
	if !rw.wrote {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.body.Write(b)
}

// Status returns the recorded status code.
func (rw *Recorder) Status() int {
	return rw.status
}

// Body returns the buffered body. The slice aliases the buffer.
func (rw *Recorder) Body() []byte {
	return rw.body.Bytes()
}

// SetBody replaces the buffered body.
func (rw *Recorder) SetBody(b []byte) {
	rw.body.Reset()
	rw.body.Write(b)
}

// flush sends the buffered response to w. A Content-Length set by the
// handler is rewritten to match the final body.
func (rw *Recorder) flush(w http.ResponseWriter) {
	dst := w.Header()
	for k, v := range rw.header {
		dst[k] = v
	}
	if dst.Get("Content-Length") != "" {
		dst.Set("Content-Length", strconv.Itoa(rw.body.Len()))
	}
	w.WriteHeader(rw.status)
	_, _ = w.Write(rw.body.Bytes())
}
