package cookie

import "net/http"

// TrackingWriter records whether headers have been sent so cookie writes
// after that point can be refused instead of silently lost.
type TrackingWriter struct {
	http.ResponseWriter
	committed bool
}

// NewTrackingWriter wraps w. Wrapping a TrackingWriter returns it unchanged.
func NewTrackingWriter(w http.ResponseWriter) *TrackingWriter {
	if tw, ok := w.(*TrackingWriter); ok {
		return tw
	}
	return &TrackingWriter{ResponseWriter: w}
}

func (t *TrackingWriter) WriteHeader(code int) {
	t.committed = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *TrackingWriter) Write(b []byte) (int, error) {
	t.committed = true
	return t.ResponseWriter.Write(b)
}

func (t *TrackingWriter) Flush() {
	t.committed = true
	if f, ok := t.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Committed reports whether the status line has been written.
func (t *TrackingWriter) Committed() bool { return t.committed }

// Unwrap lets http.ResponseController reach the underlying writer.
func (t *TrackingWriter) Unwrap() http.ResponseWriter { return t.ResponseWriter }

type committer interface {
	Committed() bool
}

func isCommitted(w http.ResponseWriter) bool {
	c, ok := w.(committer)
	return ok && c.Committed()
}
