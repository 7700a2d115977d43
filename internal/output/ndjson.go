package output

import (
	"encoding/json"
	"io"
	"time"
)

type record struct {
	// T is the unix time in seconds
	T float64 `json:"t"`
	// V is the latency in seconds, -1 on failure
	V float64 `json:"v"`
}

// NDJSONSink writes one JSON object per line.
type NDJSONSink struct {
	out io.Writer
	now func() time.Time
}

func NewNDJSON(out io.Writer) *NDJSONSink {
	return &NDJSONSink{out: out, now: time.Now}
}

func (n *NDJSONSink) Render(o Outcome) error {
	rec := record{
		T: float64(n.now().UnixNano()) / float64(time.Second),
		V: -1,
	}
	if o.Err == nil {
		rec.V = o.Latency.Seconds()
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return &RenderError{Err: err}
	}
	if _, err := n.out.Write(append(line, '\n')); err != nil {
		return &RenderError{Err: err}
	}
	return nil
}

// Warn is a no-op so the stream stays machine readable.
func (n *NDJSONSink) Warn(string) {}

func (n *NDJSONSink) Close() error {
	return nil
}
