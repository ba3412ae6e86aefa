package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Span times one operation in-process. There is no tracing backend; spans
// exist so request logs can carry trace and parent IDs, and so slow
// handlers show up with a duration attached.
type Span struct {
	TraceID   string
	SpanID    string
	ParentID  string
	Operation string
	Started   time.Time
	Elapsed   time.Duration
	Tags      map[string]string
	Err       error
}

type spanKey struct{}

// StartSpan opens a span under the one already in ctx, if any. The
// returned context carries the new span for children to find.
func StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	span := &Span{
		SpanID:    newID(),
		Operation: operation,
		Started:   time.Now(),
		Tags:      make(map[string]string),
	}

	if parent := SpanFrom(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	} else {
		span.TraceID = newID()
	}

	return context.WithValue(ctx, spanKey{}, span), span
}

func (s *Span) End() {
	s.Elapsed = time.Since(s.Started)
}

func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

func (s *Span) SetError(err error) {
	s.Err = err
}

func SpanFrom(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey{}).(*Span)
	return span
}

func newID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
