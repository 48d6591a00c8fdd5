package event

import "log/slog"

// Sink receives facts after the operation that produced them has fully
// applied. Publish must not block the hotpath for long and must never
// re-enter the exchange engine.
type Sink interface {
	Publish(Fact)
}

// Fanout delivers every fact to each registered sink in order.
type Fanout struct {
	sinks []Sink
}

// NewFanout creates a fanout over the given sinks. Nil sinks are skipped.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *Fanout) Publish(fact Fact) {
	for _, s := range f.sinks {
		s.Publish(fact)
	}
}

// LogSink writes each fact to the structured log. Doubles as a human-readable
// audit trail alongside the facts table.
type LogSink struct {
	Logger *slog.Logger
}

func (s *LogSink) Publish(fact Fact) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("FACT",
		slog.String("kind", string(fact.GetKind())),
		slog.Uint64("seq", fact.GetSeq()),
		slog.Time("ts", fact.GetTime()),
		slog.Any("fact", fact),
	)
}
