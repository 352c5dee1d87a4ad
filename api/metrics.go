package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	stateSpanName    = "GET /api/state"
	stateEventName   = "state.request"
	stateEventDomain = "quadplan"
	stateRoute       = "/api/state"
)

// stateRequestMetrics collects per-request timings for the state endpoint and
// emits them both as a span and as a structured log entry correlated by
// trace id.
type stateRequestMetrics struct {
	logger         *log.Logger
	span           trace.Span
	start          time.Time
	authDuration   time.Duration
	loadDuration   time.Duration
	encodeDuration time.Duration
	boardsReturned int
	tasksReturned  int
	errorStage     string
}

func newStateRequestMetrics(ctx context.Context, logger *log.Logger) (*stateRequestMetrics, context.Context) {
	tracer := otel.Tracer("quadplan/api")
	spanCtx, span := tracer.Start(ctx, stateSpanName, trace.WithSpanKind(trace.SpanKindServer))
	return &stateRequestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
	}, spanCtx
}

func (m *stateRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *stateRequestMetrics) ObserveLoad(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.loadDuration = duration
}

func (m *stateRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *stateRequestMetrics) SetBoardsReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.boardsReturned = count
}

func (m *stateRequestMetrics) SetTasksReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.tasksReturned = count
}

func (m *stateRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log closes the span and writes the observability event. Safe to call once
// per request, typically from a defer.
func (m *stateRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	totalMs := durationToMillis(time.Since(m.start))
	severityText, severityNumber := severityForStatus(status, err)

	attrs := map[string]any{
		"http.route":                     stateRoute,
		"http.status_code":               status,
		"quadplan.state.total_ms":        totalMs,
		"quadplan.state.boards_returned": m.boardsReturned,
		"quadplan.state.tasks_returned":  m.tasksReturned,
	}
	if m.authDuration > 0 {
		attrs["quadplan.state.auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.loadDuration > 0 {
		attrs["quadplan.state.load_ms"] = durationToMillis(m.loadDuration)
	}
	if m.encodeDuration > 0 {
		attrs["quadplan.state.encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		attrs["quadplan.state.error_stage"] = m.errorStage
	}
	if err != nil {
		attrs["error.message"] = err.Error()
	}

	traceID := ""
	if m.span != nil {
		spanAttrs := []attribute.KeyValue{
			attribute.String("http.route", stateRoute),
			attribute.Int("http.status_code", status),
			attribute.Float64("quadplan.state.total_ms", totalMs),
			attribute.Int("quadplan.state.boards_returned", m.boardsReturned),
			attribute.Int("quadplan.state.tasks_returned", m.tasksReturned),
		}
		if m.errorStage != "" {
			spanAttrs = append(spanAttrs, attribute.String("quadplan.state.error_stage", m.errorStage))
		}
		m.span.SetAttributes(spanAttrs...)

		eventAttrs := []attribute.KeyValue{
			attribute.String("event.name", stateEventName),
			attribute.String("event.domain", stateEventDomain),
			attribute.String("severity_text", severityText),
			attribute.Int("severity_number", severityNumber),
			attribute.Float64("quadplan.state.total_ms", totalMs),
		}
		if m.errorStage != "" {
			eventAttrs = append(eventAttrs, attribute.String("quadplan.state.error_stage", m.errorStage))
		}
		if err != nil {
			eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
		}
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))

		if err != nil {
			m.span.SetStatus(codes.Error, err.Error())
		} else if status >= http.StatusInternalServerError {
			m.span.SetStatus(codes.Error, http.StatusText(status))
		} else {
			m.span.SetStatus(codes.Ok, "")
		}

		if sc := m.span.SpanContext(); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      stateEventName,
		"event.domain":    stateEventDomain,
		"attributes":      attrs,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if traceID != "" {
		fields["trace_id"] = traceID
	}
	m.logger.WithFields(fields).Log(levelForSeverity(severityText), "observability.event")
}

// severityForStatus maps an HTTP status (and optional error) onto OTLP log
// severity text and number.
func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func levelForSeverity(text string) log.Level {
	switch text {
	case "ERROR":
		return log.ErrorLevel
	case "WARN":
		return log.WarnLevel
	default:
		return log.InfoLevel
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
