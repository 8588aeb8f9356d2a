package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// addEvent attaches a structured event to span, tagging it with its own
// name so log pipelines can filter on event.type. Nil spans are ignored.
func addEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}

	tagged := make([]attribute.KeyValue, 0, len(attrs)+1)
	tagged = append(tagged, attribute.String("event.type", name))
	tagged = append(tagged, attrs...)
	span.AddEvent(name, trace.WithAttributes(tagged...))
}

// RecordWarningEvent marks an expansion warning on the run span
func RecordWarningEvent(span trace.Span, stage, provider, environment, role, severity, message string) {
	addEvent(span, "expansion.warning.raised",
		attribute.String("warning.stage", stage),
		attribute.String("provider", provider),
		attribute.String("environment", environment),
		attribute.String("role", role),
		attribute.String("severity", severity),
		attribute.String("message", message),
	)
}

// RecordFileAppliedEvent marks a written config file on the run span
func RecordFileAppliedEvent(span trace.Span, path, status string, bytes int) {
	addEvent(span, "config.file.applied",
		attribute.String("file.path", path),
		attribute.String("file.status", status),
		attribute.Int("file.bytes", bytes),
	)
}

// RecordPolicyViolationEvent marks a policy hit on the run span
func RecordPolicyViolationEvent(span trace.Span, policyName, profile, decision, reason string) {
	addEvent(span, "config.policy.violation",
		attribute.String("policy.name", policyName),
		attribute.String("profile", profile),
		attribute.String("decision", decision),
		attribute.String("reason", reason),
	)
}

// RecordRunCompletedEvent marks a finished run on the run span
func RecordRunCompletedEvent(span trace.Span, command string, created, updated, unchanged, warnings int, durationSeconds float64) {
	addEvent(span, "config.run.completed",
		attribute.String("command", command),
		attribute.Int("files.created", created),
		attribute.Int("files.updated", updated),
		attribute.Int("files.unchanged", unchanged),
		attribute.Int("warnings", warnings),
		attribute.Float64("duration.seconds", durationSeconds),
	)
}
