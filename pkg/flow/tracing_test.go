package flow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/carbonlens/carbonflow/pkg/models"
)

// Not parallel: swaps the process-global tracer provider.
func TestProcessor_ApplyEmitsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)))
	t.Cleanup(func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
	})

	server := matcherServer(t, []models.MatchCandidate{
		{FactorID: "f-1", Name: "grid electricity", Unit: "kWh", Value: 0.5, Score: 0.9},
	})
	processor := newTestProcessor(t, matcherClientFor(t, server.URL))

	_, _, err := processor.Apply(context.Background(), models.NewWorkflowGraph("wf-trace"), models.AddAction{
		Type:  models.NodeTypeProduction,
		Patch: models.NodePatch{Description: strPtr("grid electricity")},
	})
	require.NoError(t, err)

	spans := exporter.GetSpans()

	names := make([]string, 0, len(spans))
	for _, span := range spans {
		names = append(names, span.Name)
	}

	assert.Contains(t, names, "flow.apply")
	assert.Contains(t, names, "matcher.match")

	for _, span := range spans {
		switch span.Name {
		case "flow.apply":
			assert.Contains(t, span.Attributes, attribute.String("carbonflow.workflow.id", "wf-trace"))
			assert.Contains(t, span.Attributes, attribute.String("carbonflow.action.operation", "add"))
		case "matcher.match":
			assert.Contains(t, span.Attributes, attribute.Float64("carbonflow.match.score", 0.9))
		}
	}
}
