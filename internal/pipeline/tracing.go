package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceScopePipeline = "conductor.pipeline"

	traceSpanRequest = "conductor.request"

	traceAttrRequestID      = "conductor.request_id"
	traceAttrConversationID = "conductor.conversation_id"
	traceAttrStage          = "conductor.stage"
	traceAttrStatus         = "conductor.status"
)

func startRequestSpan(ctx context.Context, requestID, conversationID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String(traceAttrRequestID, requestID)}
	if conversationID != "" {
		attrs = append(attrs, attribute.String(traceAttrConversationID, conversationID))
	}
	return otel.Tracer(traceScopePipeline).Start(ctx, traceSpanRequest, trace.WithAttributes(attrs...))
}

func startStageSpan(ctx context.Context, stage, requestID string) (context.Context, trace.Span) {
	return otel.Tracer(traceScopePipeline).Start(ctx, "conductor.stage."+stage,
		trace.WithAttributes(
			attribute.String(traceAttrStage, stage),
			attribute.String(traceAttrRequestID, requestID),
		))
}

func markSpanResult(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(traceAttrStatus, "error"))
		return
	}
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String(traceAttrStatus, "success"))
}
