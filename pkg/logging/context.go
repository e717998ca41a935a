package logging

import (
	"context"
	"strconv"
)

const (
	TraceIDKey     = "trace_id"
	DeliveryTagKey = "delivery_tag"
	DomainKey      = "domain"
	ServiceNameKey = "service_name"
)

type ctxKey string

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey(TraceIDKey), traceID)
}

// WithDeliveryTag records the broker token of the message being handled.
func WithDeliveryTag(ctx context.Context, tag uint64) context.Context {
	return context.WithValue(ctx, ctxKey(DeliveryTagKey), tag)
}

func WithDomain(ctx context.Context, domain string) context.Context {
	return context.WithValue(ctx, ctxKey(DomainKey), domain)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ctxKey(ServiceNameKey), serviceName)
}

func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(ctxKey(TraceIDKey)).(string); ok {
		return traceID
	}
	return ""
}

func GetDeliveryTag(ctx context.Context) (uint64, bool) {
	tag, ok := ctx.Value(ctxKey(DeliveryTagKey)).(uint64)
	return tag, ok
}

func GetDomain(ctx context.Context) string {
	if domain, ok := ctx.Value(ctxKey(DomainKey)).(string); ok {
		return domain
	}
	return ""
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ctxKey(ServiceNameKey)).(string); ok {
		return serviceName
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, TraceIDKey, traceID)
	}

	if tag, ok := GetDeliveryTag(ctx); ok {
		fields = append(fields, DeliveryTagKey, strconv.FormatUint(tag, 10))
	}

	if domain := GetDomain(ctx); domain != "" {
		fields = append(fields, DomainKey, domain)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, ServiceNameKey, serviceName)
	}

	return fields
}
