package appcontext

import (
	"context"

	"github.com/sirupsen/logrus"
)

type contextId int

const (
	policyNameKeyId contextId = iota
	filePathKeyId
	requestIdKeyId
)

func WithRequestId(ctx context.Context, requestId string) context.Context {
	return context.WithValue(ctx, requestIdKeyId, requestId)
}

func WithPolicyName(ctx context.Context, policy string) context.Context {
	return context.WithValue(ctx, policyNameKeyId, policy)
}

func WithFilePath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, filePathKeyId, path)
}

func LoggerFromContext(logger logrus.FieldLogger, ctx context.Context) logrus.FieldLogger {
	if ctx == nil {
		return logger
	}

	result := logger

	if ctxPolicyName, ok := ctx.Value(policyNameKeyId).(string); ok {
		result = result.WithField("policy", ctxPolicyName)
	}

	if ctxFilePath, ok := ctx.Value(filePathKeyId).(string); ok && ctxFilePath != "" {
		result = result.WithField("file", ctxFilePath)
	}

	if ctxRequestId, ok := ctx.Value(requestIdKeyId).(string); ok && ctxRequestId != "" {
		result = result.WithField("request_id", ctxRequestId)
	}

	return result
}
