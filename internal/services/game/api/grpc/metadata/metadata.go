package metadata

import (
	"context"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/careercounsel/cardroom/internal/platform/i18n"
	"github.com/careercounsel/cardroom/internal/platform/id"
	"github.com/careercounsel/cardroom/internal/platform/requestctx"
)

// RequestIDHeader is the metadata key for request correlation ids, in both
// directions.
const RequestIDHeader = "x-cardroom-request-id"

// LocaleHeader is the metadata key carrying language preferences.
const LocaleHeader = "accept-language"

// AuthorizationHeader is the metadata key carrying the room grant as a
// bearer token.
const AuthorizationHeader = "authorization"

// maxRequestIDLen bounds client-supplied request ids.
const maxRequestIDLen = 128

// incoming returns the first usable value of key in the incoming metadata.
// Values with control or non-ASCII bytes are skipped.
func incoming(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, value := range md.Get(key) {
		if usable(value) {
			return value
		}
	}
	return ""
}

func usable(value string) bool {
	if value == "" || len(value) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return false
		}
	}
	return true
}

// AuthorizationFromContext returns the first authorization value from the
// incoming metadata, or "" when there is none.
func AuthorizationFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(AuthorizationHeader); len(values) > 0 {
		return values[0]
	}
	return ""
}

// LocaleFromContext returns the negotiated locale, resolving it from
// incoming metadata when the interceptor has not run.
func LocaleFromContext(ctx context.Context) string {
	if locale := requestctx.LocaleFromContext(ctx); locale != "" {
		return locale
	}
	return i18n.MatchAcceptLanguage(incoming(ctx, LocaleHeader))
}

// serverFault reports codes that indicate a server problem rather than a
// rejected request.
func serverFault(code codes.Code) bool {
	switch code {
	case codes.Unknown, codes.Internal, codes.Unavailable, codes.DataLoss:
		return true
	default:
		return false
	}
}

// UnaryServerInterceptor tags each unary call with a request id and locale.
// It echoes the id in the response header and logs calls that fail with a server fault.
// idGenerator defaults to id.NewID.
func UnaryServerInterceptor(idGenerator func() (string, error)) grpc.UnaryServerInterceptor {
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := incoming(ctx, RequestIDHeader)
		if requestID == "" {
			generated, err := idGenerator()
			if err != nil {
				return nil, status.Errorf(codes.Internal, "generate request id: %v", err)
			}
			requestID = generated
		}
		ctx = requestctx.WithRequestID(ctx, requestID)
		ctx = requestctx.WithLocale(ctx, i18n.MatchAcceptLanguage(incoming(ctx, LocaleHeader)))
		if err := grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID)); err != nil {
			return nil, status.Errorf(codes.Internal, "set response metadata: %v", err)
		}

		start := time.Now()
		resp, err := handler(ctx, req)
		if code := status.Code(err); serverFault(code) {
			log.Printf("grpc call failed method=%s request_id=%s code=%s duration=%s err=%v",
				info.FullMethod, requestID, code, time.Since(start).Round(time.Millisecond), err)
		}
		return resp, err
	}
}
