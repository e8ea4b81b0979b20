package server

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/internal/common"
)

// UnaryAuthInterceptor copies the gateway's identity metadata into the
// request context. The role header must parse when present; a missing
// role passes through as unauthenticated and the permission checks in
// the service layer deny from there.
func UnaryAuthInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.") {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		if raw := firstValue(md, constants.MetadataRoleKey); raw != "" {
			role, err := constants.ParseUserRole(raw)
			if err != nil {
				logger.Warn("rejected request with unknown role", "method", info.FullMethod, "role", raw)
				return nil, status.Error(codes.Unauthenticated, "unknown caller role")
			}
			ctx = common.WithUserRole(ctx, role)
		}
		if v := firstValue(md, constants.MetadataUserIDKey); v != "" {
			ctx = common.WithUserID(ctx, v)
		}
		if v := firstValue(md, constants.MetadataCompanyKey); v != "" {
			ctx = common.WithCompanyID(ctx, v)
		}

		return handler(ctx, req)
	}
}

func firstValue(md metadata.MD, key string) string {
	vals := md.Get(key)
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
