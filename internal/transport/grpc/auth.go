package grpc

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const userIDKey contextKey = "userID"

// AuthUnaryInterceptor requires an HS256-signed bearer token in the
// "authorization" metadata and stores its subject as the caller's user id.
func AuthUnaryInterceptor(secret string) grpclib.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpclib.UnaryServerInfo, handler grpclib.UnaryHandler) (any, error) {
		sub, err := authenticate(ctx, secret)
		if err != nil {
			return nil, err
		}
		return handler(context.WithValue(ctx, userIDKey, sub), req)
	}
}

func authenticate(ctx context.Context, secret string) (string, error) {
	if secret == "" {
		return "", status.Error(codes.Unauthenticated, "authentication disabled")
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing authorization metadata")
	}
	values := md.Get("authorization")
	if len(values) == 0 || !strings.HasPrefix(values[0], "Bearer ") {
		return "", status.Error(codes.Unauthenticated, "missing bearer token")
	}

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(values[0], "Bearer "), &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", status.Error(codes.Unauthenticated, "invalid token")
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", status.Error(codes.Unauthenticated, "token has no subject")
	}
	return sub, nil
}

// UserIDFromContext returns the authenticated caller, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// callerID resolves the acting user from the authenticated context. A
// user_id in the message must name the same user.
func callerID(ctx context.Context, claimed string) (string, error) {
	sub, ok := UserIDFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "authentication required")
	}
	if claimed = strings.TrimSpace(claimed); claimed != "" && claimed != sub {
		return "", status.Error(codes.PermissionDenied, "user_id does not match the authenticated caller")
	}
	return sub, nil
}
