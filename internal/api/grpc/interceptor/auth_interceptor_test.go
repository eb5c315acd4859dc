package interceptor

import (
	"context"
	"testing"
	"time"

	"carrental-backend/internal/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestAuthInterceptor_Unary(t *testing.T) {
	tm := security.NewTokenManager(testSecret, time.Hour)
	unary := NewAuthInterceptor(tm).Unary()

	var seen *security.ActorClaims
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		seen, _ = ClaimsFromContext(ctx)
		return "ok", nil
	}
	call := func(ctx context.Context, method string) (interface{}, error) {
		seen = nil
		return unary(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, handler)
	}
	withToken := func(token string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
	}

	t.Run("Health check is public", func(t *testing.T) {
		resp, err := call(context.Background(), "/grpc.health.v1.Health/Check")
		require.NoError(t, err)
		assert.Equal(t, "ok", resp)
		assert.Nil(t, seen)
	})

	t.Run("Missing metadata", func(t *testing.T) {
		_, err := call(context.Background(), "/carrental.Admin/Anything")
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("Customer denied", func(t *testing.T) {
		token, err := tm.GenerateAccessToken(10, "", "CUSTOMER")
		require.NoError(t, err)
		_, err = call(withToken(token), "/carrental.Admin/Anything")
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})

	t.Run("Service token allowed", func(t *testing.T) {
		token, err := tm.GenerateServiceToken(1, "cronjob")
		require.NoError(t, err)
		_, err = call(withToken(token), "/carrental.Admin/Anything")
		require.NoError(t, err)
		require.NotNil(t, seen)
		assert.Equal(t, int32(1), seen.CustomerID)
	})
}
