package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/apperrors"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/config"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/logger"
)

// fakeCaller stands in for the RPC bridge.
type fakeCaller struct {
	mu       sync.Mutex
	response []byte
	err      error
	calls    int
	payloads []interface{}
}

func (f *fakeCaller) Call(_ context.Context, _ config.RPCEndpoint, payload interface{}, _ time.Duration) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeCaller) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newAuthGateway(t *testing.T, caller Caller) *Authorization {
	t.Helper()
	return NewAuthorization(caller, config.RPCEndpoint{Exchange: "authorization.ex"},
		10*time.Second, nil, 5*time.Minute, logger.NewTestLogger(t))
}

func TestAuthorization_Authorize(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		caller   *fakeCaller
		want     AuthorizationResult
		wantCall bool
	}{
		{
			name:  "valid client decision",
			token: "token-1",
			caller: &fakeCaller{
				response: []byte(`{"valid":true,"role":"CLIENT","userId":42,"companieId":7}`),
			},
			want: AuthorizationResult{
				Valid:    true,
				Role:     RoleClient,
				UserID:   42,
				TenantID: 7,
			},
			wantCall: true,
		},
		{
			name:  "remote denial keeps the reason",
			token: "token-2",
			caller: &fakeCaller{
				response: []byte(`{"valid":false,"reason":"expired credential"}`),
			},
			want: AuthorizationResult{
				Valid:  false,
				Reason: "expired credential",
				Code:   apperrors.CodeAuthorizationDenied,
			},
			wantCall: true,
		},
		{
			name:  "timeout becomes an invalid result",
			token: "token-3",
			caller: &fakeCaller{
				err: apperrors.NewRPCTimeout("authorization.ex"),
			},
			want: AuthorizationResult{
				Valid: false,
				Code:  apperrors.CodeRPCTimeout,
			},
			wantCall: true,
		},
		{
			name:  "broker failure becomes an invalid result",
			token: "token-4",
			caller: &fakeCaller{
				err: apperrors.NewBrokerError(assert.AnError),
			},
			want: AuthorizationResult{
				Valid: false,
				Code:  apperrors.CodeBrokerError,
			},
			wantCall: true,
		},
		{
			name:  "malformed response is a denial",
			token: "token-5",
			caller: &fakeCaller{
				response: []byte("not json"),
			},
			want: AuthorizationResult{
				Valid:  false,
				Reason: "malformed authorization response",
				Code:   apperrors.CodeAuthorizationDenied,
			},
			wantCall: true,
		},
		{
			name:   "missing token never reaches the broker",
			token:  "",
			caller: &fakeCaller{},
			want: AuthorizationResult{
				Valid:  false,
				Reason: "missing authorization token",
				Code:   apperrors.CodeAuthorizationDenied,
			},
			wantCall: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newAuthGateway(t, tt.caller)

			got := g.Authorize(context.Background(), tt.token)

			assert.Equal(t, tt.want.Valid, got.Valid)
			assert.Equal(t, tt.want.Code, got.Code)
			if tt.want.Role != "" {
				assert.Equal(t, tt.want.Role, got.Role)
				assert.Equal(t, tt.want.UserID, got.UserID)
				assert.Equal(t, tt.want.TenantID, got.TenantID)
			}
			if tt.want.Reason != "" {
				assert.Equal(t, tt.want.Reason, got.Reason)
			}
			if tt.wantCall {
				assert.Equal(t, 1, tt.caller.callCount())
			} else {
				assert.Zero(t, tt.caller.callCount())
			}
		})
	}
}

func TestAuthorization_SendsTokenPayload(t *testing.T) {
	caller := &fakeCaller{response: []byte(`{"valid":true,"role":"CLIENT","userId":1,"companieId":2}`)}
	g := newAuthGateway(t, caller)

	g.Authorize(context.Background(), "bearer-xyz")

	require.Len(t, caller.payloads, 1)
	body, err := json.Marshal(caller.payloads[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"bearer-xyz"}`, string(body))
}

func TestAuthorization_CacheHitSkipsCall(t *testing.T) {
	cache, mock := redismock.NewClientMock()
	caller := &fakeCaller{}
	g := NewAuthorization(caller, config.RPCEndpoint{Exchange: "authorization.ex"},
		10*time.Second, cache, 5*time.Minute, logger.NewTestLogger(t))

	cached := AuthorizationResult{Valid: true, Role: RoleClient, UserID: 9, TenantID: 3}
	data, err := json.Marshal(cached)
	require.NoError(t, err)
	mock.ExpectGet("auth:" + tokenDigest("cached-token")).SetVal(string(data))

	got := g.Authorize(context.Background(), "cached-token")

	assert.True(t, got.Valid)
	assert.Equal(t, int64(9), got.UserID)
	assert.Zero(t, caller.callCount(), "cache hit must not issue a broker call")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthorization_ValidDecisionIsCached(t *testing.T) {
	cache, mock := redismock.NewClientMock()
	caller := &fakeCaller{response: []byte(`{"valid":true,"role":"CLIENT","userId":9,"companieId":3}`)}
	g := NewAuthorization(caller, config.RPCEndpoint{Exchange: "authorization.ex"},
		10*time.Second, cache, 5*time.Minute, logger.NewTestLogger(t))

	key := "auth:" + tokenDigest("fresh-token")
	mock.ExpectGet(key).RedisNil()

	expected, err := json.Marshal(AuthorizationResult{Valid: true, Role: RoleClient, UserID: 9, TenantID: 3})
	require.NoError(t, err)
	mock.ExpectSet(key, expected, 5*time.Minute).SetVal("OK")

	got := g.Authorize(context.Background(), "fresh-token")

	assert.True(t, got.Valid)
	assert.Equal(t, 1, caller.callCount())
	assert.NoError(t, mock.ExpectationsWereMet())
}
