// Package gateway holds the typed wrappers over the RPC bridge: one per
// remote capability. Gateways never return transport errors; timeouts and
// broker failures come back as data results carrying the failure code, so
// the workflow always receives a definite outcome.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/apperrors"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/config"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/logger"
)

// Roles recognized by the authorization service.
const (
	RoleClient     = "CLIENT"
	RoleTechnician = "ROLE_TECHNICIAN"
)

// Caller is the slice of the RPC bridge the gateways depend on.
type Caller interface {
	Call(ctx context.Context, ep config.RPCEndpoint, payload interface{}, timeout time.Duration) ([]byte, error)
}

// AuthorizationResult is the definite outcome of one authorization call.
// When Valid is false, Code tells the workflow whether the credential was
// denied or the call itself failed (timeout, broker).
type AuthorizationResult struct {
	Valid    bool           `json:"valid"`
	Role     string         `json:"role"`
	UserID   int64          `json:"userId"`
	TenantID int64          `json:"companieId"`
	Reason   string         `json:"reason,omitempty"`
	Code     apperrors.Code `json:"-"`
}

type authRequest struct {
	Token string `json:"token"`
}

// Authorization exchanges a credential token for a role/tenant decision via
// the authorization service's request/reply exchanges. Valid decisions are
// cached in redis for a short TTL; the cache is advisory and its failures
// are ignored.
type Authorization struct {
	caller   Caller
	endpoint config.RPCEndpoint
	timeout  time.Duration
	cache    *redis.Client
	cacheTTL time.Duration
	log      logger.Logger
}

func NewAuthorization(caller Caller, endpoint config.RPCEndpoint, timeout time.Duration, cache *redis.Client, cacheTTL time.Duration, log logger.Logger) *Authorization {
	return &Authorization{
		caller:   caller,
		endpoint: endpoint,
		timeout:  timeout,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log.WithFields(map[string]interface{}{"gateway": "authorization"}),
	}
}

// Authorize resolves token to a role/tenant decision. Denials, timeouts and
// broker failures are all returned as invalid results, never as errors.
func (g *Authorization) Authorize(ctx context.Context, token string) AuthorizationResult {
	if token == "" {
		return AuthorizationResult{
			Valid:  false,
			Reason: "missing authorization token",
			Code:   apperrors.CodeAuthorizationDenied,
		}
	}

	cacheKey := "auth:" + tokenDigest(token)
	if g.cache != nil {
		if raw, err := g.cache.Get(ctx, cacheKey).Result(); err == nil {
			var cached AuthorizationResult
			if err := json.Unmarshal([]byte(raw), &cached); err == nil && cached.Valid {
				return cached
			}
		}
	}

	raw, err := g.caller.Call(ctx, g.endpoint, authRequest{Token: token}, g.timeout)
	if err != nil {
		code := apperrors.CodeOf(err)
		g.log.Warn("authorization call failed", map[string]interface{}{
			"code":  string(code),
			"error": err.Error(),
		})
		return AuthorizationResult{Valid: false, Reason: err.Error(), Code: code}
	}

	var result AuthorizationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return AuthorizationResult{
			Valid:  false,
			Reason: "malformed authorization response",
			Code:   apperrors.CodeAuthorizationDenied,
		}
	}

	if !result.Valid {
		result.Code = apperrors.CodeAuthorizationDenied
		if result.Reason == "" {
			result.Reason = "access denied"
		}
		return result
	}

	if g.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			g.cache.Set(ctx, cacheKey, data, g.cacheTTL)
		}
	}
	return result
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
