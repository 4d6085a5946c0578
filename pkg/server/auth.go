package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/raterudder/payback/pkg/common"
	"github.com/raterudder/payback/pkg/log"
)

var oidcIssuers = map[string]string{
	"google": "https://accounts.google.com",
	"apple":  "https://appleid.apple.com",
}

// identity is what a verified ID token tells us about the caller.
type identity struct {
	Email   string
	Subject string
	Expiry  time.Time
}

// tokenVerifier validates a raw ID token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (identity, error)

func newOIDCVerifier(ctx context.Context, issuer, audience string) (tokenVerifier, error) {
	// the verifier keeps using this client to refresh signing keys
	ctx = oidc.ClientContext(ctx, common.HTTPClient(30*time.Second))
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider %s: %w", issuer, err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: audience})
	return func(ctx context.Context, rawIDToken string) (identity, error) {
		idToken, err := verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return identity{}, err
		}
		var claims struct {
			Email         string `json:"email"`
			EmailVerified any    `json:"email_verified"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return identity{}, fmt.Errorf("failed to parse claims: %w", err)
		}
		// apple sends email_verified as a string
		switch v := claims.EmailVerified.(type) {
		case bool:
			if !v {
				return identity{}, errors.New("email not verified")
			}
		case string:
			if v != "true" {
				return identity{}, errors.New("email not verified")
			}
		}
		return identity{
			Email:   claims.Email,
			Subject: idToken.Subject,
			Expiry:  idToken.Expiry,
		}, nil
	}, nil
}

// authMiddleware only lets admins through. Tokens are passed as a bearer
// token in the Authorization header.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.bypassAuth {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Ctx(ctx).WarnContext(ctx, "missing auth header")
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "invalid auth header")
			writeJSONError(w, "invalid auth header", http.StatusBadRequest)
			return
		}

		id, err := s.authenticateToken(ctx, token)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "auth token validation failed", slog.Any("error", err))
			writeJSONError(w, "invalid auth token", http.StatusUnauthorized)
			return
		}
		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("authUserID", id.Subject)))
		if id.Email == "" || !s.isAdmin(id.Email) {
			log.Ctx(ctx).WarnContext(ctx, "user is not an admin", slog.String("email", id.Email))
			writeJSONError(w, "forbidden", http.StatusForbidden)
			return
		}

		log.Ctx(ctx).DebugContext(ctx, "authenticated request", slog.String("email", id.Email))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) authenticateToken(ctx context.Context, token string) (identity, error) {
	var errs []error

	for providerName, verifier := range s.oidcVerifiers {
		id, err := verifier(ctx, token)
		if err == nil {
			return id, nil
		}
		errs = append(errs, fmt.Errorf("%s verifier failed: %v", providerName, err))
	}

	if len(errs) > 1 {
		return identity{}, errors.Join(errs...)
	}
	if len(errs) == 1 {
		return identity{}, errs[0]
	}
	return identity{}, errors.New("no valid audiences configured or token invalid")
}
