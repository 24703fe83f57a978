package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/apperr"
	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/services"
)

type Claims struct {
	UserID uint        `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
}

func NewTokenIssuer(secret string, expiry time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), expiry: expiry}
}

func (t *TokenIssuer) Generate(userID uint, role models.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *TokenIssuer) Validate(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// UserLoader loads the account behind a token.
type UserLoader interface {
	Get(ctx context.Context, id uint) (*models.User, error)
}

// Auth resolves bearer tokens into the caller's identity.
type Auth struct {
	Tokens *TokenIssuer
	Users  UserLoader
}

const identityKey = "identity"

// Identify validates raw and loads the current state of the account it names.
func (a *Auth) Identify(ctx context.Context, raw string) (services.Identity, error) {
	claims, err := a.Tokens.Validate(raw)
	if err != nil {
		return services.Identity{}, apperr.Unauthenticated("Invalid or expired token")
	}
	u, err := a.Users.Get(ctx, claims.UserID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return services.Identity{}, apperr.Unauthenticated("User no longer exists")
	}
	if err != nil {
		return services.Identity{}, err
	}
	return services.IdentityOf(u), nil
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}

// RequireAuth ensures a valid JWT is present and stores the caller's identity.
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abort(c, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}

		who, err := a.Identify(c.Request.Context(), strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			if e, ok := apperr.As(err); ok {
				abort(c, http.StatusUnauthorized, e.Message)
				return
			}
			logrus.WithError(err).WithField("request_id", GetRequestID(c)).Error("Failed to load authenticated user")
			abort(c, http.StatusInternalServerError, "Internal server error")
			return
		}

		c.Set(identityKey, who)
		c.Next()
	}
}

// RequireRoles lets the request through only for the given roles. It must run after RequireAuth.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := CurrentIdentity(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		for _, r := range roles {
			if who.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "Insufficient permissions")
	}
}

// CurrentIdentity returns the identity RequireAuth stored on the context.
func CurrentIdentity(c *gin.Context) (services.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return services.Identity{}, false
	}
	who, ok := v.(services.Identity)
	return who, ok
}
