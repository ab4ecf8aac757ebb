package chatapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	contextKeyClaims    = "auth_claims"
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// Claims identify the chat user behind a request.
type Claims struct {
	UserID string `json:"sub"`
	jwt.RegisteredClaims
}

// TokenConfig holds the HS256 signing parameters.
type TokenConfig struct {
	SigningKey []byte
	Issuer     string
	Expiry     time.Duration
}

// IssueToken signs a token for userID.
func IssueToken(userID string, cfg TokenConfig, now time.Time) (string, error) {
	if len(cfg.SigningKey) == 0 {
		return "", errors.New("missing signing key")
	}
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("missing user id")
	}
	if cfg.Expiry <= 0 {
		return "", errors.New("invalid expiry")
	}
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.SigningKey)
}

// VerifyToken checks signature, expiry and issuer.
func VerifyToken(tokenString string, cfg TokenConfig) (*Claims, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("missing signing key")
	}
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, options...)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.UserID) == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func authMiddleware(cfg TokenConfig) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader(authorizationHeader)
		if !strings.HasPrefix(header, bearerPrefix) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing bearer token"))
			return
		}
		claims, err := VerifyToken(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)), cfg)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid token"))
			return
		}
		ctx.Set(contextKeyClaims, claims)
		ctx.Next()
	}
}

func getClaims(ctx *gin.Context) *Claims {
	claimsValue, ok := ctx.Get(contextKeyClaims)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*Claims)
	return claims
}
