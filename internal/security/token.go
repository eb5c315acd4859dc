package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrWrongTokenType = errors.New("wrong token type for this endpoint")
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeService TokenType = "service"
)

const (
	issuer   = "carrental-auth"
	audience = "carrental-api"
)

// ActorClaims identify who is calling the rental API. Customers act on their
// own rentals, admins on any.
type ActorClaims struct {
	CustomerID int32     `json:"customer_id"`
	Email      string    `json:"email,omitempty"`
	Role       string    `json:"role"`
	Type       TokenType `json:"type"`
	jwt.RegisteredClaims
}

func (c *ActorClaims) IsAdmin() bool {
	return c.Role == "ADMIN"
}

type TokenManager interface {
	GenerateAccessToken(customerID int32, email, role string) (string, error)
	// GenerateServiceToken is for back-office tooling acting as an admin.
	GenerateServiceToken(actorID int32, name string) (string, error)
	ValidateToken(tokenString string) (*ActorClaims, error)
}

type tokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &tokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *tokenManager) sign(claims ActorClaims, ttl time.Duration) (string, error) {
	now := m.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   strconv.Itoa(int(claims.CustomerID)),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{audience},
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *tokenManager) GenerateAccessToken(customerID int32, email, role string) (string, error) {
	return m.sign(ActorClaims{
		CustomerID: customerID,
		Email:      email,
		Role:       role,
		Type:       TokenTypeAccess,
	}, m.ttl)
}

func (m *tokenManager) GenerateServiceToken(actorID int32, name string) (string, error) {
	return m.sign(ActorClaims{
		CustomerID: actorID,
		Email:      name,
		Role:       "ADMIN",
		Type:       TokenTypeService,
	}, 10*time.Minute)
}

func (m *tokenManager) ValidateToken(tokenString string) (*ActorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ActorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithAudience(audience), jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*ActorClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != TokenTypeAccess && claims.Type != TokenTypeService {
		return nil, ErrWrongTokenType
	}
	if claims.CustomerID == 0 && claims.Subject != "" {
		uid, _ := strconv.Atoi(claims.Subject)
		claims.CustomerID = int32(uid)
	}
	return claims, nil
}
