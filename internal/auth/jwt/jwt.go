package jwt

import (
	"errors"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	issuer string
}

func NewManager(secret, issuer string) *Manager {
	return &Manager{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// GenerateAccessToken mints a token for the identity provider side. The chat
// service itself only validates tokens; this is used by tooling and tests.
func (m *Manager) GenerateAccessToken(r auth.Requester, duration time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:      r.ID.String(),
		DisplayName: r.DisplayName,
		Role:        string(r.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   r.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			Issuer:    m.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// Requester converts validated claims into the identity used by the services.
func (m *Manager) Requester(tokenString string) (auth.Requester, error) {
	claims, err := m.ValidateAccessToken(tokenString)
	if err != nil {
		return auth.Requester{}, err
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return auth.Requester{}, errors.New("invalid user id in token")
	}

	return auth.Requester{
		ID:          id,
		DisplayName: claims.DisplayName,
		Role:        auth.ParseRole(claims.Role),
	}, nil
}
