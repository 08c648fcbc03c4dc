package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nurpe/koshtorys/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identify the owner a request acts for. The subject is the user id.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Parser turns bearer tokens into principals. Without a secret every
// request runs as the default owner.
type Parser struct {
	secret       []byte
	defaultOwner uuid.UUID
}

func NewParser(secret string, defaultOwner uuid.UUID) *Parser {
	return &Parser{secret: []byte(strings.TrimSpace(secret)), defaultOwner: defaultOwner}
}

func (p *Parser) Enabled() bool {
	return len(p.secret) > 0
}

// Default is the principal used when tokens are disabled.
func (p *Parser) Default() model.Principal {
	return model.Principal{UserID: p.defaultOwner, Name: "default"}
}

func (p *Parser) Parse(raw string) (model.Principal, error) {
	if !p.Enabled() {
		return p.Default(), nil
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return model.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return model.Principal{UserID: userID, Name: claims.Name}, nil
}

// Issue signs a token for principal, valid for ttl.
func (p *Parser) Issue(principal model.Principal, ttl time.Duration) (string, error) {
	if !p.Enabled() {
		return "", errors.New("token secret is not configured")
	}
	now := time.Now()
	claims := Claims{
		Name: principal.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
