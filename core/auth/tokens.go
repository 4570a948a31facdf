package auth

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/user"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	blacklistPrefix = "blacklist_"
)

var (
	SigningMethod = jwt.SigningMethodHS256

	NowFunc = time.Now // mockable

	errWrongTokenType = errors.New("wrong token type")
	errTokenExpired   = errors.New("token is expired")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	TokenType string   `json:"token_type"`
	RefreshID string   `json:"rid,omitempty"` // jti of the refresh token an access token descends from
	Phone     string   `json:"phone,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// Valid checks the time based claims against NowFunc. An expiry is required.
func (c Claims) Valid() error {
	now := NowFunc().Unix()
	if !c.VerifyExpiresAt(now, true) {
		return errTokenExpired
	}
	if !c.VerifyIssuedAt(now, false) {
		return errors.New("token used before issued")
	}
	return nil
}

// Lineage returns the jti of the refresh token the claims belong to.
func (c Claims) Lineage() string {
	if c.TokenType == TokenTypeRefresh {
		return c.Id
	}
	return c.RefreshID
}

func (c Claims) UserRoles() user.Roles {
	roles := make(user.Roles, 0, len(c.Roles))
	for _, r := range c.Roles {
		roles = append(roles, user.Role(r))
	}
	return roles.Normalize()
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenService issues and checks access/refresh JWT pairs. Revoked refresh tokens are
// blacklisted in the cache until they would have expired anyway.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	cache      core.Cache
	users      user.Service
}

func NewTokenService(conf *core.Config, cache core.Cache, users user.Service) *TokenService {
	return &TokenService{
		secret:     []byte(conf.SecretKey),
		issuer:     conf.AppName,
		accessTTL:  conf.Server.AccessTokenTTL,
		refreshTTL: conf.Server.RefreshTokenTTL,
		cache:      cache,
		users:      users,
	}
}

// SigningKey returns the key access tokens are signed with.
func (ts *TokenService) SigningKey() []byte { return ts.secret }

func (ts *TokenService) sign(claims *Claims) (string, error) {
	ss, err := jwt.NewWithClaims(SigningMethod, claims).SignedString(ts.secret)
	return ss, errors.Wrap(err, "signing token")
}

func (ts *TokenService) accessClaims(usr user.User, refreshID string, now time.Time) *Claims {
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			Issuer:    ts.issuer,
			Subject:   usr.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ts.accessTTL).Unix(),
		},
		TokenType: TokenTypeAccess,
		RefreshID: refreshID,
		Phone:     usr.Phone,
		Roles:     usr.Roles.Strings(),
	}
}

// Issue mints a new token pair bound to usr.
func (ts *TokenService) Issue(usr user.User) (TokenPair, error) {
	now := NowFunc()
	refreshClaims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			Issuer:    ts.issuer,
			Subject:   usr.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ts.refreshTTL).Unix(),
		},
		TokenType: TokenTypeRefresh,
	}

	refresh, err := ts.sign(refreshClaims)
	if err != nil {
		return TokenPair{}, err
	}
	access, err := ts.sign(ts.accessClaims(usr, refreshClaims.Id, now))
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Parse checks the signature and expiry of a token string of type tokenType.
func (ts *TokenService) Parse(tokenStr, tokenType string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != SigningMethod.Alg() {
			return nil, errors.Errorf("unexpected jwt signing method=%v", t.Header["alg"])
		}
		return ts.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if err = CheckTokenType(claims, tokenType); err != nil {
		return nil, err
	}
	return claims, nil
}

// CheckTokenType returns ErrTokenInvalid unless claims are of tokenType.
func CheckTokenType(claims *Claims, tokenType string) error {
	if claims.TokenType != tokenType || claims.Subject == "" {
		return errors.Wrap(ErrTokenInvalid, errWrongTokenType.Error())
	}
	if tokenType == TokenTypeAccess && claims.RefreshID == "" {
		return errors.Wrap(ErrTokenInvalid, "missing refresh lineage")
	}
	return nil
}

func (ts *TokenService) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	_, err := ts.cache.Get(ctx, blacklistPrefix+jti)
	switch errors.Cause(err) {
	case nil:
		return true, nil
	case core.ErrCacheMiss:
		return false, nil
	}
	return false, errors.Wrap(err, "reading blacklist")
}

// CheckLineage returns ErrTokenBlacklisted when the refresh token claims descend from has been revoked.
func (ts *TokenService) CheckLineage(ctx context.Context, claims *Claims) error {
	blacklisted, err := ts.IsBlacklisted(ctx, claims.Lineage())
	if err != nil {
		return err
	}
	if blacklisted {
		return ErrTokenBlacklisted
	}
	return nil
}

// ParseAccess validates an access token presented on a protected request.
func (ts *TokenService) ParseAccess(ctx context.Context, access string) (*Claims, error) {
	claims, err := ts.Parse(access, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	if err = ts.CheckLineage(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Refresh exchanges a valid, non revoked refresh token for a new access token of the same lineage.
// The owner must still exist and be active.
func (ts *TokenService) Refresh(ctx context.Context, refresh string) (string, error) {
	claims, err := ts.Parse(refresh, TokenTypeRefresh)
	if err != nil {
		return "", err
	}
	if err = ts.CheckLineage(ctx, claims); err != nil {
		return "", err
	}

	usr, err := ts.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return "", ErrTokenInvalid
		}
		return "", errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return "", ErrTokenInvalid
	}
	return ts.sign(ts.accessClaims(usr, claims.Id, NowFunc()))
}

// Revoke blacklists a refresh token for the rest of its lifetime.
func (ts *TokenService) Revoke(ctx context.Context, refresh string) error {
	claims, err := ts.Parse(refresh, TokenTypeRefresh)
	if err != nil {
		return err
	}
	if err = ts.CheckLineage(ctx, claims); err != nil {
		return err
	}

	ttl := time.Unix(claims.ExpiresAt, 0).Sub(NowFunc())
	if ttl < time.Second {
		ttl = time.Second
	}
	err = ts.cache.Set(ctx, blacklistPrefix+claims.Id, claims.Subject, ttl)
	return errors.Wrap(err, "blacklisting refresh token")
}
