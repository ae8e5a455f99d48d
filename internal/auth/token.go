package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/trader-console/internal/domain"
	apperrors "github.com/spec-kit/trader-console/pkg/util/errorutil"
)

// knownClaims is the fixed credential schema. Any other claim name fails closed.
var knownClaims = map[string]struct{}{
	"sub":   {},
	"role":  {},
	"email": {},
	"iat":   {},
	"exp":   {},
	"nbf":   {},
	"iss":   {},
	"aud":   {},
	"jti":   {},
}

// TokenManager issues credentials (dev backend) and decodes them (console).
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager. An empty secret decodes without
// signature verification, which is what a client holding no key can do.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute, now: time.Now}
}

// WithClock overrides the time source used for issuing and expiry checks.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	cp := *tm
	cp.now = now
	return &cp
}

// Claims describes the JWT payload issued by the backend.
type Claims struct {
	Role  domain.Role `json:"role"`
	Email string      `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken builds and signs a credential for the subject with the
// backend's claim set: sub, email, role and exp.
func (tm *TokenManager) GenerateToken(subjectID, email string, role domain.Role) (string, time.Time, error) {
	if len(tm.secret) == 0 {
		return "", time.Time{}, errors.New("token manager has no signing secret")
	}
	now := tm.now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates signature and expiry and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, tm.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Decode turns a credential into the fixed claims schema. Malformed, unknown-shaped
// and already-expired credentials all fail with a Corrupt AuthError.
func (tm *TokenManager) Decode(credential domain.Credential) (domain.Claims, error) {
	if credential.Empty() {
		return domain.Claims{}, apperrors.NewCorruptCredential("empty credential", nil)
	}

	raw := jwt.MapClaims{}
	var err error
	if len(tm.secret) > 0 {
		_, err = jwt.ParseWithClaims(string(credential), raw, tm.keyFunc,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(tm.now),
		)
	} else {
		_, _, err = jwt.NewParser().ParseUnverified(string(credential), raw)
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Claims{}, apperrors.NewCorruptCredential("credential expired", err)
		}
		return domain.Claims{}, apperrors.NewCorruptCredential("malformed credential", err)
	}

	claims, err := claimsFromMap(raw)
	if err != nil {
		return domain.Claims{}, err
	}
	if claims.ExpiredAt(tm.now()) {
		return domain.Claims{}, apperrors.NewCorruptCredential("credential expired", nil)
	}
	return claims, nil
}

func claimsFromMap(raw jwt.MapClaims) (domain.Claims, error) {
	for name := range raw {
		if _, ok := knownClaims[name]; !ok {
			return domain.Claims{}, apperrors.NewCorruptCredential("unknown claim "+name, nil)
		}
	}

	subject, err := raw.GetSubject()
	if err != nil || subject == "" {
		return domain.Claims{}, apperrors.NewCorruptCredential("missing subject", err)
	}
	// iat is optional; the backend issues only sub, email, role and exp.
	var issuedAt time.Time
	if iat, err := raw.GetIssuedAt(); err != nil {
		return domain.Claims{}, apperrors.NewCorruptCredential("malformed issued-at", err)
	} else if iat != nil {
		issuedAt = iat.Time
	}
	expiresAt, err := raw.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return domain.Claims{}, apperrors.NewCorruptCredential("missing expiry", err)
	}

	roleStr, _ := raw["role"].(string)
	role := domain.Role(roleStr)
	if !role.Valid() {
		return domain.Claims{}, apperrors.NewCorruptCredential("unknown role", nil)
	}

	var email string
	if v, present := raw["email"]; present {
		s, ok := v.(string)
		if !ok {
			return domain.Claims{}, apperrors.NewCorruptCredential("email claim is not a string", nil)
		}
		email = s
	}

	return domain.Claims{
		Subject:   subject,
		Role:      role,
		Email:     email,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt.Time,
	}, nil
}

func (tm *TokenManager) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method != jwt.SigningMethodHS256 {
		return nil, errors.New("unexpected signing method")
	}
	return tm.secret, nil
}
