// Package identity は外部IdPが発行したセッショントークンの検証とサインアウトを提供する。
//
// トークンはHS256で署名されたJWTで、subがユーザーID、emailが任意のメールアドレス。
// サインアウトはトークンの有効期限まで失効リストに登録することで実現する。
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/cleardental/internal/model"
)

var (
	// ErrInvalidToken は署名・有効期限・発行者などの検証に失敗したことを表す。
	ErrInvalidToken = errors.New("invalid session token")
	// ErrRevoked はサインアウト済みのトークンであることを表す。
	ErrRevoked = errors.New("session revoked")
)

// Claims はIdPが発行するトークンのクレーム。
type Claims struct {
	Email     string `json:"email,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// VerifierConfig はトークン検証の設定。
type VerifierConfig struct {
	Secret   []byte
	Issuer   string // 空の場合は検証しない
	Audience string // 空の場合は検証しない
	Leeway   time.Duration
}

// Verifier はセッショントークンを検証し model.Session に変換する。
type Verifier struct {
	config      VerifierConfig
	revocations RevocationStore
	parser      *jwt.Parser
}

// NewVerifier はVerifierを生成する。revocationsがnilの場合は失効確認を行わない。
func NewVerifier(config VerifierConfig, revocations RevocationStore) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(config.Leeway),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}

	return &Verifier{
		config:      config,
		revocations: revocations,
		parser:      jwt.NewParser(opts...),
	}
}

// Verify はトークンを検証し、セッションを返す。
// 失効済みの場合はErrRevoked、検証失敗の場合はErrInvalidTokenをラップして返す。
// 失効ストアの障害は検証失敗と区別するためそのまま返す。
func (v *Verifier) Verify(ctx context.Context, token string) (*model.Session, error) {
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.config.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	session := &model.Session{
		ID:        sessionKey(claims.SessionID, token),
		UserID:    claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}

	if v.revocations != nil {
		revoked, err := v.revocations.IsRevoked(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check session revocation: %w", err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}

	return session, nil
}

// SignOut はセッションを失効させる。
// Verifyは有効期限をLeewayぶん超えても受け付けるため、失効もその時刻まで保持する。
func (v *Verifier) SignOut(ctx context.Context, session *model.Session) error {
	if session == nil {
		return nil
	}
	if v.revocations == nil {
		return fmt.Errorf("no revocation store configured")
	}
	if err := v.revocations.Revoke(ctx, session.ID, session.ExpiresAt.Add(v.config.Leeway)); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// sessionKey は失効リストのキーを決める。
// session_idクレームがない場合はトークン自体のハッシュを使う。
func sessionKey(sessionID, token string) string {
	if sessionID != "" {
		return sessionID
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// SignToken は開発・テスト用にIdP互換のトークンを発行する。
func SignToken(config VerifierConfig, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{config.Audience}
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(config.Secret)
}
