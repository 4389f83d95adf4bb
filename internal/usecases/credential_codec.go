package usecases

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTCredentialCodec round-trips a credential pair as HS256 tokens against a
// fixed shared secret. The contract is inherited from the original system and
// kept behind interfaces.CredentialCodec so a real key-management backend can
// replace it without touching callers. It is encoding, not encryption.
type JWTCredentialCodec struct {
	secret []byte
}

func NewJWTCredentialCodec(secret string) *JWTCredentialCodec {
	return &JWTCredentialCodec{secret: []byte(secret)}
}

func (c *JWTCredentialCodec) EncodeCredential(apiID, apiHash string) (string, string, error) {
	issuedAt := time.Now().Unix()
	idToken, err := c.sign(apiID, "api_id", issuedAt)
	if err != nil {
		return "", "", err
	}
	hashToken, err := c.sign(apiHash, "api_hash", issuedAt)
	if err != nil {
		return "", "", err
	}
	return idToken, hashToken, nil
}

func (c *JWTCredentialCodec) DecodeCredential(idToken, hashToken string) (string, string, error) {
	apiID, err := c.parse(idToken, "api_id")
	if err != nil {
		return "", "", err
	}
	apiHash, err := c.parse(hashToken, "api_hash")
	if err != nil {
		return "", "", err
	}
	return apiID, apiHash, nil
}

func (c *JWTCredentialCodec) sign(data, kind string, issuedAt int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"data": data,
		"type": kind,
		"iat":  issuedAt,
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential token: %w", err)
	}
	return signed, nil
}

func (c *JWTCredentialCodec) parse(tokenString, kind string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid credential token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid credential claims")
	}
	if claims["type"] != kind {
		return "", fmt.Errorf("credential token type mismatch: want %s", kind)
	}
	data, ok := claims["data"].(string)
	if !ok {
		return "", errors.New("credential token missing data")
	}
	return data, nil
}
