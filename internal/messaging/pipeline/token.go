package pipeline

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"courier/pkg/platform/sentinel"
)

// NewJobToken mints the HMAC token authorizing one delivery job. The subject
// is the job id; the message id rides along as a claim so the executor can
// load the message without a second collaborator round trip. The scheduler
// shares the signing secret.
func NewJobToken(secret string, jobID string, messageID uuid.UUID, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("job token secret: %w", sentinel.ErrNotConfigured)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":        jobID,
		"message_id": messageID.String(),
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign job token: %w", err)
	}
	return token, nil
}

// parseJobToken validates the token and returns the message id it authorizes
// delivery for. The subject must match the job id the caller presented.
func parseJobToken(secret string, jobID, token string) (uuid.UUID, error) {
	if secret == "" {
		return uuid.Nil, fmt.Errorf("job token secret: %w", sentinel.ErrNotConfigured)
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse job token: %w: %w", sentinel.ErrNotAllowed, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, fmt.Errorf("job token claims: %w", sentinel.ErrNotAllowed)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject != jobID {
		return uuid.Nil, fmt.Errorf("job token subject mismatch: %w", sentinel.ErrNotAllowed)
	}

	raw, _ := claims["message_id"].(string)
	messageID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("job token message id: %w", sentinel.ErrNotAllowed)
	}
	return messageID, nil
}
