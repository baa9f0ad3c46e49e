package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Verification failure reasons returned by TokenSigner.Verify.
const (
	ReasonInvalidFormat = "invalid format"
	ReasonTampered      = "tampered"
	ReasonExpired       = "expired"
)

const tokenPrefix = "transcript_"

// TokenSigner creates and validates HMAC-signed transcript tokens.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Verification is the outcome of a token check.
type Verification struct {
	Valid     bool   `json:"valid"`
	StudentID string `json:"student_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// NewTokenSigner constructs a signer with the provided secret and TTL.
func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = 365 * 24 * time.Hour
	}
	return &TokenSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a token of the form transcript_<id>:<b64url ts>:<b64url hmac>.
func (s *TokenSigner) Generate(studentID string) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	if studentID == "" || strings.Contains(studentID, ":") {
		return "", fmt.Errorf("invalid student id %q", studentID)
	}
	ts := base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(s.now().Unix(), 10)))
	payload := fmt.Sprintf("%s%s:%s", tokenPrefix, studentID, ts)
	return payload + ":" + base64.RawURLEncoding.EncodeToString(s.sign(payload)), nil
}

// Verify checks format, signature, and age. The signature comparison is
// constant-time.
func (s *TokenSigner) Verify(token string) Verification {
	parts := strings.Split(token, ":")
	if len(parts) != 3 || !strings.HasPrefix(parts[0], tokenPrefix) {
		return Verification{Reason: ReasonInvalidFormat}
	}

	studentID := strings.TrimPrefix(parts[0], tokenPrefix)
	if studentID == "" {
		return Verification{Reason: ReasonInvalidFormat}
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Verification{Reason: ReasonInvalidFormat}
	}

	payload := parts[0] + ":" + parts[1]
	if !hmac.Equal(s.sign(payload), signature) {
		return Verification{Reason: ReasonTampered}
	}

	rawTS, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Verification{Reason: ReasonInvalidFormat}
	}
	issued, err := strconv.ParseInt(string(rawTS), 10, 64)
	if err != nil {
		return Verification{Reason: ReasonInvalidFormat}
	}
	if s.now().Sub(time.Unix(issued, 0)) > s.ttl {
		return Verification{Reason: ReasonExpired}
	}

	return Verification{Valid: true, StudentID: studentID}
}

func (s *TokenSigner) sign(payload string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	return mac.Sum(nil)
}
