package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenMalformed = errors.New("malformed download token")
	ErrTokenSignature = errors.New("invalid download token signature")
	ErrTokenExpired   = errors.New("download token expired")
)

// Ticket is the payload carried by a signed download token.
type Ticket struct {
	JobID     string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates HMAC download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token of the form job.expiry.path.signature.
func (s *SignedURLSigner) Sign(jobID, relPath string) (string, Ticket, error) {
	if jobID == "" || relPath == "" {
		return "", Ticket{}, fmt.Errorf("job id and path required")
	}
	if len(s.secret) == 0 {
		return "", Ticket{}, fmt.Errorf("signing secret missing")
	}
	ticket := Ticket{JobID: jobID, Path: relPath, ExpiresAt: s.now().Add(s.ttl).Truncate(time.Second)}
	exp := strconv.FormatInt(ticket.ExpiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	token := strings.Join([]string{jobID, exp, encodedPath, s.mac(jobID, exp, encodedPath)}, ".")
	return token, ticket, nil
}

// Verify validates token and returns its ticket.
func (s *SignedURLSigner) Verify(token string) (Ticket, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return Ticket{}, ErrTokenMalformed
	}
	jobID, exp, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.mac(jobID, exp, encodedPath)), []byte(signature)) {
		return Ticket{}, ErrTokenSignature
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return Ticket{}, ErrTokenMalformed
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return Ticket{}, ErrTokenMalformed
	}
	ticket := Ticket{JobID: jobID, Path: string(rawPath), ExpiresAt: time.Unix(expUnix, 0)}
	if s.now().After(ticket.ExpiresAt) {
		return ticket, ErrTokenExpired
	}
	return ticket, nil
}

func (s *SignedURLSigner) mac(jobID, exp, encodedPath string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(jobID + "|" + exp + "|" + encodedPath))
	return hex.EncodeToString(h.Sum(nil))
}
