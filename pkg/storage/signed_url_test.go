package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, ticket, err := signer.Sign("job-1", "forwarded/job-1.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	parsed, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "job-1", parsed.JobID)
	assert.Equal(t, "forwarded/job-1.csv", parsed.Path)
	assert.True(t, ticket.ExpiresAt.Equal(parsed.ExpiresAt))
}

func TestSignedURLSignerRejects(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Sign("job-1", "forwarded/job-1.csv")
	require.NoError(t, err)

	_, err = NewSignedURLSigner("other", time.Minute).Verify(token)
	assert.ErrorIs(t, err, ErrTokenSignature)

	_, err = signer.Verify(strings.TrimSuffix(token, token[strings.LastIndex(token, "."):]))
	assert.ErrorIs(t, err, ErrTokenMalformed)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	ticket, err := signer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, "job-1", ticket.JobID)
}
