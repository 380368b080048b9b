package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-leads-api/pkg/config"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "teacher-1/screen_abcdef12.png", ObjectKey("teacher-1", "screen.PNG", "abcdef1234567890"))
	assert.Equal(t, "teacher-1/log_abc.jpg", ObjectKey("teacher-1", `C:\calls\log.jpg`, "abc"))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validate("image/png; charset=binary", 10, 100))
	assert.Error(t, validate("text/html", 10, 100))
	assert.Error(t, validate("image/png", 0, 100))
	assert.Error(t, validate("image/png", 101, 100))
}

func TestNewRequiresEnabled(t *testing.T) {
	_, err := New(config.MinIOConfig{})
	assert.Error(t, err)

	store, err := New(config.MinIOConfig{Enabled: true, Endpoint: "localhost:9000", Bucket: "call-evidence", MaxFileSize: 10})
	require.NoError(t, err)
	assert.Error(t, store.Validate("image/png", 11))
}
