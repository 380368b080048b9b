package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 20*time.Second, cfg.Calls.MinValidDuration)
	assert.Equal(t, "Computer Technology", cfg.Leads.DefaultDepartment)
	assert.Equal(t, "IN", cfg.Phone.DefaultRegion)
	assert.Equal(t, int64(5*1024*1024), cfg.MinIO.MaxFileSize)
	assert.Equal(t, "leaddesk:changes", cfg.ChangeFeed.Channel)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("CALL_MIN_VALID_DURATION", "10s")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	v.Set("STATS_CACHE_TTL", "bogus")

	cfg := fromViper(v)
	assert.Equal(t, 10*time.Second, cfg.Calls.MinValidDuration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, time.Minute, cfg.Stats.CacheTTL)
}
