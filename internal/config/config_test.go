package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("WEBHOOK_HMAC_KEY", "hook-secret")
	t.Setenv("BOT_API_KEY", "bot-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, ProviderMock, cfg.Provider)
	assert.Equal(t, 30*time.Minute, cfg.DraftTTL)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, int64(1_000_000), cfg.MinDeposit)
	assert.Equal(t, int64(1_000_000), cfg.MinWithdrawal)
	assert.Zero(t, cfg.MinListingPrice)
	assert.Empty(t, cfg.AdminIDs)
	assert.True(t, cfg.AutoMigrate)
}

func TestLoad_ParsesListsAndAmounts(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_IDS", "1396514552, 42")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MARKET_MIN_LISTING_PRICE", "2,5")
	t.Setenv("DRAFT_TTL", "10m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int64{1396514552, 42}, cfg.AdminIDs)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, int64(2_500_000), cfg.MinListingPrice)
	assert.Equal(t, 10*time.Minute, cfg.DraftTTL)
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"short secret", map[string]string{"JWT_SECRET": "short"}, "at least 32"},
		{"missing webhook key", map[string]string{"WEBHOOK_HMAC_KEY": ""}, "WEBHOOK_HMAC_KEY"},
		{"bad admin id", map[string]string{"ADMIN_IDS": "1,abc"}, "ADMIN_IDS"},
		{"bad duration", map[string]string{"DRAFT_TTL": "soon"}, "DRAFT_TTL"},
		{"bad amount", map[string]string{"MIN_DEPOSIT": "ten"}, "MIN_DEPOSIT"},
		{"unknown provider", map[string]string{"PROVIDER": "paypal"}, "PROVIDER"},
		{"cryptopay without token", map[string]string{"PROVIDER": "cryptopay"}, "CRYPTO_PAY_TOKEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
