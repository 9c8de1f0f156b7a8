package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RAZORPAY_KEY_ID", "rzp_test_key")

	require.NoError(t, Load(""))
	c := Get()

	assert.Equal(t, "rzp_test_key", c.RazorpayKeyID)
	assert.Equal(t, "INR", c.PaymentCurrency)
	assert.Equal(t, int64(20), c.LedgerInitialGrant)
	assert.Equal(t, 50, c.LedgerHistoryLimit)
	assert.Equal(t, 30*time.Second, c.SettlementLockTTL)
	assert.Equal(t, 5, c.GatewayCircuitBreakerThreshold)
	assert.Equal(t, "/api/v1", c.HttpBaseRequestUrl)
	assert.False(t, c.RedisEnabled())
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "LEDGER_INITIAL_GRANT=0\nLEDGER_HISTORY_LIMIT=200\nRAZORPAY_TIMEOUT=3s\nREDIS_ADDR=localhost:6379\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"LEDGER_INITIAL_GRANT", "LEDGER_HISTORY_LIMIT", "RAZORPAY_TIMEOUT", "REDIS_ADDR"} {
			_ = os.Unsetenv(k)
		}
	})

	require.NoError(t, Load(path))
	c := Get()

	assert.Equal(t, int64(0), c.LedgerInitialGrant)
	assert.Equal(t, 200, c.LedgerHistoryLimit)
	assert.Equal(t, 3*time.Second, c.RazorpayTimeout)
	assert.True(t, c.RedisEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, Load(filepath.Join(t.TempDir(), "nope.env")))
	})

	t.Run("history limit above cap", func(t *testing.T) {
		t.Setenv("LEDGER_HISTORY_LIMIT", "5000")
		assert.ErrorContains(t, Load(""), "LEDGER_HISTORY_LIMIT")
	})

	t.Run("negative grant", func(t *testing.T) {
		t.Setenv("LEDGER_INITIAL_GRANT", "-1")
		assert.ErrorContains(t, Load(""), "LEDGER_INITIAL_GRANT")
	})

	t.Run("bad currency", func(t *testing.T) {
		t.Setenv("PAYMENT_CURRENCY", "RUPEE")
		assert.ErrorContains(t, Load(""), "PAYMENT_CURRENCY")
	})
}
