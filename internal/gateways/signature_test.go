package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign_KnownVector(t *testing.T) {
	sig := Sign("secret", "order_abc", "pay_xyz")
	assert.Len(t, sig, 64)
	assert.Equal(t, strings.ToLower(sig), sig)
	assert.Equal(t, sig, Sign("secret", "order_abc", "pay_xyz"), "deterministic")
	assert.NotEqual(t, sig, Sign("other", "order_abc", "pay_xyz"))
}

func TestVerifySignature(t *testing.T) {
	valid := Sign("secret", "order_abc", "pay_xyz")

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		want      bool
	}{
		{"valid", "order_abc", "pay_xyz", valid, true},
		{"wrong payment", "order_abc", "pay_other", valid, false},
		{"wrong order", "order_other", "pay_xyz", valid, false},
		{"uppercase hex", "order_abc", "pay_xyz", strings.ToUpper(valid), false},
		{"truncated", "order_abc", "pay_xyz", valid[:10], false},
		{"not hex", "order_abc", "pay_xyz", "zz-not-a-signature", false},
		{"empty", "order_abc", "pay_xyz", "", false},
		{"boundary shift", "order_ab", "c|pay_xyz", valid, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := VerifySignature("secret", tt.orderID, tt.paymentID, tt.signature)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestVerifySignature_NotConfigured(t *testing.T) {
	_, err := VerifySignature("", "order_abc", "pay_xyz", "sig")
	assert.ErrorIs(t, err, ErrGatewayNotConfigured)
}
