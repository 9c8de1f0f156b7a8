package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gateway "github.com/nimasrn/credit-gateway/internal/gateways"
	"github.com/nimasrn/credit-gateway/internal/model"
	"github.com/nimasrn/credit-gateway/internal/repository"
	"github.com/nimasrn/credit-gateway/internal/services"
	xhttp "github.com/nimasrn/credit-gateway/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSignCommand(t *testing.T) {
	out, err := run(t, "sign", "order_1", "pay_1", "--secret", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, gateway.Sign("s3cret", "order_1", "pay_1"), strings.TrimSpace(out))
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "token", "user-1", "--secret", "jwt", "--email", "a@example.com")
	require.NoError(t, err)

	claims, err := xhttp.ParseToken([]byte("jwt"), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
}

func TestPackagesCommand(t *testing.T) {
	t.Run("built-in catalog", func(t *testing.T) {
		out, err := run(t, "packages")
		require.NoError(t, err)
		assert.Contains(t, out, "pkg_standard")
		assert.Contains(t, out, "999.00")
	})

	t.Run("catalog file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "packages.toml")
		content := `
[[package]]
id = "pkg_trial"
name = "Trial"
credits = 5
price_minor = 4900
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		out, err := run(t, "packages", "--file", path)
		require.NoError(t, err)
		assert.Contains(t, out, "pkg_trial")
		assert.Contains(t, out, "49.00")
		assert.NotContains(t, out, "pkg_standard")
	})
}

func TestRefundCommand(t *testing.T) {
	db := repository.NewTestDB(t)
	users := repository.NewUserRepository(db)
	txns := repository.NewTransactionRepository(db)
	ledger := services.NewLedgerService(users, txns, db, services.LedgerConfig{InitialGrant: 20})

	ctx := context.Background()
	_, err := ledger.RegisterUser(ctx, model.RegisterUserRequest{ID: "user-1"})
	require.NoError(t, err)

	prev := openLedger
	openLedger = func() (refunder, func(), error) { return ledger, func() {}, nil }
	t.Cleanup(func() { openLedger = prev })

	t.Run("credits the user", func(t *testing.T) {
		out, err := run(t, "refund", "user-1", "7", "--reason", "generation failed")
		require.NoError(t, err)
		assert.Contains(t, out, "new balance 27")

		history, err := ledger.GetHistory(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, model.TransactionTypeRefund, history[0].Type)
		assert.Equal(t, "generation failed", history[0].Metadata["reason"])
	})

	t.Run("rejects a non-numeric amount", func(t *testing.T) {
		_, err := run(t, "refund", "user-1", "lots", "--reason", "x")
		assert.Error(t, err)
	})

	t.Run("rejects a non-positive amount", func(t *testing.T) {
		_, err := run(t, "refund", "user-1", "0", "--reason", "x")
		assert.ErrorIs(t, err, services.ErrInvalidAmount)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := run(t, "refund", "ghost", "5", "--reason", "x")
		assert.ErrorIs(t, err, services.ErrUserNotFound)
	})
}
