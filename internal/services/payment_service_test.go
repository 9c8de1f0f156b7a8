package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nimasrn/credit-gateway/internal/catalog"
	"github.com/nimasrn/credit-gateway/internal/idempotency"
	"github.com/nimasrn/credit-gateway/internal/model"
	"github.com/nimasrn/credit-gateway/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type paymentFixture struct {
	users   *MockUserRepository
	txns    *MockTransactionRepository
	tx      *MockTxManager
	gateway *MockPaymentGateway
	service *PaymentService
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		users:   new(MockUserRepository),
		txns:    new(MockTransactionRepository),
		tx:      new(MockTxManager),
		gateway: new(MockPaymentGateway),
	}
	f.service = NewPaymentService(f.users, f.txns, f.tx, f.gateway, catalog.Default(), PaymentConfig{KeyID: "rzp_test"})
	return f
}

func (f *paymentFixture) assertExpectations(t *testing.T) {
	f.users.AssertExpectations(t)
	f.txns.AssertExpectations(t)
	f.tx.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
}

func pendingTxn() *model.Transaction {
	return &model.Transaction{
		ID:      "txn-1",
		UserID:  "user-1",
		Type:    model.TransactionTypePurchase,
		Amount:  60,
		OrderID: strPtr("order_abc"),
		Status:  model.TransactionStatusPending,
	}
}

func TestPaymentService_CreateOrder(t *testing.T) {
	t.Run("successful order", func(t *testing.T) {
		f := newPaymentFixture()
		ctx := context.Background()

		f.users.On("FindByID", ctx, "user-1").Return(&model.User{ID: "user-1", CreditBalance: 20}, nil)
		f.txns.On("Create", ctx, mock.MatchedBy(func(txn *model.Transaction) bool {
			return txn.UserID == "user-1" &&
				txn.Type == model.TransactionTypePurchase &&
				txn.Status == model.TransactionStatusPending &&
				txn.Amount == 60 &&
				txn.PaymentAmount != nil && *txn.PaymentAmount == 99900 &&
				txn.Currency == "INR" &&
				txn.PackageID == "pkg_standard" &&
				txn.OrderID == nil && txn.PaymentID == nil
		})).Return(&model.Transaction{
			ID:     "0f8fad5b-d9cb-469f-a165-70867728950e",
			UserID: "user-1",
			Type:   model.TransactionTypePurchase,
			Amount: 60,
			Status: model.TransactionStatusPending,
		}, nil)
		f.gateway.On("CreateOrder", ctx, int64(99900), "INR", "rcpt_0f8fad5bd9cb469fa16570867728950e").
			Return("order_abc", nil)
		f.txns.On("Update", ctx, mock.MatchedBy(func(txn *model.Transaction) bool {
			return txn.ID == "0f8fad5b-d9cb-469f-a165-70867728950e" &&
				txn.OrderID != nil && *txn.OrderID == "order_abc" &&
				txn.Status == model.TransactionStatusPending
		})).Return(&model.Transaction{}, nil)

		res, err := f.service.CreateOrder(ctx, "user-1", "pkg_standard")
		require.NoError(t, err)
		assert.Equal(t, "order_abc", res.OrderID)
		assert.Equal(t, int64(99900), res.Amount)
		assert.Equal(t, "INR", res.Currency)
		assert.Equal(t, int64(60), res.Credits)
		assert.Equal(t, "rzp_test", res.KeyID)
		f.assertExpectations(t)
	})

	t.Run("unknown package writes nothing", func(t *testing.T) {
		f := newPaymentFixture()

		_, err := f.service.CreateOrder(context.Background(), "user-1", "pkg_gold")
		assert.ErrorIs(t, err, ErrUnknownPackage)
		assert.ErrorIs(t, err, ErrValidation)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "package_id", verr.Field)

		f.txns.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		f.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newPaymentFixture()

		_, err := f.service.CreateOrder(context.Background(), "", "pkg_standard")
		assert.ErrorIs(t, err, ErrValidation)
		_, err = f.service.CreateOrder(context.Background(), "user-1", "  ")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newPaymentFixture()
		ctx := context.Background()

		f.users.On("FindByID", ctx, "ghost").Return(nil, repository.ErrUserNotFound)

		_, err := f.service.CreateOrder(ctx, "ghost", "pkg_standard")
		assert.ErrorIs(t, err, ErrUserNotFound)
		f.txns.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("gateway failure leaves pending transaction", func(t *testing.T) {
		f := newPaymentFixture()
		ctx := context.Background()

		f.users.On("FindByID", ctx, "user-1").Return(&model.User{ID: "user-1", CreditBalance: 20}, nil)
		f.txns.On("Create", ctx, mock.Anything).Return(&model.Transaction{ID: "txn-1", Status: model.TransactionStatusPending}, nil)
		f.gateway.On("CreateOrder", ctx, int64(99900), "INR", "rcpt_txn1").Return("", errors.New("connection refused"))

		_, err := f.service.CreateOrder(ctx, "user-1", "pkg_standard")
		assert.ErrorIs(t, err, ErrGatewayUnavailable)

		f.txns.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})
}

func TestReceiptFor(t *testing.T) {
	assert.Equal(t, "rcpt_abc", receiptFor("abc"))
	long := receiptFor(strings.Repeat("x", 64))
	assert.Len(t, long, maxReceiptLength)
	assert.True(t, strings.HasPrefix(long, "rcpt_"))
}

func TestPaymentService_VerifyPayment_Success(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()
	req := model.VerifyPaymentRequest{OrderID: "order_abc", PaymentID: "pay_xyz", Signature: "sig"}

	f.txns.On("FindByOrderID", ctx, "order_abc").Return(pendingTxn(), nil)
	f.gateway.On("VerifySignature", "order_abc", "pay_xyz", "sig").Return(true, nil)
	f.tx.On("WithinTransaction", ctx, mock.Anything).Return(nil)
	f.txns.On("CompletePending", ctx, "txn-1", "pay_xyz").Return(true, nil)
	f.users.On("FindByIDForUpdate", ctx, "user-1").Return(&model.User{ID: "user-1", CreditBalance: 20}, nil)
	f.users.On("Update", ctx, mock.MatchedBy(func(u *model.User) bool {
		return u.ID == "user-1" && u.CreditBalance == 80
	})).Return(&model.User{ID: "user-1", CreditBalance: 80}, nil)

	res, err := f.service.VerifyPayment(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(80), res.NewBalance)
	assert.False(t, res.AlreadySettled)
	f.assertExpectations(t)
}

func TestPaymentService_VerifyPayment_AlreadyCompleted(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	done := pendingTxn().MarkCompleted("pay_xyz")
	f.txns.On("FindByOrderID", ctx, "order_abc").Return(&done, nil)
	f.users.On("FindByID", ctx, "user-1").Return(&model.User{ID: "user-1", CreditBalance: 80}, nil)

	res, err := f.service.VerifyPayment(ctx, model.VerifyPaymentRequest{OrderID: "order_abc", PaymentID: "pay_xyz", Signature: "anything"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.AlreadySettled)
	assert.Equal(t, int64(80), res.NewBalance)

	f.gateway.AssertNotCalled(t, "VerifySignature", mock.Anything, mock.Anything, mock.Anything)
	f.txns.AssertNotCalled(t, "CompletePending", mock.Anything, mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestPaymentService_VerifyPayment_AlreadyFailed(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	failed := pendingTxn().MarkFailed()
	f.txns.On("FindByOrderID", ctx, "order_abc").Return(&failed, nil)

	_, err := f.service.VerifyPayment(ctx, model.VerifyPaymentRequest{OrderID: "order_abc", PaymentID: "pay_xyz", Signature: "sig"})
	assert.ErrorIs(t, err, ErrTransactionClosed)
	f.gateway.AssertNotCalled(t, "VerifySignature", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_VerifyPayment_InvalidSignature(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.txns.On("FindByOrderID", ctx, "order_abc").Return(pendingTxn(), nil)
	f.gateway.On("VerifySignature", "order_abc", "pay_xyz", "bad").Return(false, nil)
	f.tx.On("WithinTransaction", ctx, mock.Anything).Return(nil)
	f.txns.On("FailPending", ctx, "txn-1").Return(true, nil)

	_, err := f.service.VerifyPayment(ctx, model.VerifyPaymentRequest{OrderID: "order_abc", PaymentID: "pay_xyz", Signature: "bad"})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	f.users.AssertNotCalled(t, "FindByIDForUpdate", mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestPaymentService_VerifyPayment_TransactionNotFound(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.txns.On("FindByOrderID", ctx, "order_missing").Return(nil, repository.ErrTransactionNotFound)

	_, err := f.service.VerifyPayment(ctx, model.VerifyPaymentRequest{OrderID: "order_missing", PaymentID: "pay_xyz", Signature: "sig"})
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	f.gateway.AssertNotCalled(t, "VerifySignature", mock.Anything, mock.Anything, mock.Anything)
	f.tx.AssertNotCalled(t, "WithinTransaction", mock.Anything, mock.Anything)
}

func TestPaymentService_VerifyPayment_Validation(t *testing.T) {
	f := newPaymentFixture()

	for _, req := range []model.VerifyPaymentRequest{
		{PaymentID: "p", Signature: "s"},
		{OrderID: "o", Signature: "s"},
		{OrderID: "o", PaymentID: "p", Signature: " "},
	} {
		_, err := f.service.VerifyPayment(context.Background(), req)
		assert.ErrorIs(t, err, ErrValidation)
	}
	f.txns.AssertNotCalled(t, "FindByOrderID", mock.Anything, mock.Anything)
}

func TestPaymentService_VerifyPayment_UserMissingRollsBack(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.txns.On("FindByOrderID", ctx, "order_abc").Return(pendingTxn(), nil)
	f.gateway.On("VerifySignature", "order_abc", "pay_xyz", "sig").Return(true, nil)
	f.tx.On("WithinTransaction", ctx, mock.Anything).Return(nil)
	f.txns.On("CompletePending", ctx, "txn-1", "pay_xyz").Return(true, nil)
	f.users.On("FindByIDForUpdate", ctx, "user-1").Return(nil, repository.ErrUserNotFound)

	_, err := f.service.VerifyPayment(ctx, model.VerifyPaymentRequest{OrderID: "order_abc", PaymentID: "pay_xyz", Signature: "sig"})
	assert.ErrorIs(t, err, ErrUserNotFound)
	f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestPaymentService_VerifyPayment_LostRace(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	done := pendingTxn().MarkCompleted("pay_xyz")
	f.txns.On("FindByOrderID", ctx, "order_abc").Return(pendingTxn(), nil).Once()
	f.txns.On("FindByOrderID", ctx, "order_abc").Return(&done, nil).Once()
	f.gateway.On("VerifySignature", "order_abc", "pay_xyz", "sig").Return(true, nil)
	f.tx.On("WithinTransaction", ctx, mock.Anything).Return(nil)
	f.txns.On("CompletePending", ctx, "txn-1", "pay_xyz").Return(false, nil)
	f.users.On("FindByID", ctx, "user-1").Return(&model.User{ID: "user-1", CreditBalance: 80}, nil)

	res, err := f.service.VerifyPayment(ctx, model.VerifyPaymentRequest{OrderID: "order_abc", PaymentID: "pay_xyz", Signature: "sig"})
	require.NoError(t, err)
	assert.True(t, res.AlreadySettled)
	assert.Equal(t, int64(80), res.NewBalance)
	f.users.AssertNotCalled(t, "FindByIDForUpdate", mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestPaymentService_VerifyPayment_GuardContention(t *testing.T) {
	f := newPaymentFixture()
	guard := new(MockSettlementGuard)
	f.service.WithSettlementGuard(guard)
	ctx := context.Background()

	f.txns.On("FindByOrderID", ctx, "order_abc").Return(pendingTxn(), nil)
	guard.On("Acquire", ctx, "order_abc").Return(nil, idempotency.ErrLeaseHeld)

	_, err := f.service.VerifyPayment(ctx, model.VerifyPaymentRequest{OrderID: "order_abc", PaymentID: "pay_xyz", Signature: "sig"})
	assert.ErrorIs(t, err, ErrSettlementInProgress)
	f.gateway.AssertNotCalled(t, "VerifySignature", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_VerifyPayment_GuardDownFallsThrough(t *testing.T) {
	f := newPaymentFixture()
	guard := new(MockSettlementGuard)
	f.service.WithSettlementGuard(guard)
	ctx := context.Background()

	f.txns.On("FindByOrderID", ctx, "order_abc").Return(pendingTxn(), nil)
	guard.On("Acquire", ctx, "order_abc").Return(nil, idempotency.ErrLockAcquireFailed)
	f.gateway.On("VerifySignature", "order_abc", "pay_xyz", "sig").Return(true, nil)
	f.tx.On("WithinTransaction", ctx, mock.Anything).Return(nil)
	f.txns.On("CompletePending", ctx, "txn-1", "pay_xyz").Return(true, nil)
	f.users.On("FindByIDForUpdate", ctx, "user-1").Return(&model.User{ID: "user-1", CreditBalance: 0}, nil)
	f.users.On("Update", ctx, mock.Anything).Return(&model.User{ID: "user-1", CreditBalance: 60}, nil)

	res, err := f.service.VerifyPayment(ctx, model.VerifyPaymentRequest{OrderID: "order_abc", PaymentID: "pay_xyz", Signature: "sig"})
	require.NoError(t, err)
	assert.Equal(t, int64(60), res.NewBalance)
}

func TestPaymentService_VerifyPayment_SecretMissing(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	f.txns.On("FindByOrderID", ctx, "order_abc").Return(pendingTxn(), nil)
	f.gateway.On("VerifySignature", "order_abc", "pay_xyz", "sig").Return(false, errors.New("payment gateway not configured"))

	_, err := f.service.VerifyPayment(ctx, model.VerifyPaymentRequest{OrderID: "order_abc", PaymentID: "pay_xyz", Signature: "sig"})
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	f.tx.AssertNotCalled(t, "WithinTransaction", mock.Anything, mock.Anything)
}

func TestPaymentService_Packages(t *testing.T) {
	f := newPaymentFixture()
	pkgs := f.service.Packages()
	require.Len(t, pkgs, 4)
	assert.Equal(t, "pkg_starter", pkgs[0].ID)
}
