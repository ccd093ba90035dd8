package service_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/linemk/rewards-wallet/internal/domain/models"
	"github.com/linemk/rewards-wallet/internal/service"
	"github.com/linemk/rewards-wallet/internal/storage"
)

// fakeStore - хранилище в памяти. Один мьютекс на все вызовы повторяет
// блокировку строки пользователя на время всей операции.
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]*models.User
	txs       []*models.Transaction
	referrals []models.Referral
	nextID    int64
	failWith  error
}

var (
	_ storage.UserStorage        = (*fakeStore)(nil)
	_ storage.LedgerStorage      = (*fakeStore)(nil)
	_ storage.TransactionStorage = (*fakeStore)(nil)
	_ storage.ReferralStorage    = (*fakeStore)(nil)
	_ storage.StatsStorage       = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*models.User)}
}

func (f *fakeStore) addUser(userID string, isAdmin bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID] = &models.User{UserID: userID, IsAdmin: isAdmin, ReferralCode: userID, CreatedAt: time.Now()}
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetOrCreateUser(ctx context.Context, userID string) (*models.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.mu.Lock()
	if _, ok := f.users[userID]; !ok {
		f.users[userID] = &models.User{UserID: userID, ReferralCode: userID, CreatedAt: time.Now()}
	}
	f.mu.Unlock()
	return f.GetUserByID(ctx, userID)
}

func (f *fakeStore) UpsertTelegramUser(ctx context.Context, user *models.User) (*models.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.mu.Lock()
	u, ok := f.users[user.UserID]
	if !ok {
		u = &models.User{UserID: user.UserID, ReferralCode: user.UserID, CreatedAt: time.Now()}
		f.users[user.UserID] = u
	}
	u.TelegramID = user.TelegramID
	u.FirstName = user.FirstName
	u.LastName = user.LastName
	u.Username = user.Username
	u.PhotoURL = user.PhotoURL
	u.IsAdmin = user.IsAdmin
	u.UpdatedAt = time.Now()
	f.mu.Unlock()
	return f.GetUserByID(ctx, user.UserID)
}

func (f *fakeStore) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.users))
	for id := range f.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := []*models.User{}
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		cp := *f.users[ids[i]]
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) CountUsers(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), nil
}

func (f *fakeStore) ApplyLedgerOperation(ctx context.Context, e storage.LedgerEntry) (*storage.LedgerResult, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if e.Delta.IsZero() {
		return nil, storage.ErrZeroDelta
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[e.UserID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	if e.IdempotencyKey != nil {
		for _, tx := range f.txs {
			if tx.UserID == e.UserID && tx.IdempotencyKey != nil && *tx.IdempotencyKey == *e.IdempotencyKey {
				if tx.Type != e.Type || !tx.Amount.Equal(e.Delta.Abs()) {
					return nil, storage.ErrIdempotencyMismatch
				}
				return &storage.LedgerResult{NewBalance: u.Balance, Transaction: tx, Replayed: true}, nil
			}
		}
	}

	if e.OncePerUser {
		for _, tx := range f.txs {
			if tx.UserID == e.UserID && tx.Type == e.Type && tx.GrantedBy == nil {
				return nil, storage.ErrAlreadyGranted
			}
		}
	}

	if e.Referral != nil {
		if _, ok := f.users[e.Referral.ReferredID]; !ok {
			return nil, storage.ErrReferredNotFound
		}
		if e.Referral.OncePerPair {
			for _, r := range f.referrals {
				if r.ReferrerID == e.UserID && r.ReferredID == e.Referral.ReferredID {
					return nil, storage.ErrAlreadyGranted
				}
			}
		}
	}

	if e.Delta.IsNegative() && u.Balance.Add(e.Delta).IsNegative() {
		return nil, storage.ErrInsufficientFunds
	}

	u.Balance = u.Balance.Add(e.Delta)
	switch e.Accumulator {
	case storage.AccumulatorCard:
		u.CardEarnings = u.CardEarnings.Add(e.Delta.Abs())
	case storage.AccumulatorReferral:
		u.ReferralEarnings = u.ReferralEarnings.Add(e.Delta.Abs())
	}

	tx := f.appendTx(e.UserID, e.Type, e.Delta.Abs(), e.Description, e.IdempotencyKey)
	tx.Phone, tx.Bank, tx.GrantedBy = e.Phone, e.Bank, e.GrantedBy

	if e.Referral != nil {
		f.referrals = append(f.referrals, models.Referral{
			ReferrerID: e.UserID,
			ReferredID: e.Referral.ReferredID,
			Status:     models.ReferralStatusCompleted,
		})
	}
	return &storage.LedgerResult{NewBalance: u.Balance, Transaction: tx}, nil
}

func (f *fakeStore) SetBalance(ctx context.Context, userID string, newBalance decimal.Decimal, description string, grantedBy *string) (*storage.LedgerResult, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	diff := newBalance.Sub(u.Balance)
	if diff.IsZero() {
		return &storage.LedgerResult{NewBalance: u.Balance}, nil
	}
	txType := models.TxAdjustmentCredit
	if diff.IsNegative() {
		txType = models.TxAdjustmentDebit
	}
	u.Balance = newBalance
	tx := f.appendTx(userID, txType, diff.Abs(), description, nil)
	tx.GrantedBy = grantedBy
	return &storage.LedgerResult{NewBalance: newBalance, Transaction: tx}, nil
}

func (f *fakeStore) appendTx(userID, txType string, amount decimal.Decimal, description string, key *string) *models.Transaction {
	f.nextID++
	tx := &models.Transaction{
		ID:             f.nextID,
		UserID:         userID,
		Type:           txType,
		Amount:         amount,
		Status:         models.TxStatusCompleted,
		Description:    description,
		IdempotencyKey: key,
		CreatedAt:      time.Now(),
	}
	f.txs = append(f.txs, tx)
	return tx
}

func (f *fakeStore) GetTransactionsByUserID(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Transaction{}
	for i := len(f.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if f.txs[i].UserID == userID {
			out = append(out, f.txs[i])
		}
	}
	return out, nil
}

func (f *fakeStore) ListTransactions(ctx context.Context, limit, offset int) ([]*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Transaction{}
	for i := len(f.txs) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.txs[i])
	}
	return out, nil
}

func (f *fakeStore) CountTransactions(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.txs), nil
}

func (f *fakeStore) CountReferrals(ctx context.Context, referrerID, status string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.referrals {
		if r.ReferrerID == referrerID && r.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) GetStats(ctx context.Context) (*models.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.Stats{TotalUsers: len(f.users), TotalReferrals: len(f.referrals)}
	for _, u := range f.users {
		stats.TotalBalance = stats.TotalBalance.Add(u.Balance)
	}
	for _, tx := range f.txs {
		switch tx.Type {
		case models.TxWithdraw:
			stats.TotalWithdrawals++
		case models.TxTopUp:
			stats.TotalTopups++
		}
	}
	return stats, nil
}

// userTxs - все записи пользователя в порядке создания
func (f *fakeStore) userTxs(userID string) []*models.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Transaction
	for _, tx := range f.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out
}

// requireLedgerConsistent проверяет, что баланс и накопления равны сумме журнала
func requireLedgerConsistent(t *testing.T, f *fakeStore, userID string) {
	t.Helper()
	u, err := f.GetUserByID(context.Background(), userID)
	require.NoError(t, err)

	sum, card, referral := decimal.Zero, decimal.Zero, decimal.Zero
	for _, tx := range f.userTxs(userID) {
		sum = sum.Add(tx.SignedAmount())
		switch tx.Type {
		case models.TxCardBonus:
			card = card.Add(tx.Amount)
		case models.TxReferralBonus:
			referral = referral.Add(tx.Amount)
		}
	}
	require.True(t, u.Balance.Equal(sum), "balance %s != ledger sum %s", u.Balance, sum)
	require.True(t, u.CardEarnings.Equal(card), "card earnings %s != %s", u.CardEarnings, card)
	require.True(t, u.ReferralEarnings.Equal(referral), "referral earnings %s != %s", u.ReferralEarnings, referral)
	require.False(t, u.Balance.IsNegative())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type env struct {
	store  *fakeStore
	gate   *service.AccessGate
	ledger *service.LedgerService
}

func newEnv(policy service.BonusPolicy) *env {
	store := newFakeStore()
	log := discardLogger()
	gate := service.NewAccessGate(log, store)
	return &env{
		store:  store,
		gate:   gate,
		ledger: service.NewLedgerService(log, store, store, gate, policy),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
