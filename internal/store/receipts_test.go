package store_test

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	saleAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	buyer    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func openMemory(t *testing.T) *store.ReceiptStore {
	t.Helper()
	s, err := store.OpenReceiptStoreDSN(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func receipt(n int64, kind sale.TxKind, submitted time.Time) sale.Receipt {
	return sale.Receipt{
		ChainID: 11155111,
		Sale:    saleAddr,
		Account: buyer,
		TransactionRecord: sale.TransactionRecord{
			Kind:      kind,
			Hash:      common.BigToHash(big.NewInt(n)),
			Amount:    decimal.RequireFromString("5.25"),
			Submitted: submitted,
		},
	}
}

func TestReceiptStoreRecordAndGet(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	now := time.UnixMilli(time.Now().UnixMilli())
	r := receipt(1, sale.TxPurchase, now)

	require.NoError(t, s.Record(ctx, r))

	got, err := s.Get(ctx, r.ChainID, r.Hash)
	require.NoError(t, err)
	assert.Equal(t, r.Hash, got.Hash)
	assert.Equal(t, sale.TxPurchase, got.Kind)
	assert.Equal(t, saleAddr, got.Sale)
	assert.Equal(t, buyer, got.Account)
	assert.Equal(t, "5.25", got.Amount.String())
	assert.False(t, got.Confirmed)
	assert.True(t, now.Equal(got.Submitted))
}

func TestReceiptStoreUpsertUpdatesStatus(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	r := receipt(1, sale.TxApproval, time.Now())
	require.NoError(t, s.Record(ctx, r))

	r.Confirmed = true
	require.NoError(t, s.Record(ctx, r))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Confirmed)
	assert.False(t, all[0].Reverted)
}

func TestReceiptStoreReverted(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	r := receipt(2, sale.TxPurchase, time.Now())
	r.Reverted = true
	require.NoError(t, s.Record(ctx, r))

	got, err := s.Get(ctx, r.ChainID, r.Hash)
	require.NoError(t, err)
	assert.True(t, got.Reverted)
	assert.False(t, got.Confirmed)
}

func TestReceiptStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, s.Record(ctx, receipt(i, sale.TxPurchase, base.Add(time.Duration(i)*time.Minute))))
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, common.BigToHash(big.NewInt(3)), all[0].Hash)
	assert.Equal(t, common.BigToHash(big.NewInt(1)), all[2].Hash)

	two, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestReceiptStoreSameHashOtherChain(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	r := receipt(1, sale.TxPurchase, time.Now())
	require.NoError(t, s.Record(ctx, r))
	r.ChainID = 1
	require.NoError(t, s.Record(ctx, r))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestReceiptStoreGetNotFound(t *testing.T) {
	_, err := openMemory(t).Get(context.Background(), 1, common.Hash{1})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReceiptStoreRequiresHash(t *testing.T) {
	r := receipt(1, sale.TxPurchase, time.Now())
	r.Hash = common.Hash{}
	assert.Error(t, openMemory(t).Record(context.Background(), r))
}

func TestReceiptStoreOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := store.OpenReceiptStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), receipt(1, sale.TxPurchase, time.Now())))
	require.NoError(t, s.Close())

	s, err = store.OpenReceiptStore(dir)
	require.NoError(t, err)
	defer s.Close()
	all, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.FileExists(t, filepath.Join(dir, "receipts.db"))
}

func TestReceiptStoreIsRecorder(t *testing.T) {
	var _ sale.Recorder = openMemory(t)
}
