package broadcast

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/domalend/oracle/internal/chain"
	"github.com/domalend/oracle/internal/domain"
)

type pendingWrite struct {
	token common.Address
	value *big.Int
}

// mockOracle stores values in memory and applies a write once it is "confirmed".
type mockOracle struct {
	mu          sync.Mutex
	values      map[common.Address]*big.Int
	pending     map[common.Hash]pendingWrite
	nonce       uint64
	balance     *big.Int
	readErr     map[common.Address]error
	submitErr   map[common.Address]error
	revert      map[common.Address]bool
	blockWait   bool
	reads       atomic.Int32
	submits     atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newMockOracle() *mockOracle {
	return &mockOracle{
		values:    make(map[common.Address]*big.Int),
		pending:   make(map[common.Hash]pendingWrite),
		balance:   big.NewInt(1e18),
		readErr:   make(map[common.Address]error),
		submitErr: make(map[common.Address]error),
		revert:    make(map[common.Address]bool),
	}
}

func (m *mockOracle) TokenValue(_ context.Context, token common.Address) (*big.Int, error) {
	m.reads.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readErr[token]; err != nil {
		return nil, err
	}
	v, ok := m.values[token]
	if !ok {
		return nil, fmt.Errorf("reading value of %s: %w", token.Hex(), chain.ErrNotSet)
	}
	return new(big.Int).Set(v), nil
}

func (m *mockOracle) SubmitUpdate(_ context.Context, token common.Address, value *big.Int) (*types.Transaction, error) {
	m.submits.Add(1)
	n := m.inFlight.Add(1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.submitErr[token]; err != nil {
		m.inFlight.Add(-1)
		return nil, err
	}
	tx := types.NewTx(&types.LegacyTx{Nonce: m.nonce, To: &token, Value: big.NewInt(0), Gas: 60_000, GasPrice: big.NewInt(1)})
	m.nonce++
	m.pending[tx.Hash()] = pendingWrite{token: token, value: new(big.Int).Set(value)}
	return tx, nil
}

func (m *mockOracle) WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	defer m.inFlight.Add(-1)

	if m.blockWait {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.pending[tx.Hash()]
	delete(m.pending, tx.Hash())

	receipt := &types.Receipt{TxHash: tx.Hash(), BlockNumber: big.NewInt(500), GasUsed: 31_000, Status: types.ReceiptStatusSuccessful}
	if m.revert[w.token] {
		receipt.Status = types.ReceiptStatusFailed
		return receipt, errors.New("transaction reverted")
	}
	m.values[w.token] = w.value
	return receipt, nil
}

func (m *mockOracle) SignerBalance(context.Context) (*big.Int, error) {
	return m.balance, nil
}

func token(n int) string {
	return fmt.Sprintf("0x%040x", n)
}

func update(n int, value string) domain.PriceUpdate {
	return domain.PriceUpdate{TokenAddress: token(n), ValuationFixedPoint: value, Label: fmt.Sprintf("asset%d", n)}
}

func newTestBroadcaster(oracle Oracle) *Broadcaster {
	b := New(oracle, Options{MinPercentChange: 1.0, ConfirmTimeout: time.Second})
	b.sleep = func(context.Context, time.Duration) error { return nil }
	return b
}

func TestBroadcastIdempotent(t *testing.T) {
	oracle := newMockOracle()
	b := newTestBroadcaster(oracle)
	batch := []domain.PriceUpdate{update(1, "11675000000000000000000")}

	first, err := b.Broadcast(context.Background(), batch)
	if err != nil {
		t.Fatalf("first broadcast: %v", err)
	}
	if first.Successful != 1 {
		t.Fatalf("first broadcast = %+v, want 1 successful", first)
	}

	second, err := b.Broadcast(context.Background(), batch)
	if err != nil {
		t.Fatalf("second broadcast: %v", err)
	}
	if second.Skipped != 1 || second.Successful != 0 {
		t.Errorf("second broadcast = %d successful / %d skipped, want 0/1", second.Successful, second.Skipped)
	}
	if got := oracle.submits.Load(); got != 1 {
		t.Errorf("submits = %d, want 1", got)
	}
}

func TestSkipThresholdBoundary(t *testing.T) {
	tests := []struct {
		name     string
		newValue string
		want     domain.UpdateStatus
	}{
		{"exactly one percent up", "10100", domain.UpdateSuccessful},
		{"exactly one percent down", "9900", domain.UpdateSuccessful},
		{"just below one percent", "10099", domain.UpdateSkipped},
		{"just below one percent down", "9901", domain.UpdateSkipped},
		{"unchanged", "10000", domain.UpdateSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := newMockOracle()
			oracle.values[common.HexToAddress(token(1))] = big.NewInt(10000)
			b := newTestBroadcaster(oracle)

			out := b.UpdatePrice(context.Background(), update(1, tt.newValue))
			if out.Status != tt.want {
				t.Errorf("status = %s (pct %v), want %s", out.Status, out.PercentChange, tt.want)
			}
		})
	}
}

func TestUnsetValueCountsAsZero(t *testing.T) {
	oracle := newMockOracle()
	b := newTestBroadcaster(oracle)

	out := b.UpdatePrice(context.Background(), update(1, "5"))
	if out.Status != domain.UpdateSuccessful {
		t.Fatalf("status = %s (%s), want successful", out.Status, out.Error)
	}
	if out.OldValue != "0" || out.PercentChange != 100 {
		t.Errorf("old = %s pct = %v, want 0 / 100", out.OldValue, out.PercentChange)
	}
	if out.BlockNumber != 500 || out.GasUsed != 31_000 || out.TxHash == "" {
		t.Errorf("receipt details = block %d gas %d tx %q", out.BlockNumber, out.GasUsed, out.TxHash)
	}
}

func TestZeroToZeroSkipped(t *testing.T) {
	oracle := newMockOracle()
	out := newTestBroadcaster(oracle).UpdatePrice(context.Background(), update(1, "0"))
	if out.Status != domain.UpdateSkipped {
		t.Errorf("status = %s, want skipped", out.Status)
	}
	if oracle.submits.Load() != 0 {
		t.Error("expected no submission")
	}
}

func TestBatchIsolation(t *testing.T) {
	oracle := newMockOracle()
	oracle.values[common.HexToAddress(token(4))] = big.NewInt(1000)
	oracle.submitErr[common.HexToAddress(token(2))] = errors.New("nonce too low")
	oracle.revert[common.HexToAddress(token(3))] = true
	oracle.readErr[common.HexToAddress(token(5))] = errors.New("rpc timeout")
	b := newTestBroadcaster(oracle)

	batch := []domain.PriceUpdate{
		update(1, "100"),
		update(2, "200"),
		update(3, "300"),
		update(4, "1000"),
		update(5, "500"),
		{TokenAddress: "0x1234", ValuationFixedPoint: "1"},
		update(7, "1.5"),
		update(8, "800"),
	}

	summary, err := b.Broadcast(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Total() != len(batch) || len(summary.Outcomes) != len(batch) {
		t.Fatalf("total = %d outcomes = %d, want %d", summary.Total(), len(summary.Outcomes), len(batch))
	}
	if summary.Successful != 2 || summary.Skipped != 1 || summary.Failed != 5 {
		t.Errorf("counts = %d/%d/%d, want 2/1/5", summary.Successful, summary.Skipped, summary.Failed)
	}

	want := []domain.UpdateStatus{
		domain.UpdateSuccessful, domain.UpdateFailed, domain.UpdateFailed, domain.UpdateSkipped,
		domain.UpdateFailed, domain.UpdateFailed, domain.UpdateFailed, domain.UpdateSuccessful,
	}
	for i, o := range summary.Outcomes {
		if o.TokenAddress != batch[i].TokenAddress {
			t.Errorf("outcome %d token = %s, want %s (order must be preserved)", i, o.TokenAddress, batch[i].TokenAddress)
		}
		if o.Status != want[i] {
			t.Errorf("outcome %d status = %s, want %s (%s)", i, o.Status, want[i], o.Error)
		}
	}

	if summary.Outcomes[2].TxHash == "" {
		t.Error("reverted item should record its tx hash")
	}
	if !strings.Contains(summary.Outcomes[1].Error, "nonce too low") {
		t.Errorf("submit error = %q", summary.Outcomes[1].Error)
	}
}

func TestInvalidAddressNeverReachesNetwork(t *testing.T) {
	oracle := newMockOracle()
	out := newTestBroadcaster(oracle).UpdatePrice(context.Background(),
		domain.PriceUpdate{TokenAddress: "not-an-address", ValuationFixedPoint: "1"})

	if out.Status != domain.UpdateFailed {
		t.Errorf("status = %s, want failed", out.Status)
	}
	if !strings.Contains(out.Error, domain.ErrInvalidAddress.Error()) {
		t.Errorf("error = %q, want invalid address", out.Error)
	}
	if oracle.reads.Load() != 0 || oracle.submits.Load() != 0 {
		t.Error("expected no network calls")
	}
}

func TestZeroBalanceSkipsBatch(t *testing.T) {
	oracle := newMockOracle()
	oracle.balance = big.NewInt(0)

	summary, err := newTestBroadcaster(oracle).Broadcast(context.Background(), []domain.PriceUpdate{update(1, "1")})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("error = %v, want ErrInsufficientFunds", err)
	}
	if summary.Total() != 0 || oracle.reads.Load() != 0 {
		t.Errorf("expected no items attempted, got %d (reads %d)", summary.Total(), oracle.reads.Load())
	}
}

func TestConfirmTimeout(t *testing.T) {
	oracle := newMockOracle()
	oracle.blockWait = true
	b := New(oracle, Options{MinPercentChange: 1, ConfirmTimeout: 20 * time.Millisecond})

	out := b.UpdatePrice(context.Background(), update(1, "100"))
	if out.Status != domain.UpdateFailed {
		t.Errorf("status = %s, want failed", out.Status)
	}
	if out.TxHash == "" {
		t.Error("timed-out item should record its tx hash")
	}
}

func TestCanceledContextFailsRemainingItems(t *testing.T) {
	oracle := newMockOracle()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newTestBroadcaster(oracle).Broadcast(ctx, []domain.PriceUpdate{update(1, "1"), update(2, "2")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Failed != 2 {
		t.Errorf("failed = %d, want 2", summary.Failed)
	}
	if oracle.submits.Load() != 0 {
		t.Error("expected no submissions after cancellation")
	}
}

func TestDelayOnlyAfterSubmittedItems(t *testing.T) {
	oracle := newMockOracle()
	oracle.values[common.HexToAddress(token(1))] = big.NewInt(100)
	oracle.values[common.HexToAddress(token(4))] = big.NewInt(100)

	b := New(oracle, Options{MinPercentChange: 1, ItemDelay: time.Hour, ConfirmTimeout: time.Second})
	var delays atomic.Int32
	b.sleep = func(context.Context, time.Duration) error {
		delays.Add(1)
		return nil
	}

	batch := []domain.PriceUpdate{update(1, "100"), update(2, "5"), update(3, "5"), update(4, "100")}
	if _, err := b.Broadcast(context.Background(), batch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := delays.Load(); got != 2 {
		t.Errorf("delays = %d, want 2", got)
	}
}

func TestConcurrentBroadcastsAreSerialized(t *testing.T) {
	oracle := newMockOracle()
	b := newTestBroadcaster(oracle)

	var wg sync.WaitGroup
	for p := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]domain.PriceUpdate, 0, 5)
			for i := range 5 {
				batch = append(batch, update(p*100+i+1, "1000"))
			}
			b.Broadcast(context.Background(), batch)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.UpdatePrice(context.Background(), update(999, "1"))
	}()
	wg.Wait()

	if got := oracle.maxInFlight.Load(); got != 1 {
		t.Errorf("max in-flight transactions = %d, want 1", got)
	}
	if got := oracle.submits.Load(); got != 11 {
		t.Errorf("submits = %d, want 11", got)
	}
}
