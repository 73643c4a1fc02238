package executor_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
	"github.com/alanyoungcy/poolkeeper/internal/executor"
	"github.com/alanyoungcy/poolkeeper/internal/ledger"
)

type fakeChain struct {
	mu        sync.Mutex
	nonce     uint64
	lag       time.Duration
	suggested *big.Int
	sendErr   error
	sends     []ledger.Outgoing
	mined     map[string]bool
}

func newFakeChain(suggested int64) *fakeChain {
	return &fakeChain{suggested: big.NewInt(suggested), nonce: 7, mined: map[string]bool{}}
}

// PendingNonce answers after lag with the nonce read before it, like a node
// whose pending view has not caught up with the latest broadcast.
func (f *fakeChain) PendingNonce(context.Context) (uint64, error) {
	f.mu.Lock()
	nonce, lag := f.nonce+uint64(len(f.sends)), f.lag
	f.mu.Unlock()
	time.Sleep(lag)
	return nonce, nil
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.suggested), nil
}

func (f *fakeChain) Send(_ context.Context, out ledger.Outgoing) (ledger.Sent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return ledger.Sent{}, f.sendErr
	}
	f.sends = append(f.sends, out)
	return ledger.Sent{Hash: fmt.Sprintf("0x%02d", len(f.sends)), GasLimit: 200_000}, nil
}

func (f *fakeChain) WaitMined(ctx context.Context, hashes ...string) (ledger.Receipt, error) {
	for {
		f.mu.Lock()
		for _, h := range hashes {
			if ok, found := f.mined[h]; found {
				f.mu.Unlock()
				return ledger.Receipt{Hash: h, Succeeded: ok, BlockNumber: 10}, nil
			}
		}
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return ledger.Receipt{}, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (f *fakeChain) setSuggested(v int64) {
	f.mu.Lock()
	f.suggested = big.NewInt(v)
	f.mu.Unlock()
}

func (f *fakeChain) mine(hash string, ok bool) {
	f.mu.Lock()
	f.mined[hash] = ok
	f.mu.Unlock()
}

func (f *fakeChain) sent() []ledger.Outgoing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledger.Outgoing(nil), f.sends...)
}

type fakeGasCache struct {
	price *big.Int
	at    time.Time
}

func (c *fakeGasCache) SetFastPrice(_ context.Context, p *big.Int, at time.Time) error {
	c.price, c.at = p, at
	return nil
}

func (c *fakeGasCache) FastPrice(context.Context) (*big.Int, time.Time, error) {
	if c.price == nil {
		return nil, time.Time{}, domain.ErrNotFound
	}
	return c.price, c.at, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func closeReq() domain.TxRequest {
	return domain.TxRequest{
		PoolID: "0xpool",
		Action: domain.ActionClose,
		To:     "0xCoordinator",
		Data:   mustData(ledger.CloseEpochData()),
	}
}

func mustData(data []byte, err error) []byte {
	if err != nil {
		panic(err)
	}
	return data
}

func newSubmitter(t *testing.T, chain *fakeChain, opts executor.Options) (*executor.Submitter, *executor.History) {
	t.Helper()
	if opts.ConfirmTimeout == 0 {
		opts.ConfirmTimeout = 20 * time.Millisecond
	}
	h := executor.NewHistory()
	s := executor.NewSubmitter(chain, h, opts, testLogger())
	t.Cleanup(s.Close)
	return s, h
}

func TestSubmitRejectsDuplicateWhileInFlight(t *testing.T) {
	chain := newFakeChain(100)
	s, _ := newSubmitter(t, chain, executor.Options{ConfirmTimeout: time.Hour})

	rec, err := s.Submit(context.Background(), closeReq())
	require.NoError(t, err)
	assert.Equal(t, "0x01", rec.Hash)
	assert.Equal(t, uint64(7), rec.Nonce)

	again, err := s.Submit(context.Background(), closeReq())
	require.ErrorIs(t, err, domain.ErrAlreadyInFlight)
	assert.Equal(t, "0x01", again.Hash)
	assert.Len(t, chain.sent(), 1)
}

func TestSubmitDifferentActionsAreIndependent(t *testing.T) {
	chain := newFakeChain(100)
	s, h := newSubmitter(t, chain, executor.Options{ConfirmTimeout: time.Hour})

	_, err := s.Submit(context.Background(), closeReq())
	require.NoError(t, err)
	exec := closeReq()
	exec.Action = domain.ActionExecute
	exec.Data = mustData(ledger.ExecuteEpochData())
	_, err = s.Submit(context.Background(), exec)
	require.NoError(t, err)

	assert.Equal(t, 2, h.Len())
}

func executeReq(poolID, to string) domain.TxRequest {
	return domain.TxRequest{
		PoolID: poolID,
		Action: domain.ActionExecute,
		To:     to,
		Data:   mustData(ledger.ExecuteEpochData()),
	}
}

func TestConcurrentSubmitsGetDistinctNonces(t *testing.T) {
	chain := newFakeChain(100)
	chain.lag = 20 * time.Millisecond
	s, _ := newSubmitter(t, chain, executor.Options{ConfirmTimeout: time.Hour})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, req := range []domain.TxRequest{closeReq(), executeReq("0xother", "0xOtherCoordinator")} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Submit(context.Background(), req)
		}()
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	sends := chain.sent()
	require.Len(t, sends, 2)
	assert.ElementsMatch(t, []uint64{7, 8}, []uint64{sends[0].Nonce, sends[1].Nonce})
}

func TestSubmitNonceNeverBelowLastAssigned(t *testing.T) {
	chain := newFakeChain(100)
	s, _ := newSubmitter(t, chain, executor.Options{ConfirmTimeout: time.Hour})

	first, err := s.Submit(context.Background(), closeReq())
	require.NoError(t, err)

	// The node's pending view lags one broadcast behind.
	chain.mu.Lock()
	chain.nonce = 6
	chain.mu.Unlock()

	second, err := s.Submit(context.Background(), executeReq("0xother", "0xOtherCoordinator"))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), first.Nonce)
	assert.Equal(t, uint64(8), second.Nonce)
}

func TestSubmitSendErrorReleasesKey(t *testing.T) {
	chain := newFakeChain(100)
	chain.sendErr = errors.New("insufficient funds")
	s, h := newSubmitter(t, chain, executor.Options{})

	_, err := s.Submit(context.Background(), closeReq())
	require.Error(t, err)
	assert.Equal(t, 0, h.Len())

	chain.mu.Lock()
	chain.sendErr = nil
	chain.mu.Unlock()
	_, err = s.Submit(context.Background(), closeReq())
	require.NoError(t, err)
}

func TestTimeoutEscalatesByTwentyPercentRoundedUp(t *testing.T) {
	chain := newFakeChain(101)
	s, _ := newSubmitter(t, chain, executor.Options{})

	_, err := s.Submit(context.Background(), closeReq())
	require.NoError(t, err)
	chain.setSuggested(1)

	require.Eventually(t, func() bool { return len(chain.sent()) >= 2 }, time.Second, 5*time.Millisecond)
	sends := chain.sent()
	assert.Equal(t, int64(122), sends[1].GasPrice.Int64())
	assert.Equal(t, sends[0].Nonce, sends[1].Nonce)
	assert.Equal(t, uint64(200_000), sends[1].GasLimit)
}

func TestEscalationStopsAfterThreeBumps(t *testing.T) {
	chain := newFakeChain(100)
	s, _ := newSubmitter(t, chain, executor.Options{})

	_, err := s.Submit(context.Background(), closeReq())
	require.NoError(t, err)
	chain.setSuggested(1)

	require.Eventually(t, func() bool { return len(chain.sent()) >= 6 }, 2*time.Second, 5*time.Millisecond)
	s.Close()

	sends := chain.sent()
	want := []int64{100, 120, 144, 173, 173, 173}
	for i, w := range want {
		assert.Equal(t, w, sends[i].GasPrice.Int64(), "send %d", i)
	}

	recs := s.InFlight()
	require.Len(t, recs, 1)
	assert.Equal(t, 3, recs[0].Escalations)
	assert.GreaterOrEqual(t, recs[0].Retries, 5)
}

func TestFreshFastPriceOverridesEscalation(t *testing.T) {
	chain := newFakeChain(100)
	cache := &fakeGasCache{price: big.NewInt(500), at: time.Now()}
	s, _ := newSubmitter(t, chain, executor.Options{GasCache: cache})

	_, err := s.Submit(context.Background(), closeReq())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(chain.sent()) >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(500), chain.sent()[1].GasPrice.Int64())

	recs := s.InFlight()
	require.Len(t, recs, 1)
	assert.Equal(t, 0, recs[0].Escalations)
}

func TestLowFastPriceStillEscalates(t *testing.T) {
	chain := newFakeChain(100)
	cache := &fakeGasCache{price: big.NewInt(50), at: time.Now()}
	s, _ := newSubmitter(t, chain, executor.Options{GasCache: cache})

	_, err := s.Submit(context.Background(), closeReq())
	require.NoError(t, err)
	chain.setSuggested(1)

	require.Eventually(t, func() bool { return len(chain.sent()) >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(120), chain.sent()[1].GasPrice.Int64())
}

func TestStaleFastPriceIsIgnored(t *testing.T) {
	chain := newFakeChain(100)
	cache := &fakeGasCache{price: big.NewInt(500), at: time.Now().Add(-11 * time.Minute)}
	s, _ := newSubmitter(t, chain, executor.Options{GasCache: cache})

	_, err := s.Submit(context.Background(), closeReq())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(chain.sent()) >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(120), chain.sent()[1].GasPrice.Int64())
}

func TestSuggestedPriceIsFloor(t *testing.T) {
	chain := newFakeChain(100)
	s, _ := newSubmitter(t, chain, executor.Options{})

	_, err := s.Submit(context.Background(), closeReq())
	require.NoError(t, err)
	chain.setSuggested(1000)

	require.Eventually(t, func() bool { return len(chain.sent()) >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1000), chain.sent()[1].GasPrice.Int64())
}

func TestConfirmationClearsKey(t *testing.T) {
	chain := newFakeChain(100)
	settled := make(chan domain.TxRecord, 1)
	s, h := newSubmitter(t, chain, executor.Options{
		ConfirmTimeout: time.Hour,
		OnSettled: func(_ context.Context, rec domain.TxRecord, r ledger.Receipt) {
			assert.True(t, r.Succeeded)
			settled <- rec
		},
	})

	rec, err := s.Submit(context.Background(), closeReq())
	require.NoError(t, err)
	chain.mine(rec.Hash, true)

	select {
	case got := <-settled:
		assert.Equal(t, rec.Key, got.Key)
	case <-time.After(time.Second):
		t.Fatal("settle callback not called")
	}
	require.Eventually(t, func() bool { return h.Len() == 0 }, time.Second, time.Millisecond)

	_, err = s.Submit(context.Background(), closeReq())
	require.NoError(t, err)
}

func TestReplacedTransactionMinedStillSettles(t *testing.T) {
	chain := newFakeChain(100)
	s, h := newSubmitter(t, chain, executor.Options{})

	rec, err := s.Submit(context.Background(), closeReq())
	require.NoError(t, err)
	chain.setSuggested(1)

	require.Eventually(t, func() bool { return len(chain.sent()) >= 2 }, time.Second, 5*time.Millisecond)
	chain.mine(rec.Hash, true)

	require.Eventually(t, func() bool { return h.Len() == 0 }, time.Second, time.Millisecond)
}

func TestCloseStopsWatchers(t *testing.T) {
	chain := newFakeChain(100)
	s, h := newSubmitter(t, chain, executor.Options{ConfirmTimeout: time.Hour})

	_, err := s.Submit(context.Background(), closeReq())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
	assert.Equal(t, 1, h.Len())
}
