package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
	"github.com/alanyoungcy/poolkeeper/internal/ledger"
)

// Chain is the ledger surface the submitter writes through. It is
// implemented by *ledger.Writer.
type Chain interface {
	PendingNonce(ctx context.Context) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	Send(ctx context.Context, out ledger.Outgoing) (ledger.Sent, error)
	WaitMined(ctx context.Context, hashes ...string) (ledger.Receipt, error)
}

// Metrics receives submitter events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	TxSubmitted(action string)
	TxResubmitted(action string, escalated bool)
	TxSettled(action string, succeeded bool)
	SetInFlight(n int)
}

// SettleFunc is called once an action's transaction has been mined.
type SettleFunc func(ctx context.Context, rec domain.TxRecord, receipt ledger.Receipt)

// Options configures a Submitter. Zero values fall back to defaults.
type Options struct {
	ConfirmTimeout time.Duration
	Policy         GasPolicy
	GasCache       domain.GasPriceCache
	Audit          domain.AuditLog
	Metrics        Metrics
	OnSettled      SettleFunc
}

// Submitter broadcasts ledger writes, refuses duplicates while one is in
// flight, and replaces stuck transactions at a higher price. Each accepted
// action is watched by its own goroutine until mined or Close is called.
type Submitter struct {
	chain   Chain
	history *History
	opts    Options
	logger  *slog.Logger
	now     func() time.Time

	// nonceMu serialises nonce assignment across concurrent Submit calls.
	// nextNonce is one past the last nonce this process broadcast.
	nonceMu   sync.Mutex
	nextNonce uint64
	haveNonce bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSubmitter creates a Submitter writing through chain. A nil history gets
// a fresh one.
func NewSubmitter(chain Chain, history *History, opts Options, logger *slog.Logger) *Submitter {
	if history == nil {
		history = NewHistory()
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 5 * time.Minute
	}
	if opts.Policy.BumpDen == 0 {
		opts.Policy = DefaultGasPolicy()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Submitter{
		chain:   chain,
		history: history,
		opts:    opts,
		logger:  logger.With(slog.String("component", "executor")),
		now:     time.Now,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// WithClock overrides the time source.
func (s *Submitter) WithClock(now func() time.Time) *Submitter {
	s.now = now
	return s
}

// Submit broadcasts req and returns immediately with the in-flight record.
// Confirmation and replacement happen in the background. It returns
// domain.ErrAlreadyInFlight when the same action is still unconfirmed.
func (s *Submitter) Submit(ctx context.Context, req domain.TxRequest) (domain.TxRecord, error) {
	key := DedupKey(req.To, req.Data)
	now := s.now()
	if !s.history.Reserve(domain.TxRecord{
		Key:         key,
		PoolID:      req.PoolID,
		Action:      req.Action,
		To:          req.To,
		SubmittedAt: now,
	}) {
		existing, _ := s.history.Get(key)
		s.logger.Info("action already in flight",
			slog.String("pool", req.PoolID),
			slog.String("action", req.Action.String()),
			slog.String("tx", existing.Hash),
		)
		return existing, fmt.Errorf("executor: %s for %s: %w", req.Action, req.PoolID, domain.ErrAlreadyInFlight)
	}

	rec, err := s.broadcast(ctx, key, req)
	if err != nil {
		s.history.Release(key)
		return domain.TxRecord{}, fmt.Errorf("executor: submit %s for %s: %w", req.Action, req.PoolID, err)
	}

	s.logger.Info("transaction submitted",
		slog.String("pool", req.PoolID),
		slog.String("action", req.Action.String()),
		slog.String("tx", rec.Hash),
		slog.Uint64("nonce", rec.Nonce),
		slog.String("gas_price", rec.GasPrice.String()),
	)
	s.audit(ctx, "tx_submitted", rec, nil)
	if s.opts.Metrics != nil {
		s.opts.Metrics.TxSubmitted(req.Action.String())
		s.opts.Metrics.SetInFlight(s.history.Len())
	}

	s.wg.Add(1)
	go s.watch(key, req)
	return rec, nil
}

// broadcast sends req under a fresh nonce. The node's pending nonce can lag
// a broadcast this process just made, so the nonce is never below the last
// one assigned plus one.
func (s *Submitter) broadcast(ctx context.Context, key string, req domain.TxRequest) (domain.TxRecord, error) {
	s.nonceMu.Lock()
	defer s.nonceMu.Unlock()

	nonce, err := s.chain.PendingNonce(ctx)
	if err != nil {
		return domain.TxRecord{}, err
	}
	if s.haveNonce && nonce < s.nextNonce {
		nonce = s.nextNonce
	}
	price, err := s.chain.SuggestGasPrice(ctx)
	if err != nil {
		return domain.TxRecord{}, err
	}
	sent, err := s.chain.Send(ctx, ledger.Outgoing{
		To:       req.To,
		Data:     req.Data,
		Nonce:    nonce,
		GasPrice: price,
	})
	if err != nil {
		return domain.TxRecord{}, err
	}
	s.nextNonce, s.haveNonce = nonce+1, true

	sentAt := s.now()
	s.history.Update(key, func(r *domain.TxRecord) {
		r.Hash = sent.Hash
		r.Hashes = append(r.Hashes, sent.Hash)
		r.Nonce = nonce
		r.GasPrice = new(big.Int).Set(price)
		r.GasLimit = sent.GasLimit
		r.LastSentAt = sentAt
	})
	rec, _ := s.history.Get(key)
	return rec, nil
}

// watch waits for the action under key to be mined, replacing it after each
// confirmation timeout.
func (s *Submitter) watch(key string, req domain.TxRequest) {
	defer s.wg.Done()

	for {
		rec, ok := s.history.Get(key)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(s.baseCtx, s.opts.ConfirmTimeout)
		receipt, err := s.chain.WaitMined(ctx, rec.Hashes...)
		cancel()

		if err == nil {
			s.settle(rec, receipt)
			return
		}
		if s.baseCtx.Err() != nil {
			s.logger.Info("stopped watching transaction",
				slog.String("pool", rec.PoolID),
				slog.String("action", rec.Action.String()),
				slog.String("tx", rec.Hash),
			)
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", domain.ErrConfirmationTimeout, s.opts.ConfirmTimeout)
		} else {
			s.logger.Warn("confirmation wait failed",
				slog.String("tx", rec.Hash),
				slog.String("error", err.Error()),
			)
		}

		s.replace(key, rec, req, err)
	}
}

// replace rebroadcasts rec with the same nonce at the next policy price. A
// failed broadcast keeps the previous hash under watch.
func (s *Submitter) replace(key string, rec domain.TxRecord, req domain.TxRequest, cause error) {
	ctx, cancel := context.WithTimeout(s.baseCtx, 30*time.Second)
	defer cancel()

	suggested, err := s.chain.SuggestGasPrice(ctx)
	if err != nil {
		s.logger.Warn("gas price suggestion failed", slog.String("error", err.Error()))
		suggested = nil
	}
	fast, fastAt := s.fastPrice(ctx)

	price, escalated := s.opts.Policy.Next(rec.GasPrice, suggested, fast, fastAt, s.now(), rec.Escalations)
	sent, err := s.chain.Send(ctx, ledger.Outgoing{
		To:       req.To,
		Data:     req.Data,
		Nonce:    rec.Nonce,
		GasPrice: price,
		GasLimit: rec.GasLimit,
	})
	if err != nil {
		s.logger.Warn("resubmission failed",
			slog.String("pool", rec.PoolID),
			slog.String("action", rec.Action.String()),
			slog.Uint64("nonce", rec.Nonce),
			slog.String("gas_price", price.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	sentAt := s.now()
	s.history.Update(key, func(r *domain.TxRecord) {
		r.Hash = sent.Hash
		r.Hashes = append(r.Hashes, sent.Hash)
		r.GasPrice = new(big.Int).Set(price)
		r.Retries++
		if escalated {
			r.Escalations++
		}
		r.LastSentAt = sentAt
	})
	updated, _ := s.history.Get(key)

	s.logger.Info("transaction resubmitted",
		slog.String("pool", updated.PoolID),
		slog.String("action", updated.Action.String()),
		slog.String("tx", updated.Hash),
		slog.Uint64("nonce", updated.Nonce),
		slog.String("gas_price", price.String()),
		slog.Int("escalations", updated.Escalations),
		slog.Int("retries", updated.Retries),
	)
	s.audit(ctx, "tx_resubmitted", updated, map[string]any{"reason": cause.Error()})
	if s.opts.Metrics != nil {
		s.opts.Metrics.TxResubmitted(updated.Action.String(), escalated)
	}
}

func (s *Submitter) settle(rec domain.TxRecord, receipt ledger.Receipt) {
	s.history.Release(rec.Key)

	attrs := []any{
		slog.String("pool", rec.PoolID),
		slog.String("action", rec.Action.String()),
		slog.String("tx", receipt.Hash),
		slog.Uint64("block", receipt.BlockNumber),
		slog.Int("retries", rec.Retries),
	}
	event := "tx_confirmed"
	if receipt.Succeeded {
		s.logger.Info("transaction confirmed", attrs...)
	} else {
		event = "tx_reverted"
		s.logger.Warn("transaction reverted", attrs...)
	}

	ctx, cancel := context.WithTimeout(s.baseCtx, 30*time.Second)
	defer cancel()
	s.audit(ctx, event, rec, map[string]any{
		"mined_hash": receipt.Hash,
		"block":      receipt.BlockNumber,
		"gas_used":   receipt.GasUsed,
	})
	if s.opts.Metrics != nil {
		s.opts.Metrics.TxSettled(rec.Action.String(), receipt.Succeeded)
		s.opts.Metrics.SetInFlight(s.history.Len())
	}
	if s.opts.OnSettled != nil {
		s.opts.OnSettled(ctx, rec, receipt)
	}
}

func (s *Submitter) fastPrice(ctx context.Context) (*big.Int, time.Time) {
	if s.opts.GasCache == nil {
		return nil, time.Time{}
	}
	price, at, err := s.opts.GasCache.FastPrice(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("fast gas price lookup failed", slog.String("error", err.Error()))
		}
		return nil, time.Time{}
	}
	return price, at
}

func (s *Submitter) audit(ctx context.Context, event string, rec domain.TxRecord, extra map[string]any) {
	if s.opts.Audit == nil {
		return
	}
	detail := map[string]any{
		"pool":        rec.PoolID,
		"action":      rec.Action.String(),
		"to":          rec.To,
		"tx":          rec.Hash,
		"nonce":       rec.Nonce,
		"escalations": rec.Escalations,
		"retries":     rec.Retries,
	}
	if rec.GasPrice != nil {
		detail["gas_price"] = rec.GasPrice.String()
	}
	for k, v := range extra {
		detail[k] = v
	}
	if err := s.opts.Audit.Log(ctx, event, detail); err != nil {
		s.logger.Warn("audit write failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// InFlight returns the unconfirmed actions.
func (s *Submitter) InFlight() []domain.TxRecord {
	return s.history.List()
}

// Close stops all watches and waits for them to return. In-flight records
// are kept; they are lost with the process.
func (s *Submitter) Close() {
	s.cancel()
	s.wg.Wait()
}
