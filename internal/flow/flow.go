// Package flow drives a purchase from user intent to fulfilled bill: quote,
// idempotency-key guard, optional ERC20 approval, on-chain order,
// confirmation, then the at-most-once backend fulfillment call.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"billrails/internal/biller"
	"billrails/internal/chain"
	"billrails/internal/idemkey"
	"billrails/internal/pricefeed"
	"billrails/internal/quote"
	"billrails/internal/store"

	"github.com/rs/zerolog"
)

var (
	// ErrBusy means another purchase is in flight on this engine. One
	// active request at a time is what keeps the idempotency key from ever
	// being shared by two attempts.
	ErrBusy = errors.New("another purchase is already in flight")

	// ErrKeyAlreadyUsed means the current idempotency key already has an
	// on-chain order. The submission is aborted and a fresh key minted.
	ErrKeyAlreadyUsed = errors.New("request id already used on-chain")
)

// Fulfiller is the slice of the biller client the flow needs.
type Fulfiller interface {
	SubmitFulfillment(ctx context.Context, req biller.FulfillmentRequest) (*biller.Receipt, error)
}

// Config parametrizes one engine instance.
type Config struct {
	// ChainID is the single supported chain; a mismatch blocks submission.
	ChainID int64
	Limits  quote.Limits
	// Tokens maps paying-token symbols to their chain descriptors.
	Tokens map[string]chain.Token
}

// Result is the outcome of one flow run. After broadcast, TxHash is always
// populated, whatever happens later; on backendFailed both the hash and the
// idempotency key are the user's reconciliation reference.
type Result struct {
	State          State
	IdempotencyKey string
	TokenAmount    string
	ApprovalHash   string
	TxHash         string
	Attempts       []TransactionAttempt
	Receipt        *biller.Receipt
	Err            error
}

// Engine owns the purchase state machine. It exclusively holds the current
// request, the active attempts and the fulfillment guard; nothing else
// mutates them.
type Engine struct {
	cfg    Config
	exec   chain.Executor
	prices pricefeed.Source
	biller Fulfiller
	store  store.Store
	guard  *FulfillmentGuard
	log    zerolog.Logger

	mu     sync.Mutex
	active bool

	keyMu sync.Mutex
	key   string
}

func NewEngine(cfg Config, exec chain.Executor, prices pricefeed.Source, fulfiller Fulfiller, st store.Store, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		exec:   exec,
		prices: prices,
		biller: fulfiller,
		store:  st,
		guard:  NewFulfillmentGuard(),
		log:    log,
	}
}

// PendingKey returns the idempotency key the next submission will use,
// minting one if none is pending.
func (e *Engine) PendingKey() string {
	e.keyMu.Lock()
	defer e.keyMu.Unlock()
	if e.key == "" {
		e.key = idemkey.Generate()
	}
	return e.key
}

// rotateKey discards the pending key so the next attempt mints a fresh one.
// Called after every submission attempt, whatever the outcome.
func (e *Engine) rotateKey() {
	e.keyMu.Lock()
	e.key = ""
	e.keyMu.Unlock()
}

func (e *Engine) acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return false
	}
	e.active = true
	return true
}

func (e *Engine) release() {
	e.mu.Lock()
	e.active = false
	e.mu.Unlock()
}

// Guard exposes the fulfillment guard, mainly for duplicate-event tests.
func (e *Engine) Guard() *FulfillmentGuard {
	return e.guard
}

// Run executes one purchase end to end. It is synchronous: each suspension
// point (broadcast, confirmation, backend call) blocks until its external
// event arrives or ctx ends.
func (e *Engine) Run(ctx context.Context, req PurchaseRequest) Result {
	res := Result{State: StateIdle}

	if !e.acquire() {
		res.Err = ErrBusy
		return res
	}
	defer e.release()

	state := StateIdle
	e.step(&state, StateValidating, "")

	// Validation errors are local: flow returns to idle, no key is minted
	// and nothing touches the network.
	if err := req.validate(); err != nil {
		e.step(&state, StateIdle, "")
		res.State = StateIdle
		res.Err = err
		return res
	}
	token, ok := e.cfg.Tokens[req.TokenSymbol]
	if !ok {
		e.step(&state, StateIdle, "")
		res.State = StateIdle
		res.Err = validationErrorf("unsupported paying token %q", req.TokenSymbol)
		return res
	}
	if err := e.cfg.Limits.Validate(req.LocalAmount); err != nil {
		e.step(&state, StateIdle, "")
		res.State = StateIdle
		res.Err = &ValidationError{Reason: err.Error()}
		return res
	}

	key := e.PendingKey()
	res.IdempotencyKey = key
	defer e.rotateKey()

	fail := func(err error) Result {
		e.step(&state, StateError, key)
		res.State = StateError
		res.Err = err
		e.persist(ctx, req, token, &res, state)
		return res
	}

	// The engine only ever targets the one supported chain.
	if e.cfg.ChainID != 0 && e.exec.ChainID().Int64() != e.cfg.ChainID {
		return fail(&chain.SubmitError{
			Kind: chain.KindWrongChain,
			Err:  fmt.Errorf("connected to chain %s, supported chain is %d", e.exec.ChainID(), e.cfg.ChainID),
		})
	}

	spot, err := e.prices.Spot(ctx, token.Symbol)
	if err != nil {
		return fail(fmt.Errorf("quote: %w", err))
	}
	units, err := quote.TokenAmount(req.LocalAmount, spot, token.Decimals)
	if err != nil {
		// A zero or unrepresentable quantization is a stale quote; the key
		// is rotated on exit so the next attempt starts clean.
		return fail(fmt.Errorf("quote: %w", err))
	}
	res.TokenAmount = quote.FormatUnits(units, token.Decimals)

	// Write-once guard: refuse to reuse a key that already has an order.
	existing, err := e.exec.GetOrder(ctx, idemkey.EncodeBig(key))
	if err != nil {
		return fail(fmt.Errorf("order existence check: %w", err))
	}
	if existing.Exists() {
		e.log.Warn().Str("requestId", key).Msg("idempotency key already used on-chain, minting a new one")
		return fail(ErrKeyAlreadyUsed)
	}

	e.persist(ctx, req, token, &res, state)

	// Approval, only when the token needs one and the standing allowance is
	// short. The approval must be fully confirmed before the order is
	// broadcast so the order cannot revert on allowance.
	if !token.Native {
		allowance, err := e.exec.Allowance(ctx, token)
		if err != nil {
			return fail(fmt.Errorf("read allowance: %w", err))
		}
		if allowance.Cmp(units) < 0 {
			e.step(&state, StateApproving, key)
			attempt := newAttempt(AttemptApproval)
			_ = attempt.advance(AttemptAwaitingSignature)

			hash, err := e.exec.Approve(ctx, token)
			if err != nil {
				_ = attempt.advance(AttemptFailed)
				res.Attempts = append(res.Attempts, *attempt)
				return fail(chain.Classify(err))
			}
			attempt.Hash = hash
			res.ApprovalHash = hash
			_ = attempt.advance(AttemptBroadcast)
			_ = attempt.advance(AttemptConfirming)

			if err := e.exec.WaitMined(ctx, hash); err != nil {
				_ = attempt.advance(AttemptFailed)
				res.Attempts = append(res.Attempts, *attempt)
				return fail(chain.Classify(err))
			}
			_ = attempt.advance(AttemptConfirmed)
			res.Attempts = append(res.Attempts, *attempt)
			e.log.Info().Str("requestId", key).Str("txHash", hash).Msg("allowance approved")
		}
	}

	e.step(&state, StateAwaitingOrderSignature, key)
	attempt := newAttempt(AttemptOrder)
	_ = attempt.advance(AttemptAwaitingSignature)

	hash, err := e.exec.CreateOrder(ctx, chain.OrderParams{
		RequestID: idemkey.Encode(key),
		Token:     token,
		Amount:    units,
	})
	if err != nil {
		_ = attempt.advance(AttemptFailed)
		res.Attempts = append(res.Attempts, *attempt)
		return fail(chain.Classify(err))
	}
	// The hash is retained from here on, even if a later step fails.
	attempt.Hash = hash
	res.TxHash = hash
	_ = attempt.advance(AttemptBroadcast)
	e.step(&state, StateOrderBroadcast, key)
	e.persist(ctx, req, token, &res, state)

	e.step(&state, StateOrderConfirming, key)
	_ = attempt.advance(AttemptConfirming)
	if err := e.exec.WaitMined(ctx, hash); err != nil {
		_ = attempt.advance(AttemptFailed)
		res.Attempts = append(res.Attempts, *attempt)
		return fail(chain.Classify(err))
	}
	_ = attempt.advance(AttemptConfirmed)
	res.Attempts = append(res.Attempts, *attempt)
	e.step(&state, StateOrderConfirmed, key)
	e.persist(ctx, req, token, &res, state)

	// At-most-once fulfillment per confirmed hash.
	if !e.guard.Begin(hash) {
		e.log.Warn().Str("txHash", hash).Msg("fulfillment already dispatched for this hash, suppressing duplicate")
		res.State = StateOrderConfirmed
		return res
	}

	e.step(&state, StateBackendProcessing, key)
	e.persist(ctx, req, token, &res, state)

	receipt, err := e.biller.SubmitFulfillment(ctx, e.fulfillmentRequest(req, token, key, hash, res.TokenAmount))
	if err != nil {
		e.guard.Finish(hash, false)
		e.step(&state, StateBackendFailed, key)
		res.State = StateBackendFailed
		res.Err = err
		// The chain-side debit is irreversible at this point. Keep the key
		// and hash in front of the user as the support reference.
		e.log.Error().Err(err).
			Str("requestId", key).
			Str("txHash", hash).
			Msg("fulfillment failed after confirmed payment; manual reconciliation required")
		e.persist(ctx, req, token, &res, state)
		return res
	}

	e.guard.Finish(hash, true)
	e.step(&state, StateSuccess, key)
	res.State = StateSuccess
	res.Receipt = receipt
	e.persist(ctx, req, token, &res, state)
	return res
}

// step moves the machine forward, enforcing the transition table.
func (e *Engine) step(state *State, next State, key string) {
	if !CanTransition(*state, next) {
		// A table violation is a programming error; record it loudly but
		// do not corrupt the run.
		e.log.Error().Str("from", string(*state)).Str("to", string(next)).Msg("illegal state transition")
		return
	}
	evt := e.log.Debug().Str("from", string(*state)).Str("to", string(next))
	if key != "" {
		evt = evt.Str("requestId", key)
	}
	evt.Msg("flow transition")
	*state = next
}

func (e *Engine) fulfillmentRequest(req PurchaseRequest, token chain.Token, key, hash, tokenAmount string) biller.FulfillmentRequest {
	fr := biller.FulfillmentRequest{
		RequestID:       key,
		Service:         string(req.ServiceType),
		ServiceID:       req.ServiceID,
		Amount:          req.LocalAmount,
		CryptoUsed:      tokenAmount,
		CryptoSymbol:    token.Symbol,
		TransactionHash: hash,
		UserAddress:     e.exec.SenderAddress().Hex(),
		VariationCode:   req.VariationCode,
	}
	switch req.ServiceType {
	case ServiceAirtime, ServiceInternet:
		fr.Phone = req.Beneficiary
	case ServiceElectricity:
		fr.MeterNumber = req.Beneficiary
	case ServiceTV:
		fr.SmartcardNumber = req.Beneficiary
	}
	return fr
}

func (e *Engine) persist(ctx context.Context, req PurchaseRequest, token chain.Token, res *Result, state State) {
	if e.store == nil || res.IdempotencyKey == "" {
		return
	}
	fulfillment := ""
	if res.TxHash != "" {
		if status, ok := e.guard.Status(res.TxHash); ok {
			fulfillment = string(status)
		}
	}
	rec := store.Purchase{
		RequestID:         res.IdempotencyKey,
		ServiceType:       string(req.ServiceType),
		ServiceID:         req.ServiceID,
		Beneficiary:       req.Beneficiary,
		LocalAmount:       req.LocalAmount,
		TokenSymbol:       token.Symbol,
		TokenAmount:       res.TokenAmount,
		UserAddress:       e.exec.SenderAddress().Hex(),
		State:             string(state),
		TxHash:            res.TxHash,
		FulfillmentStatus: fulfillment,
	}
	if err := e.store.Save(ctx, rec); err != nil {
		e.log.Warn().Err(err).Str("requestId", res.IdempotencyKey).Msg("purchase record save failed")
	}
}
