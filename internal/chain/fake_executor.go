package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// FakeExecutor emulates the chain in memory for tests. Hashes are derived
// deterministically from the payload, orders become visible to GetOrder once
// their transaction is "mined".
type FakeExecutor struct {
	Chain  *big.Int
	Sender common.Address

	// Failure injection. Errors returned as-is from the matching call.
	ApproveErr error
	OrderErr   error
	WaitErrs   map[string]error

	mu         sync.Mutex
	allowances map[common.Address]*big.Int
	orders     map[string]Order
	pending    map[string]OrderParams

	ApproveCalls []Token
	OrderCalls   []OrderParams
	WaitCalls    []string
}

func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		Chain:      big.NewInt(1),
		Sender:     common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		allowances: make(map[common.Address]*big.Int),
		orders:     make(map[string]Order),
		pending:    make(map[string]OrderParams),
		WaitErrs:   make(map[string]error),
	}
}

func (f *FakeExecutor) ChainID() *big.Int {
	return new(big.Int).Set(f.Chain)
}

func (f *FakeExecutor) SenderAddress() common.Address {
	return f.Sender
}

// SetAllowance seeds an existing allowance, as if approved in an earlier
// session.
func (f *FakeExecutor) SetAllowance(token Token, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowances[token.Address] = amount
}

// SeedOrder plants an existing on-chain order under the integer request id,
// for exercising the write-once guard.
func (f *FakeExecutor) SeedOrder(requestID *big.Int, order Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[requestID.String()] = order
}

func (f *FakeExecutor) Allowance(_ context.Context, token Token) (*big.Int, error) {
	if token.Native {
		return nil, fmt.Errorf("native token has no allowance")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.allowances[token.Address]; ok {
		return new(big.Int).Set(a), nil
	}
	return big.NewInt(0), nil
}

func (f *FakeExecutor) Approve(_ context.Context, token Token) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ApproveCalls = append(f.ApproveCalls, token)
	if f.ApproveErr != nil {
		return "", f.ApproveErr
	}
	f.allowances[token.Address] = new(big.Int).Set(math.MaxBig256)
	return fakeHash("approve:" + token.Address.Hex()), nil
}

func (f *FakeExecutor) CreateOrder(_ context.Context, p OrderParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OrderCalls = append(f.OrderCalls, p)
	if f.OrderErr != nil {
		return "", f.OrderErr
	}
	hash := fakeHash("order:" + hex.EncodeToString(p.RequestID[:]))
	f.pending[hash] = p
	return hash, nil
}

func (f *FakeExecutor) WaitMined(_ context.Context, txHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.WaitCalls = append(f.WaitCalls, txHash)
	if err, ok := f.WaitErrs[txHash]; ok {
		return err
	}
	if p, ok := f.pending[txHash]; ok {
		id := new(big.Int).SetBytes(p.RequestID[:])
		f.orders[id.String()] = Order{
			User:   f.Sender,
			Token:  p.Token.Address,
			Amount: p.Amount,
		}
		delete(f.pending, txHash)
	}
	return nil
}

func (f *FakeExecutor) GetOrder(_ context.Context, requestID *big.Int) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[requestID.String()], nil
}

func (f *FakeExecutor) Ping(context.Context) error {
	return nil
}

// FakeOrderHash predicts the hash CreateOrder will assign for a request id,
// so tests can script WaitErrs before the flow runs.
func FakeOrderHash(requestID [32]byte) string {
	return fakeHash("order:" + hex.EncodeToString(requestID[:]))
}

func fakeHash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return "0x" + hex.EncodeToString(sum[:])
}
