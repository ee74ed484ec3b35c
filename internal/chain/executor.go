package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token describes a paying asset. A native token carries the zero address
// and is flagged rather than addressed.
type Token struct {
	Address  common.Address
	Native   bool
	Symbol   string
	Decimals int
}

// OrderParams is one createOrder submission.
type OrderParams struct {
	RequestID [32]byte
	Token     Token
	Amount    *big.Int
}

// Order is the on-chain record for a request id. A zero User address means
// the id has never been used.
type Order struct {
	User   common.Address
	Token  common.Address
	Amount *big.Int
}

// Exists reports whether an order record has been written for this id.
func (o Order) Exists() bool {
	return o.User != (common.Address{})
}

// Executor wraps signing, broadcast and confirmation against the single
// supported chain.
type Executor interface {
	// ChainID is the id of the chain the executor is connected to.
	ChainID() *big.Int

	// SenderAddress is the wallet address transactions are sent from.
	SenderAddress() common.Address

	// Allowance reads the current ERC20 allowance granted to the bill
	// payment contract by the sender.
	Allowance(ctx context.Context, token Token) (*big.Int, error)

	// Approve grants the bill payment contract an unlimited allowance for
	// the token and returns the broadcast transaction hash.
	Approve(ctx context.Context, token Token) (string, error)

	// CreateOrder broadcasts the order transaction and returns its hash.
	// For a native-token payment the amount rides along as transaction
	// value.
	CreateOrder(ctx context.Context, p OrderParams) (string, error)

	// WaitMined blocks until the transaction is included in a block. An
	// included-but-reverted transaction is an error.
	WaitMined(ctx context.Context, txHash string) error

	// GetOrder reads the order stored under the integer-encoded request id.
	GetOrder(ctx context.Context, requestID *big.Int) (Order, error)
}

// HealthChecker is implemented by executors that can probe their RPC node.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
