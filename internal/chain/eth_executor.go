package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"billrails/internal/contracts"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthExecutor submits transactions to the bill payment contract.
type EthExecutor struct {
	client    *ethclient.Client
	contract  *bind.BoundContract
	billABI   abi.ABI
	erc20ABI  abi.ABI
	address   common.Address
	sender    common.Address
	chainID   *big.Int
	transacts *bind.TransactOpts
}

type EthExecutorConfig struct {
	RPCURL          string
	PrivateKeyHex   string
	ContractAddress string
	// ChainID is the single supported chain. Connecting to any other chain
	// is refused at construction.
	ChainID int64
}

func NewEthExecutor(ctx context.Context, cfg EthExecutorConfig) (*EthExecutor, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.ContractAddress == "" {
		return nil, fmt.Errorf("bill payment contract address is required")
	}
	if cfg.PrivateKeyHex == "" {
		return nil, fmt.Errorf("private key is required for submitting orders")
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	billABI, err := abi.JSON(strings.NewReader(contracts.BillPaymentABI))
	if err != nil {
		return nil, fmt.Errorf("parse bill payment abi: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(contracts.ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	pk, err := parsePrivateKey(cfg.PrivateKeyHex)
	if err != nil {
		return nil, err
	}

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	if cfg.ChainID != 0 && chainID.Int64() != cfg.ChainID {
		return nil, &SubmitError{
			Kind: KindWrongChain,
			Err:  fmt.Errorf("chain id mismatch: connected to %s, supported chain is %d", chainID, cfg.ChainID),
		}
	}

	txOpts, err := bind.NewKeyedTransactorWithChainID(pk, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	txOpts.GasLimit = 0 // let node estimate
	txOpts.GasPrice = nil
	txOpts.Nonce = nil

	address := common.HexToAddress(cfg.ContractAddress)
	bound := bind.NewBoundContract(address, billABI, cli, cli, cli)

	return &EthExecutor{
		client:    cli,
		contract:  bound,
		billABI:   billABI,
		erc20ABI:  erc20ABI,
		address:   address,
		sender:    crypto.PubkeyToAddress(pk.PublicKey),
		chainID:   chainID,
		transacts: txOpts,
	}, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

func (e *EthExecutor) ChainID() *big.Int {
	return new(big.Int).Set(e.chainID)
}

func (e *EthExecutor) SenderAddress() common.Address {
	return e.sender
}

func (e *EthExecutor) Allowance(ctx context.Context, token Token) (*big.Int, error) {
	if token.Native {
		return nil, fmt.Errorf("native token has no allowance")
	}
	erc20 := bind.NewBoundContract(token.Address, e.erc20ABI, e.client, e.client, e.client)

	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := erc20.Call(opts, &out, "allowance", e.sender, e.address); err != nil {
		return nil, fmt.Errorf("read allowance: %w", err)
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allowance return type %T", out[0])
	}
	return allowance, nil
}

// Approve grants the contract MaxUint256. One approval per token per wallet;
// later purchases skip the step entirely instead of topping the allowance up.
func (e *EthExecutor) Approve(ctx context.Context, token Token) (string, error) {
	if token.Native {
		return "", fmt.Errorf("native token does not require approval")
	}
	erc20 := bind.NewBoundContract(token.Address, e.erc20ABI, e.client, e.client, e.client)

	opts := *e.transacts
	opts.Context = ctx

	tx, err := erc20.Transact(&opts, "approve", e.address, math.MaxBig256)
	if err != nil {
		return "", Classify(fmt.Errorf("approve tx: %w", err))
	}
	return tx.Hash().Hex(), nil
}

func (e *EthExecutor) CreateOrder(ctx context.Context, p OrderParams) (string, error) {
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return "", fmt.Errorf("order amount must be positive")
	}

	opts := *e.transacts
	opts.Context = ctx

	tokenAddr := p.Token.Address
	if p.Token.Native {
		tokenAddr = common.Address{}
		opts.Value = p.Amount
	}

	tx, err := e.contract.Transact(&opts, "createOrder", p.RequestID, tokenAddr, p.Amount)
	if err != nil {
		return "", Classify(fmt.Errorf("create order tx: %w", err))
	}
	return tx.Hash().Hex(), nil
}

// WaitMined polls for the receipt until the transaction is included or the
// context ends. Confirmation is awaited indefinitely; the caller's context
// is the only bound.
func (e *EthExecutor) WaitMined(ctx context.Context, txHash string) error {
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := e.client.TransactionReceipt(ctx, hash)
		if receipt != nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return &SubmitError{Kind: KindRevert, Err: fmt.Errorf("transaction %s reverted", txHash)}
			}
			return nil
		}
		if err != nil && err.Error() != "not found" {
			return Classify(fmt.Errorf("poll receipt: %w", err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *EthExecutor) GetOrder(ctx context.Context, requestID *big.Int) (Order, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := e.contract.Call(opts, &out, "getOrder", requestID); err != nil {
		return Order{}, fmt.Errorf("read order: %w", err)
	}
	if len(out) < 3 {
		return Order{}, fmt.Errorf("unexpected getOrder return arity %d", len(out))
	}

	order := Order{}
	if user, ok := out[0].(common.Address); ok {
		order.User = user
	}
	if token, ok := out[1].(common.Address); ok {
		order.Token = token
	}
	if amount, ok := out[2].(*big.Int); ok {
		order.Amount = amount
	}
	return order, nil
}

func (e *EthExecutor) Ping(ctx context.Context) error {
	if e.client == nil {
		return fmt.Errorf("rpc client not configured")
	}
	_, err := e.client.BlockNumber(ctx)
	return err
}
