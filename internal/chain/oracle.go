package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// GasHeadroomPercent is added on top of the node's gas estimate.
const GasHeadroomPercent = 20

// ErrNoSigner is returned by write calls on a read-only Oracle.
var ErrNoSigner = errors.New("oracle has no signer configured")

const oracleABIJSON = `[
	{"type":"function","name":"getTokenValue","stateMutability":"view",
	 "inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"updateTokenValue","stateMutability":"nonpayable",
	 "inputs":[{"name":"token","type":"address"},{"name":"value","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"owner","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

var oracleABI = mustParseABI(oracleABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parsing ABI: %v", err))
	}
	return parsed
}

// Oracle is a binding to the on-chain price oracle contract.
type Oracle struct {
	address  common.Address
	backend  Backend
	contract *bind.BoundContract
	signer   *Signer
}

// NewOracle binds the oracle at address. signer may be nil for read-only use.
func NewOracle(backend Backend, address common.Address, signer *Signer) *Oracle {
	return &Oracle{
		address:  address,
		backend:  backend,
		contract: bind.NewBoundContract(address, oracleABI, backend, backend, backend),
		signer:   signer,
	}
}

// Address returns the oracle contract address.
func (o *Oracle) Address() common.Address {
	return o.address
}

// TokenValue reads the stored 18-decimal USD value of token.
// A revert is reported as ErrNotSet.
func (o *Oracle) TokenValue(ctx context.Context, token common.Address) (*big.Int, error) {
	var out []interface{}
	if err := o.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getTokenValue", token); err != nil {
		if IsRevert(err) {
			return nil, fmt.Errorf("reading value of %s: %w", token.Hex(), ErrNotSet)
		}
		return nil, fmt.Errorf("reading value of %s: %w", token.Hex(), err)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getTokenValue result type %T", out[0])
	}
	return v, nil
}

// Owner returns the account authorized to write prices.
func (o *Oracle) Owner(ctx context.Context) (common.Address, error) {
	var out []interface{}
	if err := o.contract.Call(&bind.CallOpts{Context: ctx}, &out, "owner"); err != nil {
		return common.Address{}, fmt.Errorf("reading oracle owner: %w", err)
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected owner result type %T", out[0])
	}
	return owner, nil
}

// SignerAddress returns the configured signer address, or false for a read-only Oracle.
func (o *Oracle) SignerAddress() (common.Address, bool) {
	if o.signer == nil {
		return common.Address{}, false
	}
	return o.signer.Address(), true
}

// SignerBalance returns the signer's native balance in wei.
func (o *Oracle) SignerBalance(ctx context.Context) (*big.Int, error) {
	if o.signer == nil {
		return nil, ErrNoSigner
	}
	bal, err := o.backend.BalanceAt(ctx, o.signer.Address(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching signer balance: %w", err)
	}
	return bal, nil
}

// SubmitUpdate estimates gas, adds GasHeadroomPercent and sends updateTokenValue.
// It returns as soon as the node accepted the transaction.
func (o *Oracle) SubmitUpdate(ctx context.Context, token common.Address, value *big.Int) (*types.Transaction, error) {
	if o.signer == nil {
		return nil, ErrNoSigner
	}

	input, err := oracleABI.Pack("updateTokenValue", token, value)
	if err != nil {
		return nil, fmt.Errorf("packing updateTokenValue: %w", err)
	}

	gas, err := o.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: o.signer.Address(),
		To:   &o.address,
		Data: input,
	})
	if err != nil {
		return nil, fmt.Errorf("estimating gas: %w", err)
	}

	opts, err := o.signer.TransactOpts(ctx)
	if err != nil {
		return nil, err
	}
	opts.GasLimit = gas + gas*GasHeadroomPercent/100

	tx, err := o.contract.Transact(opts, "updateTokenValue", token, value)
	if err != nil {
		return nil, fmt.Errorf("sending updateTokenValue: %w", err)
	}
	return tx, nil
}

// WaitConfirmed blocks until tx is mined or ctx is done.
// A mined but reverted transaction returns its receipt together with an error.
func (o *Oracle) WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, o.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("transaction %s reverted in block %s", tx.Hash().Hex(), receipt.BlockNumber)
	}
	return receipt, nil
}
