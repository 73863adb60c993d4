package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OracleInspector exposes the read-only oracle state checked before scheduling.
type OracleInspector interface {
	Owner(ctx context.Context) (common.Address, error)
	SignerAddress() (common.Address, bool)
	SignerBalance(ctx context.Context) (*big.Int, error)
}

// Preflight checks that the signer owns the oracle and holds at least minBalance wei.
// Problems are logged and returned as warnings; they never stop startup.
func Preflight(ctx context.Context, oracle OracleInspector, minBalance *big.Int) []string {
	var warnings []string
	warn := func(msg string, args ...any) {
		w := fmt.Sprintf(msg, args...)
		slog.Warn("Preflight: " + w)
		warnings = append(warnings, w)
	}

	signer, ok := oracle.SignerAddress()
	if !ok {
		warn("no signer configured")
		return warnings
	}

	owner, err := oracle.Owner(ctx)
	switch {
	case err != nil:
		warn("could not read oracle owner: %v", err)
	case owner != signer:
		warn("signer %s is not the oracle owner %s, updates will revert", signer.Hex(), owner.Hex())
	}

	balance, err := oracle.SignerBalance(ctx)
	switch {
	case err != nil:
		warn("could not read signer balance: %v", err)
	case minBalance != nil && balance.Cmp(minBalance) < 0:
		warn("signer balance %s wei is below the minimum %s wei", balance, minBalance)
	}

	if len(warnings) == 0 {
		slog.Info("Preflight: ok", "signer", signer.Hex(), "balance", balance)
	}
	return warnings
}
