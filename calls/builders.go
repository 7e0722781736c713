// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package calls produces the deterministic call payloads a client signs from
// its smart-contract wallet: ERC-20 approvals, gateway-wallet deposits,
// delegate authorization and attestation mints. Encoding is ABI-exact; the
// builders never touch the network.
package calls

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
)

// Call is one transaction-shaped payload inside a user operation bundle.
type Call struct {
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data"`
	Value *hexutil.Big   `json:"value,omitempty"`
}

const (
	erc20ABI = `[{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}]`

	gatewayWalletABI = `[{"inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],"name":"deposit","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"token","type":"address"},{"name":"delegate","type":"address"}],"name":"addDelegate","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

	gatewayMinterABI = `[{"inputs":[{"name":"attestation","type":"bytes"},{"name":"signature","type":"bytes"}],"name":"gatewayMint","outputs":[],"stateMutability":"nonpayable","type":"function"}]`
)

var (
	erc20         = mustABI(erc20ABI)
	gatewayWallet = mustABI(gatewayWalletABI)
	gatewayMinter = mustABI(gatewayMinterABI)
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

func pack(parsed abi.ABI, method string, args ...interface{}) ([]byte, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}
	return data, nil
}

// Approve builds an ERC-20 approve(spender, amount) call on token.
func Approve(token, spender common.Address, amt *big.Int) (Call, error) {
	data, err := pack(erc20, "approve", spender, amt)
	if err != nil {
		return Call{}, err
	}
	return Call{To: token, Data: data}, nil
}

// Transfer builds an ERC-20 transfer(to, amount) call on token.
func Transfer(token, to common.Address, amt *big.Int) (Call, error) {
	data, err := pack(erc20, "transfer", to, amt)
	if err != nil {
		return Call{}, err
	}
	return Call{To: token, Data: data}, nil
}

// Deposit builds a gateway-wallet deposit(token, amount) call.
func Deposit(wallet, token common.Address, amt *big.Int) (Call, error) {
	data, err := pack(gatewayWallet, "deposit", token, amt)
	if err != nil {
		return Call{}, err
	}
	return Call{To: wallet, Data: data}, nil
}

// AddDelegate builds the on-chain authorization allowing delegate to sign
// burn intents against the depositor's gateway balance of token.
func AddDelegate(wallet, token, delegate common.Address) (Call, error) {
	data, err := pack(gatewayWallet, "addDelegate", token, delegate)
	if err != nil {
		return Call{}, err
	}
	return Call{To: wallet, Data: data}, nil
}

// Mint builds the destination-chain gatewayMint(attestation, signature)
// call the relayer submits.
func Mint(minter common.Address, attestation, operatorSig []byte) (Call, error) {
	data, err := pack(gatewayMinter, "gatewayMint", attestation, operatorSig)
	if err != nil {
		return Call{}, err
	}
	return Call{To: minter, Data: data}, nil
}

// ApproveAndDeposit composes the approve+deposit pair, optionally prefixed
// by delegate authorization. Order matters: authorization and approval must
// land before the deposit consumes them.
func ApproveAndDeposit(wallet, token common.Address, amt *big.Int, delegate *common.Address) ([]Call, error) {
	var out []Call
	if delegate != nil {
		add, err := AddDelegate(wallet, token, *delegate)
		if err != nil {
			return nil, err
		}
		out = append(out, add)
	}
	approve, err := Approve(token, wallet, amt)
	if err != nil {
		return nil, err
	}
	deposit, err := Deposit(wallet, token, amt)
	if err != nil {
		return nil, err
	}
	return append(out, approve, deposit), nil
}

// SwapThenDeposit appends approve+deposit of the swap proceeds after the
// aggregator's swap calls.
func SwapThenDeposit(swapCalls []Call, wallet, token common.Address, amt *big.Int, delegate *common.Address) ([]Call, error) {
	tail, err := ApproveAndDeposit(wallet, token, amt, delegate)
	if err != nil {
		return nil, err
	}
	out := make([]Call, 0, len(swapCalls)+len(tail))
	out = append(out, swapCalls...)
	return append(out, tail...), nil
}
