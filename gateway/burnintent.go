// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"math/big"

	luxcrypto "github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/stablerail/orchestrator/amount"
	"github.com/stablerail/orchestrator/chains"
)

var (
	ErrUnknownChain = errors.New("chain not in catalogue")
	ErrZeroAmount   = errors.New("burn amount must be positive")
)

// BurnIntent asks the settlement service to debit the depositor's balance on
// the source chain and credit the recipient on the destination chain. It is
// signed off-chain by the wallet's delegate.
type BurnIntent struct {
	SourceChain       chains.Key     `json:"sourceChain"`
	DestinationChain  chains.Key     `json:"destinationChain"`
	SourceDomain      uint32         `json:"sourceDomain"`
	DestinationDomain uint32         `json:"destinationDomain"`
	Amount            *big.Int       `json:"amount"`
	Depositor         common.Address `json:"depositor"`
	Recipient         common.Address `json:"recipient"`
	MaxFee            *big.Int       `json:"maxFee"`
}

// NewBurnIntent builds a burn intent between two catalogue chains. A nil
// maxFee takes the default ceiling for the amount.
func NewBurnIntent(source, destination chains.Key, amt *big.Int, depositor, recipient common.Address, maxFee *big.Int) (*BurnIntent, error) {
	src, ok := chains.Lookup(source)
	if !ok {
		return nil, ErrUnknownChain
	}
	dst, ok := chains.Lookup(destination)
	if !ok {
		return nil, ErrUnknownChain
	}
	if amt == nil || amt.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if maxFee == nil {
		maxFee = amount.CalcMaxFee(amt)
	}
	return &BurnIntent{
		SourceChain:       source,
		DestinationChain:  destination,
		SourceDomain:      src.Domain,
		DestinationDomain: dst.Domain,
		Amount:            new(big.Int).Set(amt),
		Depositor:         depositor,
		Recipient:         recipient,
		MaxFee:            new(big.Int).Set(maxFee),
	}, nil
}

// TransferSpecHash is the deterministic identity of the transfer. The
// settlement service rejects a second spend of the same spec, which is what
// makes duplicate mint attempts benign.
func (bi *BurnIntent) TransferSpecHash() common.Hash {
	hasher := blake3.New()

	var domains [8]byte
	binary.BigEndian.PutUint32(domains[:4], bi.SourceDomain)
	binary.BigEndian.PutUint32(domains[4:], bi.DestinationDomain)
	hasher.Write(domains[:])

	var amt [32]byte
	bi.Amount.FillBytes(amt[:])
	hasher.Write(amt[:])

	hasher.Write(bi.Depositor[:])
	hasher.Write(bi.Recipient[:])

	var h common.Hash
	copy(h[:], hasher.Sum(nil))
	return h
}

// SigningDigest is the keccak digest the delegate signs: the spec hash bound
// to the fee ceiling, so a tampered maxFee invalidates the signature.
func (bi *BurnIntent) SigningDigest() common.Hash {
	spec := bi.TransferSpecHash()

	var fee [32]byte
	bi.MaxFee.FillBytes(fee[:])

	return common.BytesToHash(luxcrypto.Keccak256(spec[:], fee[:]))
}

// Sign produces the delegate's 65-byte recoverable signature over the
// signing digest.
func (bi *BurnIntent) Sign(delegateKey *ecdsa.PrivateKey) ([]byte, error) {
	digest := bi.SigningDigest()
	return luxcrypto.Sign(digest[:], delegateKey)
}
