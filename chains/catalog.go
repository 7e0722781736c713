// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chains holds the static chain catalogue: for every supported chain
// its EVM chain id, gateway domain, native USDC address, finality hint and
// capability flags. One entry is the hub, the resting place for balances.
package chains

import (
	"github.com/luxfi/geth/common"
)

// Key identifies a chain in user intents and persisted records.
type Key string

const (
	Base      Key = "base"
	Arbitrum  Key = "arbitrum"
	Optimism  Key = "optimism"
	Ethereum  Key = "ethereum"
	Polygon   Key = "polygon"
	Avalanche Key = "avalanche"
)

// Hub is the canonical chain. Internal transfers on the hub are instant and
// carry no service fee.
const Hub = Base

// NativeToken is the placeholder address aggregators use for a chain's
// native token; approvals are skipped for it.
var NativeToken = common.Address{}

// Chain describes one catalogue entry.
type Chain struct {
	Key             Key
	ID              uint64         // EVM chain id
	Domain          uint32         // gateway domain number
	USDC            common.Address // native USDC token
	FinalitySeconds uint64         // deposit finality hint
	Gateway         bool           // participates in the settlement gateway
	SmartAccount    bool           // supports the smart-account flow
}

// Hub reports whether this entry is the hub chain.
func (c Chain) Hub() bool { return c.Key == Hub }

var catalog = map[Key]Chain{
	Base: {
		Key:             Base,
		ID:              8453,
		Domain:          6,
		USDC:            common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		FinalitySeconds: 900,
		Gateway:         true,
		SmartAccount:    true,
	},
	Arbitrum: {
		Key:             Arbitrum,
		ID:              42161,
		Domain:          3,
		USDC:            common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
		FinalitySeconds: 1140,
		Gateway:         true,
		SmartAccount:    true,
	},
	Optimism: {
		Key:             Optimism,
		ID:              10,
		Domain:          2,
		USDC:            common.HexToAddress("0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"),
		FinalitySeconds: 1140,
		Gateway:         true,
		SmartAccount:    true,
	},
	Ethereum: {
		Key:             Ethereum,
		ID:              1,
		Domain:          0,
		USDC:            common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		FinalitySeconds: 1140,
		Gateway:         true,
		SmartAccount:    true,
	},
	Polygon: {
		Key:             Polygon,
		ID:              137,
		Domain:          7,
		USDC:            common.HexToAddress("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"),
		FinalitySeconds: 2700,
		Gateway:         true,
		SmartAccount:    true,
	},
	Avalanche: {
		Key:             Avalanche,
		ID:              43114,
		Domain:          1,
		USDC:            common.HexToAddress("0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E"),
		FinalitySeconds: 60,
		Gateway:         true,
		SmartAccount:    false,
	},
}

// Lookup returns the catalogue entry for a key.
func Lookup(key Key) (Chain, bool) {
	c, ok := catalog[key]
	return c, ok
}

// HubChain returns the hub catalogue entry.
func HubChain() Chain {
	return catalog[Hub]
}

// GatewaySupported reports whether a key names a gateway-capable chain.
func GatewaySupported(key Key) bool {
	c, ok := catalog[key]
	return ok && c.Gateway
}

// GatewayChains lists every gateway-capable chain in stable key order.
func GatewayChains() []Chain {
	keys := []Key{Base, Arbitrum, Optimism, Ethereum, Polygon, Avalanche}
	out := make([]Chain, 0, len(keys))
	for _, k := range keys {
		if c := catalog[k]; c.Gateway {
			out = append(out, c)
		}
	}
	return out
}
