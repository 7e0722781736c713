// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/stablerail/orchestrator/amount"
	"github.com/stablerail/orchestrator/calls"
	"github.com/stablerail/orchestrator/chains"
	"github.com/stablerail/orchestrator/swaprouter"
)

// CollectRequest gathers a user's on-chain USDC from several chains into one
// destination, defaulting to the hub.
type CollectRequest struct {
	Sources     []chains.Key `json:"sources"`
	Destination chains.Key   `json:"destination,omitempty"`
}

// Recipient is one leg of a send. A nil Address means "to self", the bridge
// case. OutputToken asks for a post-mint swap into that token.
type Recipient struct {
	Chain               chains.Key      `json:"chain"`
	Amount              string          `json:"amount"`
	Address             *common.Address `json:"address,omitempty"`
	OutputToken         *common.Address `json:"outputToken,omitempty"`
	OutputTokenDecimals uint8           `json:"outputTokenDecimals,omitempty"`
	Slippage            float64         `json:"slippage,omitempty"`
}

// SendRequest is the unified send / bridge / batch-send intent.
type SendRequest struct {
	SourceChain chains.Key  `json:"sourceChain,omitempty"`
	Recipients  []Recipient `json:"recipients"`
}

// SwapDepositRequest converts an arbitrary token into USDC and deposits it,
// bridging to the hub when the source chain is not the hub.
type SwapDepositRequest struct {
	SourceChain   chains.Key     `json:"sourceChain"`
	SourceToken   common.Address `json:"sourceToken"`
	Amount        string         `json:"amount"`
	TokenDecimals uint8          `json:"tokenDecimals,omitempty"`
	Slippage      float64        `json:"slippage,omitempty"`
}

const (
	estimateInstant = "instant"
	estimateBridge  = "15-20 minutes"
)

// plan accumulates an operation under construction.
type plan struct {
	op    *Operation
	steps []*Step
}

func (e *Engine) newPlan(userID string, typ OperationType, params interface{}) (*plan, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return &plan{
		op: &Operation{
			ID:        e.newID(),
			UserID:    userID,
			Type:      typ,
			Params:    raw,
			CreatedAt: e.now(),
		},
	}, nil
}

func (p *plan) addStep(e *Engine, chain chains.Key, typ StepType, status StepStatus) *Step {
	st := &Step{
		ID:          e.newID(),
		OperationID: p.op.ID,
		StepIndex:   len(p.steps),
		Chain:       chain,
		Type:        typ,
		Status:      status,
		CreatedAt:   e.now(),
	}
	p.steps = append(p.steps, st)
	return st
}

func (p *plan) addSignRequest(st *Step, desc string, serverSide, pendingMint bool) {
	p.op.SignRequests = append(p.op.SignRequests, SignRequest{
		StepID:      st.ID,
		Chain:       st.Chain,
		Type:        st.Type,
		Calls:       st.Calls,
		Description: desc,
		ServerSide:  serverSide,
		PendingMint: pendingMint,
	})
}

// dropSignRequest removes the outstanding request for a step that was
// planned and then optimized away.
func (p *plan) dropSignRequest(stepID string) {
	out := p.op.SignRequests[:0]
	for _, sr := range p.op.SignRequests {
		if sr.StepID != stepID {
			out = append(out, sr)
		}
	}
	p.op.SignRequests = out
}

// persist derives the operation status and writes everything in one batch.
func (e *Engine) persist(p *plan) (*Operation, error) {
	p.op.Status = DeriveOperationStatus(p.steps)
	if err := e.store.CreateOperation(p.op, p.steps); err != nil {
		return nil, err
	}
	e.metrics.OperationsCreated.WithLabelValues(string(p.op.Type)).Inc()
	e.log.Info("operation planned",
		"id", p.op.ID,
		"type", p.op.Type,
		"status", p.op.Status,
		"steps", len(p.steps))
	p.op.Steps = p.steps
	return p.op, nil
}

// onChainBalances reads the wallet's USDC balance on every chain in
// parallel. A failed read counts as zero so one unhealthy RPC never aborts
// the plan.
func (e *Engine) onChainBalances(ctx context.Context, wallet common.Address, keys []chains.Key) map[chains.Key]*big.Int {
	out := make(map[chains.Key]*big.Int, len(keys))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key chains.Key) {
			defer wg.Done()
			bal, err := e.gateway.OnChainBalance(ctx, key, wallet)
			if err != nil {
				e.log.Warn("balance probe failed", "chain", key, "err", err)
				bal = new(big.Int)
			}
			mu.Lock()
			out[key] = bal
			mu.Unlock()
		}(key)
	}
	wg.Wait()
	return out
}

// delegateNeeded probes delegate authorization on every chain in parallel.
// A failed probe counts as not-authorized.
func (e *Engine) delegateNeeded(ctx context.Context, wallet, delegate common.Address, keys []chains.Key) map[chains.Key]bool {
	out := make(map[chains.Key]bool, len(keys))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key chains.Key) {
			defer wg.Done()
			ok, err := e.gateway.IsDelegateAuthorized(ctx, key, wallet, delegate)
			if err != nil {
				e.log.Warn("delegate probe failed", "chain", key, "err", err)
				ok = false
			}
			mu.Lock()
			out[key] = !ok
			mu.Unlock()
		}(key)
	}
	wg.Wait()
	return out
}

// PrepareCollect plans gathering the user's on-chain USDC from the given
// sources into destination.
func (e *Engine) PrepareCollect(ctx context.Context, userID string, req CollectRequest) (*Operation, error) {
	dest := req.Destination
	if dest == "" {
		dest = chains.Hub
	}
	if len(req.Sources) == 0 {
		return nil, validationf("no source chains specified")
	}
	for _, key := range append([]chains.Key{dest}, req.Sources...) {
		if !chains.GatewaySupported(key) {
			return nil, validationf("chain %q does not support gateway transfers", key)
		}
	}

	wallet, err := e.accounts.WalletAddress(ctx, userID)
	if err != nil {
		return nil, err
	}
	delegate, err := e.accounts.DelegateAddress(ctx, userID)
	if err != nil {
		return nil, err
	}

	balances := e.onChainBalances(ctx, wallet, req.Sources)
	var funded []chains.Key
	for _, key := range req.Sources {
		if balances[key].Sign() > 0 {
			funded = append(funded, key)
		}
	}
	if len(funded) == 0 {
		return nil, validationf("No on-chain USDC balance found on specified chains")
	}

	needsDelegate := e.delegateNeeded(ctx, wallet, delegate, funded)

	p, err := e.newPlan(userID, OpCollect, req)
	if err != nil {
		return nil, err
	}

	totalBurn := new(big.Int)
	var legs []DepositLeg
	burns := make(map[chains.Key]*big.Int, len(funded))
	for _, key := range funded {
		depositAmt := balances[key]
		burnAmt := amount.NetBurnAmount(depositAmt)
		burns[key] = burnAmt
		totalBurn.Add(totalBurn, burnAmt)
		legs = append(legs, DepositLeg{
			Chain:         key,
			DepositAmount: amount.FormatUSDC(depositAmt),
			BurnAmount:    amount.FormatUSDC(burnAmt),
		})

		cfg, _ := chains.Lookup(key)
		var delegatePtr *common.Address
		if needsDelegate[key] {
			delegatePtr = &delegate
		}
		bundle, err := calls.ApproveAndDeposit(wallet, cfg.USDC, depositAmt, delegatePtr)
		if err != nil {
			return nil, err
		}
		st := p.addStep(e, key, StepApproveAndDeposit, StepAwaitingSignature)
		st.Calls = bundle
		p.addSignRequest(st, fmt.Sprintf("Deposit %s USDC on %s", amount.FormatUSDC(depositAmt), key), false, false)
	}

	for _, key := range funded {
		st := p.addStep(e, key, StepBurnIntent, StepPending)
		st.Burn = &BurnParams{
			SourceChain:      key,
			DestinationChain: dest,
			Amount:           burns[key],
			Depositor:        wallet,
			Recipient:        wallet,
		}
		p.addSignRequest(st, fmt.Sprintf("Transfer %s USDC from %s to %s", amount.FormatUSDC(burns[key]), key, dest), true, false)
	}
	p.addStep(e, dest, StepMint, StepPending)

	fee, err := amount.ServiceFee(totalBurn, amount.BatchFeePercent)
	if err != nil {
		return nil, err
	}
	p.op.FeeAmount = amount.FormatUSDC(fee)
	p.op.FeePercent = amount.BatchFeePercent
	p.op.Summary = Summary{
		Deposits:      legs,
		TotalAmount:   amount.FormatUSDC(totalBurn),
		FeeAmount:     p.op.FeeAmount,
		FeePercent:    amount.BatchFeePercent,
		EstimatedTime: estimateBridge,
	}
	return e.persist(p)
}

// PrepareSend plans the unified send / bridge / batch-send flow.
func (e *Engine) PrepareSend(ctx context.Context, userID string, req SendRequest) (*Operation, error) {
	source := req.SourceChain
	if source == "" {
		source = chains.Hub
	}
	if len(req.Recipients) == 0 {
		return nil, validationf("no recipients specified")
	}
	if !chains.GatewaySupported(source) {
		return nil, validationf("chain %q does not support gateway transfers", source)
	}
	for _, r := range req.Recipients {
		if !chains.GatewaySupported(r.Chain) {
			return nil, validationf("chain %q does not support gateway transfers", r.Chain)
		}
	}

	wallet, err := e.accounts.WalletAddress(ctx, userID)
	if err != nil {
		return nil, err
	}
	delegate, err := e.accounts.DelegateAddress(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Normalize recipients: resolve "to self" and parse amounts.
	type leg struct {
		Recipient
		addr     common.Address
		amt      *big.Int
		internal bool
	}
	legs := make([]leg, 0, len(req.Recipients))
	totalAmount := new(big.Int)
	crossChainTotal := new(big.Int)
	allInternal := true
	for _, r := range req.Recipients {
		amt, err := amount.ParseUSDC(r.Amount)
		if err != nil || amt.Sign() <= 0 {
			return nil, validationf("invalid amount %q", r.Amount)
		}
		addr := wallet
		if r.Address != nil {
			addr = *r.Address
		}
		internal := source == r.Chain && r.Chain == chains.Hub
		if !internal {
			allInternal = false
			crossChainTotal.Add(crossChainTotal, amt)
		}
		totalAmount.Add(totalAmount, amt)
		legs = append(legs, leg{Recipient: r, addr: addr, amt: amt, internal: internal})
	}

	opType := OpBatchSend
	if len(legs) == 1 {
		if legs[0].addr == wallet {
			opType = OpBridge
		} else {
			opType = OpSend
		}
	}

	feePercent := amount.BatchFeePercent
	if opType == OpSend {
		feePercent = amount.CrossChainFeePercent
	}
	fee := new(big.Int)
	if allInternal {
		feePercent = "0"
	} else {
		fee, err = amount.ServiceFee(totalAmount, feePercent)
		if err != nil {
			return nil, err
		}
	}

	// Funding: does the cross-chain total need a fresh deposit on source?
	var (
		needsDeposit  bool
		depositAmount *big.Int
		sourceOnChain = new(big.Int)
	)
	if crossChainTotal.Sign() > 0 {
		required := amount.GrossDepositAmount(crossChainTotal)

		deposited := new(big.Int)
		balances, err := e.gateway.DepositedBalances(ctx, wallet)
		if err != nil {
			return nil, err
		}
		for _, b := range balances {
			if b.Chain == source {
				deposited = b.Balance
				break
			}
		}

		if deposited.Cmp(required) < 0 {
			onChain, err := e.gateway.OnChainBalance(ctx, source, wallet)
			if err != nil {
				return nil, err
			}
			sourceOnChain = onChain
			available := new(big.Int).Add(onChain, deposited)
			if available.Cmp(required) < 0 {
				return nil, validationf("Insufficient funds on %s: maximum sendable amount is %s USDC",
					source, amount.FormatUSDC(amount.NetBurnAmount(available)))
			}
			needsDeposit = true
			depositAmount = new(big.Int).Sub(required, deposited)
			if depositAmount.Cmp(onChain) > 0 {
				depositAmount = new(big.Int).Set(onChain)
			}
		}
	}

	delegateRequired := false
	if crossChainTotal.Sign() > 0 {
		delegateRequired = e.delegateNeeded(ctx, wallet, delegate, []chains.Key{source})[source]
	}

	p, err := e.newPlan(userID, opType, req)
	if err != nil {
		return nil, err
	}

	srcCfg, _ := chains.Lookup(source)
	switch {
	case needsDeposit:
		var delegatePtr *common.Address
		if delegateRequired {
			delegatePtr = &delegate
		}
		bundle, err := calls.ApproveAndDeposit(wallet, srcCfg.USDC, depositAmount, delegatePtr)
		if err != nil {
			return nil, err
		}
		st := p.addStep(e, source, StepApproveAndDeposit, StepAwaitingSignature)
		st.Calls = bundle
		p.addSignRequest(st, fmt.Sprintf("Deposit %s USDC on %s", amount.FormatUSDC(depositAmount), source), false, false)
	case delegateRequired:
		add, err := calls.AddDelegate(wallet, srcCfg.USDC, delegate)
		if err != nil {
			return nil, err
		}
		st := p.addStep(e, source, StepAddDelegate, StepAwaitingSignature)
		st.Calls = []calls.Call{add}
		p.addSignRequest(st, fmt.Sprintf("Authorize transfer delegate on %s", source), false, false)
	}

	hubCfg, _ := chains.Lookup(chains.Hub)
	var estimates []SwapEstimate
	for _, l := range legs {
		switch {
		case l.internal:
			transfer, err := calls.Transfer(hubCfg.USDC, l.addr, l.amt)
			if err != nil {
				return nil, err
			}
			st := p.addStep(e, chains.Hub, StepTransfer, StepAwaitingSignature)
			st.Calls = []calls.Call{transfer}
			st.Transfer = &TransferParams{To: l.addr, Amount: l.amt}
			p.addSignRequest(st, fmt.Sprintf("Send %s USDC", amount.FormatUSDC(l.amt)), false, false)

		case l.OutputToken == nil:
			burn := p.addStep(e, l.Chain, StepBurnIntent, StepPending)
			burn.Burn = &BurnParams{
				SourceChain:      source,
				DestinationChain: l.Chain,
				Amount:           l.amt,
				Depositor:        wallet,
				Recipient:        l.addr,
			}
			p.addSignRequest(burn, fmt.Sprintf("Transfer %s USDC to %s", amount.FormatUSDC(l.amt), l.Chain), true, false)
			p.addStep(e, l.Chain, StepMint, StepPending)

		default:
			est, err := e.planSwapLeg(ctx, p, wallet, source, l.Chain, l.addr, l.amt,
				*l.OutputToken, l.OutputTokenDecimals, l.Slippage, len(legs) == 1, sourceOnChain)
			if err != nil {
				return nil, err
			}
			if est != nil {
				estimates = append(estimates, *est)
			}
		}
	}

	estimated := estimateBridge
	if allInternal {
		estimated = estimateInstant
	}
	p.op.FeeAmount = amount.FormatUSDC(fee)
	p.op.FeePercent = feePercent
	p.op.Summary = Summary{
		TotalAmount:   amount.FormatUSDC(totalAmount),
		FeeAmount:     p.op.FeeAmount,
		FeePercent:    feePercent,
		EstimatedTime: estimated,
		SwapEstimates: estimates,
	}
	return e.persist(p)
}

// planSwapLeg plans one recipient that wants a non-USDC output token: a
// burn/mint pair followed by a post-mint swap, or a direct same-chain swap
// when the user's on-chain USDC already covers the amount.
func (e *Engine) planSwapLeg(
	ctx context.Context,
	p *plan,
	wallet common.Address,
	source, destination chains.Key,
	recipient common.Address,
	amt *big.Int,
	outputToken common.Address,
	outputDecimals uint8,
	userSlippage float64,
	singleRecipient bool,
	sourceOnChain *big.Int,
) (*SwapEstimate, error) {
	slippage := amount.EffectiveSwapSlippage(amt, userSlippage)
	destCfg, _ := chains.Lookup(destination)

	quote, err := e.router.GetQuote(ctx, swaprouter.QuoteRequest{
		FromChain:   destination,
		ToChain:     destination,
		FromToken:   destCfg.USDC,
		ToToken:     outputToken,
		FromAmount:  amt,
		FromAddress: wallet,
		ToAddress:   recipient,
		Slippage:    slippage,
	})
	if err != nil {
		return nil, err
	}

	burn := p.addStep(e, destination, StepBurnIntent, StepPending)
	burn.Burn = &BurnParams{
		SourceChain:      source,
		DestinationChain: destination,
		Amount:           amt,
		Depositor:        wallet,
		// The swap consumes USDC from the user's own wallet after the mint.
		Recipient: wallet,
	}
	p.addSignRequest(burn, fmt.Sprintf("Transfer %s USDC to %s", amount.FormatUSDC(amt), destination), true, false)
	mint := p.addStep(e, destination, StepMint, StepPending)

	if source == destination && singleRecipient && sourceOnChain.Cmp(amt) >= 0 {
		// The USDC is already on the right chain: swap directly and skip the
		// bridge pair that was just planned.
		burn.Status = StepSkipped
		mint.Status = StepSkipped
		p.dropSignRequest(burn.ID)

		swapCalls, err := swaprouter.BuildSwapCalls(quote, destCfg.USDC, amt)
		if err != nil {
			return nil, err
		}
		st := p.addStep(e, destination, StepLifiSwap, StepAwaitingSignature)
		st.Calls = swapCalls
		st.Swap = &SwapParams{
			OutputToken:         outputToken,
			OutputTokenDecimals: outputDecimals,
			Slippage:            slippage,
			Recipient:           recipient,
			USDCAmount:          amt,
		}
		p.addSignRequest(st, "Swap USDC for the requested token", false, false)
	} else {
		st := p.addStep(e, destination, StepLifiSwap, StepPending)
		st.Swap = &SwapParams{
			OutputToken:         outputToken,
			OutputTokenDecimals: outputDecimals,
			Slippage:            slippage,
			Recipient:           recipient,
			USDCAmount:          amt,
		}
		// Requires a fresh quote and signature once the mint lands.
		p.addSignRequest(st, "Swap USDC for the requested token", false, true)
	}

	return &SwapEstimate{
		Chain:             destination,
		Tool:              quote.Tool,
		ToAmount:          quote.Estimate.ToAmount.String(),
		ToAmountMin:       quote.Estimate.ToAmountMin.String(),
		ExecutionDuration: quote.Estimate.ExecutionDuration,
	}, nil
}

// PrepareSwapDeposit plans swapping an arbitrary token into USDC, depositing
// it, and bridging to the hub when the source chain is not the hub.
func (e *Engine) PrepareSwapDeposit(ctx context.Context, userID string, req SwapDepositRequest) (*Operation, error) {
	cfg, ok := chains.Lookup(req.SourceChain)
	if !ok || !chains.GatewaySupported(req.SourceChain) {
		return nil, validationf("chain %q does not support gateway transfers", req.SourceChain)
	}
	if !cfg.SmartAccount {
		return nil, validationf("chain %q does not support the smart-account flow", req.SourceChain)
	}

	decimals := req.TokenDecimals
	if decimals == 0 {
		decimals = 18
	}
	amt, err := amount.ParseDecimal(req.Amount, decimals)
	if err != nil || amt.Sign() <= 0 {
		return nil, validationf("invalid amount %q", req.Amount)
	}

	wallet, err := e.accounts.WalletAddress(ctx, userID)
	if err != nil {
		return nil, err
	}
	delegate, err := e.accounts.DelegateAddress(ctx, userID)
	if err != nil {
		return nil, err
	}

	slippage := req.Slippage
	if slippage <= 0 {
		slippage = 0.005
	}
	quote, err := e.router.GetQuote(ctx, swaprouter.QuoteRequest{
		FromChain:   req.SourceChain,
		ToChain:     req.SourceChain,
		FromToken:   req.SourceToken,
		ToToken:     cfg.USDC,
		FromAmount:  amt,
		FromAddress: wallet,
		Slippage:    slippage,
	})
	if err != nil {
		return nil, err
	}
	depositAmount := quote.Estimate.ToAmountMin

	var delegatePtr *common.Address
	if e.delegateNeeded(ctx, wallet, delegate, []chains.Key{req.SourceChain})[req.SourceChain] {
		delegatePtr = &delegate
	}

	swapCalls, err := swaprouter.BuildSwapCalls(quote, req.SourceToken, amt)
	if err != nil {
		return nil, err
	}
	bundle, err := calls.SwapThenDeposit(swapCalls, wallet, cfg.USDC, depositAmount, delegatePtr)
	if err != nil {
		return nil, err
	}

	p, err := e.newPlan(userID, OpSwapDeposit, req)
	if err != nil {
		return nil, err
	}

	st := p.addStep(e, req.SourceChain, StepLifiSwap, StepAwaitingSignature)
	st.Calls = bundle
	st.Swap = &SwapParams{
		OutputToken:         cfg.USDC,
		OutputTokenDecimals: amount.USDCDecimals,
		Slippage:            slippage,
		Recipient:           wallet,
		USDCAmount:          depositAmount,
	}
	p.addSignRequest(st, fmt.Sprintf("Swap and deposit on %s", req.SourceChain), false, false)

	burnAmt := new(big.Int)
	if req.SourceChain != chains.Hub {
		burnAmt = amount.NetBurnAmount(depositAmount)
		burn := p.addStep(e, req.SourceChain, StepBurnIntent, StepPending)
		burn.Burn = &BurnParams{
			SourceChain:      req.SourceChain,
			DestinationChain: chains.Hub,
			Amount:           burnAmt,
			Depositor:        wallet,
			Recipient:        wallet,
		}
		p.addSignRequest(burn, fmt.Sprintf("Transfer %s USDC to %s", amount.FormatUSDC(burnAmt), chains.Hub), true, false)
		p.addStep(e, chains.Hub, StepMint, StepPending)
	}

	p.op.FeeAmount = amount.FormatUSDC(new(big.Int))
	p.op.FeePercent = "0"
	estimated := estimateInstant
	if req.SourceChain != chains.Hub {
		estimated = estimateBridge
	}
	p.op.Summary = Summary{
		TotalAmount:   amount.FormatUSDC(depositAmount),
		FeeAmount:     p.op.FeeAmount,
		FeePercent:    "0",
		EstimatedTime: estimated,
		SwapEstimates: []SwapEstimate{{
			Chain:             req.SourceChain,
			Tool:              quote.Tool,
			ToAmount:          quote.Estimate.ToAmount.String(),
			ToAmountMin:       quote.Estimate.ToAmountMin.String(),
			ExecutionDuration: quote.Estimate.ExecutionDuration,
		}},
	}
	return e.persist(p)
}
