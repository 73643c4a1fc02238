package notify

import (
	"fmt"

	"cosmossdk.io/math"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
	"github.com/alanyoungcy/poolkeeper/internal/solution"
)

func amount(v math.Int) string { return domain.FormatAmount(v, domain.AmountDecimals) }

// CloseSummary describes a pool at close-check: its state, the pending
// orders, the proposed solution and what the keeper decided.
func CloseSummary(pool domain.Pool, st domain.PoolState, dec domain.Decision) Message {
	st.Orders = domain.Orders{
		SeniorSupply: domain.ZeroIfNil(st.Orders.SeniorSupply),
		JuniorSupply: domain.ZeroIfNil(st.Orders.JuniorSupply),
		SeniorRedeem: domain.ZeroIfNil(st.Orders.SeniorRedeem),
		JuniorRedeem: domain.ZeroIfNil(st.Orders.JuniorRedeem),
	}
	msg := Message{
		Event:  EventCloseSummary,
		PoolID: pool.ID,
		Title:  pool.DisplayName() + ": " + closeVerdict(dec),
		Blocks: []Block{
			{
				Heading: "Pool",
				Fields: []Field{
					{Label: "Reserve", Value: amount(st.Reserve)},
					{Label: "Max reserve", Value: amount(st.MaxReserve)},
					{Label: "NAV", Value: amount(st.NetAssetValue)},
					{Label: "Senior ratio", Value: domain.FormatRatio(st.SeniorRatio)},
					{Label: "Max senior ratio", Value: domain.FormatRatio(st.MaxSeniorRatio)},
					{Label: "Capacity", Value: amount(st.Capacity.Total)},
				},
			},
			ordersBlock("Orders", st.Orders),
		},
	}

	if dec.Solution != nil {
		senior, junior := solution.Fulfillment(st.Orders, *dec.Solution)
		sol := ordersBlock("Solution", domain.Orders(*dec.Solution))
		sol.Fields = append(sol.Fields,
			Field{Label: "Senior fulfillment", Value: domain.FormatRatio(senior)},
			Field{Label: "Junior fulfillment", Value: domain.FormatRatio(junior)},
		)
		msg.Blocks = append(msg.Blocks, sol)
	}
	if st.CreditLine != nil {
		msg.Blocks = append(msg.Blocks, Block{
			Heading: "Credit line",
			Fields: []Field{
				{Label: "Used", Value: amount(st.CreditLine.Used)},
				{Label: "Available", Value: amount(st.CreditLine.Available)},
				{Label: "Unused", Value: amount(st.CreditLine.Unused)},
			},
		})
	}
	if dec.Reason != "" {
		msg.Blocks = append(msg.Blocks, Block{Text: dec.Reason})
	}
	if warn, ok := ReserveAlert(pool, st); ok {
		msg.Warning = warn
	}
	return msg
}

func closeVerdict(dec domain.Decision) string {
	switch dec.Action {
	case domain.ActionClose:
		return "closing epoch"
	case domain.ActionNotify:
		return "epoch not closed, review required"
	default:
		return "epoch " + dec.Phase.String()
	}
}

func ordersBlock(heading string, o domain.Orders) Block {
	return Block{
		Heading: heading,
		Fields: []Field{
			{Label: "Senior supply", Value: amount(o.SeniorSupply)},
			{Label: "Senior redeem", Value: amount(o.SeniorRedeem)},
			{Label: "Junior supply", Value: amount(o.JuniorSupply)},
			{Label: "Junior redeem", Value: amount(o.JuniorRedeem)},
		},
	}
}

// ReserveAlert reports whether the reserve after the epoch reaches the pool's
// alert threshold, a share of max reserve.
func ReserveAlert(pool domain.Pool, st domain.PoolState) (string, bool) {
	raw := pool.Metadata.Thresholds.ReserveAlert
	if raw == "" || domain.ZeroIfNil(st.MaxReserve).IsZero() {
		return "", false
	}
	ratio, err := domain.ParseRatio(raw)
	if err != nil {
		return "", false
	}
	limit, err := domain.MulDiv(st.MaxReserve, ratio, domain.Scale)
	if err != nil {
		return "", false
	}
	newReserve := domain.ZeroIfNil(st.Capacity.NewReserve)
	if newReserve.LT(limit) {
		return "", false
	}
	return fmt.Sprintf("Reserve after epoch %s reaches %s of max reserve %s",
		amount(newReserve), domain.FormatRatio(ratio), amount(st.MaxReserve)), true
}

// ActionSubmitted announces a transaction the keeper broadcast.
func ActionSubmitted(pool domain.Pool, dec domain.Decision, rec domain.TxRecord) Message {
	fields := []Field{
		{Label: "Action", Value: dec.Action.String()},
		{Label: "Phase", Value: dec.Phase.String()},
		{Label: "Transaction", Value: rec.Hash},
	}
	if !domain.ZeroIfNil(dec.Score).IsZero() {
		fields = append(fields, Field{Label: "Score", Value: dec.Score.String()})
	}
	msg := Message{
		Event:  EventAction,
		PoolID: pool.ID,
		Title:  fmt.Sprintf("%s: %s submitted", pool.DisplayName(), dec.Action),
		Blocks: []Block{{Fields: fields}},
	}
	if dec.Reason != "" {
		msg.Blocks = append(msg.Blocks, Block{Text: dec.Reason})
	}
	return msg
}

// TxSettled announces a mined transaction.
func TxSettled(poolName string, rec domain.TxRecord, hash string, succeeded bool) Message {
	outcome := "confirmed"
	if !succeeded {
		outcome = "reverted"
	}
	return Message{
		Event:  EventTxSettled,
		PoolID: rec.PoolID,
		Title:  fmt.Sprintf("%s: %s %s", poolName, rec.Action, outcome),
		Blocks: []Block{{Fields: []Field{
			{Label: "Transaction", Value: hash},
			{Label: "Nonce", Value: fmt.Sprint(rec.Nonce)},
			{Label: "Resubmissions", Value: fmt.Sprint(rec.Retries)},
		}}},
	}
}

// PoolFailure reports a pool skipped for a tick.
func PoolFailure(pool domain.Pool, task string, err error) Message {
	return Message{
		Event:  EventError,
		PoolID: pool.ID,
		Title:  fmt.Sprintf("%s: %s failed", pool.DisplayName(), task),
		Blocks: []Block{{Text: err.Error()}},
	}
}
