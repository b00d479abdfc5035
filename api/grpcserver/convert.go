package grpcserver

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"forecast/domain/errs"
	"forecast/domain/market"
	"forecast/domain/orderbook"
	"forecast/service"
)

// -------------------- Requests --------------------

type args map[string]*structpb.Value

func argsOf(in *structpb.Struct) args { return in.GetFields() }

func (a args) str(k string) string { return a[k].GetStringValue() }

func (a args) required(k string) (string, error) {
	v := a.str(k)
	if v == "" {
		return "", errs.New(errs.InvalidInput, "%s is required", k)
	}
	return v, nil
}

// qty accepts whole numbers only.
func (a args) qty(k string) (int64, error) {
	v, ok := a[k]
	if !ok {
		return 0, errs.New(errs.InvalidInput, "%s is required", k)
	}
	switch x := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		f := x.NumberValue
		if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return 0, errs.New(errs.InvalidInput, "%s must be a whole number", k)
		}
		return int64(f), nil
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(x.StringValue, 10, 64)
		if err != nil {
			return 0, errs.New(errs.InvalidInput, "%s must be a whole number", k)
		}
		return n, nil
	default:
		return 0, errs.New(errs.InvalidInput, "%s must be a whole number", k)
	}
}

// price accepts "0.35" or 0.35.
func (a args) price(k string) (decimal.Decimal, error) {
	v, ok := a[k]
	if !ok {
		return decimal.Zero, errs.New(errs.InvalidInput, "%s is required", k)
	}
	switch x := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return decimal.NewFromFloat(x.NumberValue), nil
	case *structpb.Value_StringValue:
		p, err := decimal.NewFromString(x.StringValue)
		if err != nil {
			return decimal.Zero, errs.New(errs.InvalidInput, "%s is not a decimal: %q", k, x.StringValue)
		}
		return p, nil
	default:
		return decimal.Zero, errs.New(errs.InvalidInput, "%s must be a decimal", k)
	}
}

func (a args) outcomes(k string) []market.OutcomeSpec {
	var out []market.OutcomeSpec
	for _, v := range a[k].GetListValue().GetValues() {
		switch x := v.GetKind().(type) {
		case *structpb.Value_StringValue:
			out = append(out, market.OutcomeSpec{Name: x.StringValue})
		case *structpb.Value_StructValue:
			f := x.StructValue.GetFields()
			out = append(out, market.OutcomeSpec{ID: f["id"].GetStringValue(), Name: f["name"].GetStringValue()})
		}
	}
	return out
}

// -------------------- Responses --------------------

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func optMoney(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return money(*d)
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func orderMap(o orderbook.Order) map[string]any {
	return map[string]any{
		"id":      strconv.FormatUint(o.ID, 10),
		"side":    o.Side.String(),
		"price":   money(o.Price),
		"qty":     o.Qty,
		"userId":  o.UserID,
		"created": stamp(o.Created),
	}
}

func matchesList(ms []orderbook.Match) []any {
	out := make([]any, 0, len(ms))
	for _, m := range ms {
		out = append(out, map[string]any{
			"buyer":      m.Buyer,
			"seller":     m.Seller,
			"price":      money(m.Price),
			"qty":        m.Qty,
			"buyerLimit": money(m.BuyerLimit),
			"time":       stamp(m.Time),
		})
	}
	return out
}

func levels(ls []orderbook.Level) []any {
	out := make([]any, 0, len(ls))
	for _, l := range ls {
		out = append(out, map[string]any{"price": money(l.Price), "qty": l.Qty})
	}
	return out
}

func marketMap(info service.MarketInfo) map[string]any {
	outcomes := make([]any, 0, len(info.Outcomes))
	for _, o := range info.Outcomes {
		outcomes = append(outcomes, map[string]any{
			"id":        o.ID,
			"name":      o.Name,
			"bids":      levels(o.Depth.Bids),
			"asks":      levels(o.Depth.Asks),
			"bestBid":   optMoney(o.BestBid),
			"bestAsk":   optMoney(o.BestAsk),
			"lastPrice": optMoney(o.Depth.LastPrice),
			"volume":    o.Depth.Volume,
		})
	}
	return map[string]any{
		"id":             info.ID,
		"description":    info.Description,
		"created":        stamp(info.Created),
		"outcomes":       outcomes,
		"totalBestBids":  money(info.TotalBestBids),
		"totalBestAsks":  money(info.TotalBestAsks),
		"bundlePrice":    money(info.BundlePrice),
		"resolved":       info.Resolved,
		"winningOutcome": info.Winner,
	}
}

func (a args) orderID(k string) (uint64, error) {
	n, err := a.qty(k)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errs.New(errs.InvalidInput, "%s must be positive", k)
	}
	return uint64(n), nil
}
