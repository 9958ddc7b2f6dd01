package pricing

import "fmt"

// ClampOutcome classifies a StockGuard decision
type ClampOutcome string

const (
	ClampWithin         ClampOutcome = "within_stock"
	ClampReduced        ClampOutcome = "clamped"
	ClampCeilingReached ClampOutcome = "ceiling_reached"
)

// ClampResult is the quantity StockGuard allows
type ClampResult struct {
	FinalQty     int          `json:"finalQty"`
	AllowedDelta int          `json:"allowedDelta"`
	WasClamped   bool         `json:"wasClamped"`
	Outcome      ClampOutcome `json:"outcome"`
}

// Message is the user-facing clamp report, empty when nothing was clamped
func (r ClampResult) Message() string {
	switch r.Outcome {
	case ClampCeilingReached:
		return fmt.Sprintf("stock limit reached: no more units can be added (maximum %d)", r.FinalQty)
	case ClampReduced:
		return fmt.Sprintf("only %d additional unit(s) could be added", r.AllowedDelta)
	default:
		return ""
	}
}

// Clamp applies a requested quantity change against a stock ceiling. It never
// fails: the returned FinalQty is always usable and never exceeds the ceiling.
func Clamp(currentQty, requestedDelta, stockCeiling int) ClampResult {
	if stockCeiling < 0 {
		stockCeiling = 0
	}
	if currentQty+requestedDelta <= stockCeiling {
		return ClampResult{
			FinalQty:     currentQty + requestedDelta,
			AllowedDelta: requestedDelta,
			Outcome:      ClampWithin,
		}
	}
	if currentQty >= stockCeiling {
		return ClampResult{
			FinalQty:   stockCeiling,
			WasClamped: true,
			Outcome:    ClampCeilingReached,
		}
	}
	return ClampResult{
		FinalQty:     stockCeiling,
		AllowedDelta: stockCeiling - currentQty,
		WasClamped:   true,
		Outcome:      ClampReduced,
	}
}
