// market/execution.go
package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side int

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
	SideSellShort
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "Buy"
	case SideSell:
		return "Sell"
	case SideSellShort:
		return "SellShort"
	default:
		return "Unknown"
	}
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Sign is +1 for buys, -1 for sells and short sells, 0 otherwise.
func (s Side) Sign() int64 {
	switch s {
	case SideBuy:
		return 1
	case SideSell, SideSellShort:
		return -1
	default:
		return 0
	}
}

// ExecType values that move a position.
const (
	ExecTypePartialFill = "1"
	ExecTypeFill        = "2"
	ExecTypeTrade       = "F"
)

// ExecutionEvent is one decoded execution report. It is a value type and is
// never mutated after the parser builds it.
type ExecutionEvent struct {
	MsgSeqNum          int64           `json:"msg_seq_num,omitempty"`
	Symbol             string          `json:"symbol"`
	Side               Side            `json:"side"`
	Quantity           int64           `json:"quantity"`
	Price              decimal.Decimal `json:"price"`
	LastQty            int64           `json:"last_qty,omitempty"`
	LastPx             decimal.Decimal `json:"last_px"`
	ExecutionType      string          `json:"exec_type"`
	OrdStatus          string          `json:"ord_status,omitempty"`
	CumulativeQuantity int64           `json:"cum_qty"`
	OrderID            string          `json:"order_id"`
	ClientOrderID      string          `json:"cl_ord_id"`
	ExecID             string          `json:"exec_id,omitempty"`
	Account            string          `json:"account,omitempty"`
	TransactTime       time.Time       `json:"transact_time"`
	Raw                string          `json:"-"`
}

// IsFill reports whether the report carries traded quantity.
func (e ExecutionEvent) IsFill() bool {
	switch e.ExecutionType {
	case ExecTypePartialFill, ExecTypeFill, ExecTypeTrade:
		return true
	}
	return false
}

// SecurityID is the normalized key the monitor partitions on.
func (e ExecutionEvent) SecurityID() string {
	return NormalizeID(e.Symbol)
}

func (e ExecutionEvent) String() string {
	return fmt.Sprintf("%s %s %d@%s cum=%d exec=%s order=%s",
		e.Symbol, e.Side, e.Quantity, e.Price.String(), e.CumulativeQuantity, e.ExecutionType, e.OrderID)
}

// NormalizeID upper-cases and trims security and jurisdiction keys.
func NormalizeID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
