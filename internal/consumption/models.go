package consumption

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/getverbrauch/consumption-export/internal/calendar"
)

// Node is one hourly consumption record as returned by the API. Consumption
// is null for hours the meter has not reported yet.
type Node struct {
	From            string           `json:"from"`
	To              string           `json:"to"`
	Consumption     *decimal.Decimal `json:"consumption"`
	ConsumptionUnit string           `json:"consumptionUnit"`
}

// Response mirrors the GraphQL document
// {data: {viewer: {homes: [{consumption: {nodes: [...]}}]}}}.
type Response struct {
	Data struct {
		Viewer struct {
			Homes []struct {
				Consumption struct {
					Nodes []Node `json:"nodes"`
				} `json:"consumption"`
			} `json:"homes"`
		} `json:"viewer"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// Nodes returns the records of the first home, or nil if there is none.
func (r Response) Nodes() []Node {
	homes := r.Data.Viewer.Homes
	if len(homes) == 0 {
		return nil
	}
	return homes[0].Consumption.Nodes
}

// Reading is a parsed Node.
type Reading struct {
	From  time.Time
	To    time.Time
	Value *decimal.Decimal
	Unit  string
}

// Reading parses the node's timestamps. From keeps the offset the API sent;
// an empty To is left zero.
func (n Node) Reading() (Reading, error) {
	from, err := time.Parse(time.RFC3339, n.From)
	if err != nil {
		return Reading{}, fmt.Errorf("parse from %q: %w", n.From, err)
	}
	r := Reading{From: from, Value: n.Consumption, Unit: n.ConsumptionUnit}
	if n.To != "" {
		if r.To, err = time.Parse(time.RFC3339, n.To); err != nil {
			return Reading{}, fmt.Errorf("parse to %q: %w", n.To, err)
		}
	}
	return r, nil
}

// Snapshot is one month of raw API output plus its decoded form.
type Snapshot struct {
	Month    calendar.MonthKey
	Raw      []byte
	Response Response
}
