package backtest

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/mohithlingosme/tradebot/journal"
)

// jsonFloat is a float64 that survives JSON encoding when non-finite:
// NaN encodes as null, infinities as "inf"/"-inf". encoding/json rejects
// the raw values outright.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte("null"), nil
	case math.IsInf(v, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-inf"`), nil
	}
	return json.Marshal(v)
}

// Report is the serializable shape of a run. Metrics fields are mirrored as
// jsonFloat so a profit factor of +Inf or an undefined Sharpe still encodes.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`

	StartEquity      jsonFloat `json:"start_equity"`
	EndEquity        jsonFloat `json:"end_equity"`
	TotalReturn      jsonFloat `json:"total_return"`
	AnnualizedReturn jsonFloat `json:"annualized_return"`
	Trades           int       `json:"trades"`
	Wins             int       `json:"wins"`
	Losses           int       `json:"losses"`
	WinRate          jsonFloat `json:"win_rate"`
	ProfitFactor     jsonFloat `json:"profit_factor"`
	GrossProfit      jsonFloat `json:"gross_profit"`
	GrossLoss        jsonFloat `json:"gross_loss"`
	NetPL            jsonFloat `json:"net_pl"`
	MaxDrawdown      jsonFloat `json:"max_drawdown"`
	Sharpe           jsonFloat `json:"sharpe"`

	RiskEvents int `json:"risk_events"`
	Failures   int `json:"strategy_failures,omitempty"`

	TradeLog []journal.TradeRecord `json:"trade_log,omitempty"`
}

// NewReport flattens a Result for serialization.
func NewReport(res Result) Report {
	m := res.Metrics
	return Report{
		GeneratedAt:      time.Now().UTC(),
		Start:            res.Start,
		End:              res.End,
		StartEquity:      jsonFloat(m.StartEquity),
		EndEquity:        jsonFloat(m.EndEquity),
		TotalReturn:      jsonFloat(m.TotalReturn),
		AnnualizedReturn: jsonFloat(m.AnnualizedReturn),
		Trades:           m.Trades,
		Wins:             m.Wins,
		Losses:           m.Losses,
		WinRate:          jsonFloat(m.WinRate),
		ProfitFactor:     jsonFloat(m.ProfitFactor),
		GrossProfit:      jsonFloat(m.GrossProfit),
		GrossLoss:        jsonFloat(m.GrossLoss),
		NetPL:            jsonFloat(m.NetPL),
		MaxDrawdown:      jsonFloat(m.MaxDrawdown),
		Sharpe:           jsonFloat(m.Sharpe),
		RiskEvents:       len(res.RiskEvents),
		Failures:         res.Failures,
		TradeLog:         res.Trades,
	}
}

// WriteJSON writes the report, indented, to w.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// SaveJSON writes the report to path, creating or truncating the file.
func (r Report) SaveJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	if err := r.WriteJSON(f); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
