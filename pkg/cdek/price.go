package cdek

import (
	"fmt"
	"time"
)

const calculatorVersion = "1.0"

// PriceMode selects which calculator operation a price payload is sent to.
// Both operations accept the same request body.
type PriceMode int

const (
	// PriceModeSingle asks for the best matching tariff.
	PriceModeSingle PriceMode = iota
	// PriceModeTariffList asks for a result per tariff in the list.
	PriceModeTariffList
)

// Operation returns the carrier operation for the mode.
func (m PriceMode) Operation() Operation {
	if m == PriceModeTariffList {
		return OpCalcPrices
	}
	return OpCalcPrice
}

// PricePayload is the calculator request body. Optional members are
// omitted from the JSON rather than sent as null.
type PricePayload struct {
	Version        string           `json:"version"`
	DateExecute    string           `json:"dateExecute"`
	AuthLogin      string           `json:"authLogin,omitempty"`
	Secure         string           `json:"secure,omitempty"`
	SenderCityID   int              `json:"senderCityId"`
	ReceiverCityID int              `json:"receiverCityId"`
	TariffID       *int             `json:"tariffId,omitempty"`
	TariffList     []TariffPriority `json:"tariffList,omitempty"`
	ModeID         *int             `json:"modeId,omitempty"`
	Goods          []Good           `json:"goods"`
	Currency       string           `json:"currency"`
	Services       []Service        `json:"services,omitempty"`
}

// FormatExecuteDate renders t the way the calculator expects: YYYY-M-D
// without zero padding.
func FormatExecuteDate(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d", t.Year(), int(t.Month()), t.Day())
}

// BuildPricePayload assembles the calculator body for req. now is used to
// default the execution date to the following calendar day.
func BuildPricePayload(req *PriceRequest, mode PriceMode, now time.Time) (*PricePayload, error) {
	if err := ValidatePriceRequest(req); err != nil {
		return nil, err
	}
	if mode == PriceModeTariffList && len(req.TariffList) == 0 {
		return nil, invalidRequest("tariff list is required for a multi-tariff calculation")
	}

	date := now.AddDate(0, 0, 1)
	if req.DateExecute != nil && !req.DateExecute.IsZero() {
		date = *req.DateExecute
	}

	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	payload := &PricePayload{
		Version:        calculatorVersion,
		DateExecute:    FormatExecuteDate(date),
		SenderCityID:   req.SenderCityID,
		ReceiverCityID: req.ReceiverCityID,
		Goods:          append([]Good(nil), req.Goods...),
		Currency:       currency,
	}

	if len(req.TariffList) > 0 {
		payload.TariffList = append([]TariffPriority(nil), req.TariffList...)
	} else {
		tariffID := req.TariffID
		if tariffID == 0 {
			tariffID = DefaultTariffID
		}
		payload.TariffID = &tariffID
	}

	if len(req.Services) > 0 {
		payload.Services = append([]Service(nil), req.Services...)
	}

	if req.ModeID != nil {
		modeID := *req.ModeID
		payload.ModeID = &modeID
	}

	return payload, nil
}

// Sign attaches the calculator credentials when an execution date is set.
func (p *PricePayload) Sign(login, secret string) {
	if p.DateExecute == "" {
		return
	}
	p.AuthLogin = login
	p.Secure = Sign(p.DateExecute, secret)
}
