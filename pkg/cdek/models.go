package cdek

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTariffID is the tariff used when a price request names none.
const DefaultTariffID = 136

// DefaultCurrency is the calculator currency used when none is given.
const DefaultCurrency = "RUB"

// Good is one parcel in a price calculation. Weight is in kilograms,
// dimensions in centimetres.
type Good struct {
	Weight float64 `json:"weight" validate:"gt=0"`
	Length float64 `json:"length" validate:"gt=0"`
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
}

// TariffPriority is an entry of a tariff list. Priority is optional.
type TariffPriority struct {
	ID       int `json:"id" validate:"gt=0"`
	Priority int `json:"priority,omitempty" validate:"gte=0"`
}

// Service is an add-on service such as insurance.
type Service struct {
	ID    int     `json:"id" validate:"gt=0"`
	Param float64 `json:"param,omitempty"`
}

// PriceRequest is the input of both calculator operations.
type PriceRequest struct {
	SenderCityID   int        `json:"senderCityId" validate:"gt=0"`
	ReceiverCityID int        `json:"receiverCityId" validate:"gt=0"`
	Goods          []Good     `json:"goods" validate:"min=1,dive"`
	DateExecute    *time.Time `json:"dateExecute,omitempty"`
	Currency       string     `json:"currency,omitempty"`

	// TariffID is ignored when TariffList is non-empty.
	TariffID   int              `json:"tariffId,omitempty" validate:"gte=0"`
	TariffList []TariffPriority `json:"tariffList,omitempty" validate:"dive"`
	ModeID     *int             `json:"modeId,omitempty"`
	Services   []Service        `json:"services,omitempty" validate:"dive"`
}

// ServiceCharge is the cost of an add-on service in a price result.
type ServiceCharge struct {
	ID    int             `json:"id"`
	Title string          `json:"title,omitempty"`
	Price decimal.Decimal `json:"price"`
	Rate  decimal.Decimal `json:"rate"`
}

// PriceResult is a successful calculation for one tariff.
type PriceResult struct {
	TariffID          int             `json:"tariffId"`
	Price             decimal.Decimal `json:"price"`
	PriceByCurrency   decimal.Decimal `json:"priceByCurrency"`
	Currency          string          `json:"currency,omitempty"`
	DeliveryPeriodMin int             `json:"deliveryPeriodMin"`
	DeliveryPeriodMax int             `json:"deliveryPeriodMax"`
	DeliveryDateMin   string          `json:"deliveryDateMin,omitempty"`
	DeliveryDateMax   string          `json:"deliveryDateMax,omitempty"`
	Services          []ServiceCharge `json:"services,omitempty"`
}

// TariffOutcome is one entry of a multi-tariff calculation. Result is set
// only when Status is true.
type TariffOutcome struct {
	TariffID int           `json:"tariffId"`
	Status   bool          `json:"status"`
	Result   *PriceResult  `json:"result,omitempty"`
	Errors   []ErrorDetail `json:"errors,omitempty"`
	Raw      []byte        `json:"-"`
}

// PickupPoint is a carrier-operated parcel point (PVZ).
type PickupPoint struct {
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	City           string  `json:"city"`
	Address        string  `json:"address"`
	AddressComment string  `json:"addressComment,omitempty"`
	Note           string  `json:"note,omitempty"`
	Phone          string  `json:"phone,omitempty"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Type           string  `json:"type,omitempty"`
	CashOnDelivery bool    `json:"cashOnDelivery"`
}

// Address is an order destination: a street address or a pickup point
// code, never both.
type Address struct {
	Street  string `json:"street,omitempty"`
	House   string `json:"house,omitempty"`
	Flat    string `json:"flat,omitempty"`
	PvzCode string `json:"pvzCode,omitempty"`
}

// IsPickupPoint reports whether the address targets a pickup point.
func (a Address) IsPickupPoint() bool {
	return a.PvzCode != ""
}

// Item is a line of a package. Weight is in grams.
type Item struct {
	Amount  int             `json:"amount" validate:"gt=0"`
	WareKey string          `json:"wareKey" validate:"required"`
	Cost    decimal.Decimal `json:"cost"`
	Payment decimal.Decimal `json:"payment"`
	Weight  float64         `json:"weight" validate:"gt=0"`
	Comment string          `json:"comment" validate:"required"`
}

// Package is a physical parcel of an order. Weight is in grams,
// dimensions in centimetres.
type Package struct {
	Weight float64 `json:"weight" validate:"gt=0"`
	Length float64 `json:"length" validate:"gt=0"`
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
	Items  []Item  `json:"items" validate:"min=1,dive"`
}

// Order is a shipment registration request.
type Order struct {
	Number         string    `json:"number" validate:"required"`
	SenderCityID   int       `json:"senderCityId" validate:"gt=0"`
	ReceiverCityID int       `json:"receiverCityId" validate:"gt=0"`
	TariffTypeCode int       `json:"tariffTypeCode" validate:"gt=0"`
	RecipientName  string    `json:"recipientName" validate:"required"`
	RecipientEmail string    `json:"recipientEmail,omitempty" validate:"omitempty,email"`
	Phone          string    `json:"phone" validate:"required"`
	Comment        string    `json:"comment,omitempty"`
	Address        Address   `json:"address"`
	Packages       []Package `json:"packages" validate:"min=1,dive"`
}

// OrderAcknowledgement is the carrier's confirmation of a created order.
type OrderAcknowledgement struct {
	Number         string `json:"number"`
	DispatchNumber string `json:"dispatchNumber"`
}

// StatusQuery identifies an order for a status report. At least one of
// the fields must be set.
type StatusQuery struct {
	Number         string `json:"number,omitempty"`
	DispatchNumber string `json:"dispatchNumber,omitempty"`
}

// StatusEvent is one entry of an order's status history.
type StatusEvent struct {
	Date        string `json:"date"`
	Code        int    `json:"code"`
	Description string `json:"description"`
	CityCode    string `json:"cityCode,omitempty"`
	CityName    string `json:"cityName,omitempty"`
}

// StatusRecord is the status history of one order.
type StatusRecord struct {
	Number         string        `json:"number"`
	DispatchNumber string        `json:"dispatchNumber"`
	Events         []StatusEvent `json:"events"`
}
