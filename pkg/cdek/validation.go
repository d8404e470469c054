package cdek

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs[i] = fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
		} else {
			msgs[i] = fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
		}
	}
	return invalidRequest("%s", strings.Join(msgs, "; "))
}

// ValidatePriceRequest checks the invariants of a price request.
func ValidatePriceRequest(req *PriceRequest) error {
	if req == nil {
		return invalidRequest("price request is nil")
	}
	return validateStruct(req)
}

// ValidateOrder checks the invariants of an order: at least one package,
// at least one item per package, and a destination that is either a street
// address or a pickup point.
func ValidateOrder(order *Order) error {
	if order == nil {
		return invalidRequest("order is nil")
	}
	if err := validateStruct(order); err != nil {
		return err
	}

	addr := order.Address
	hasStreet := addr.Street != "" || addr.House != "" || addr.Flat != ""
	switch {
	case hasStreet && addr.IsPickupPoint():
		return invalidRequest("address must be a street address or a pickup point, not both")
	case addr.IsPickupPoint():
	case addr.Street == "" || addr.House == "":
		return invalidRequest("address requires street and house, or a pickup point code")
	}

	for i, pkg := range order.Packages {
		for j, item := range pkg.Items {
			if item.Cost.IsNegative() || item.Payment.IsNegative() {
				return invalidRequest("package %d item %d: cost and payment must not be negative", i+1, j+1)
			}
		}
	}
	return nil
}

// ValidateStatusQueries checks that there is at least one query and that
// each names an order.
func ValidateStatusQueries(queries []StatusQuery) error {
	if len(queries) == 0 {
		return invalidRequest("at least one status query is required")
	}
	for i, q := range queries {
		if q.Number == "" && q.DispatchNumber == "" {
			return invalidRequest("status query %d has neither number nor dispatch number", i+1)
		}
	}
	return nil
}
