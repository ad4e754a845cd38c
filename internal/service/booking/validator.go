package booking

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/Domenick1991/flightbookings/internal/domain"
	"github.com/go-playground/validator/v10"
)

type PayloadValidator struct {
	validate *validator.Validate
}

func NewPayloadValidator() *PayloadValidator {
	v := validator.New()
	// report fields by their wire names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &PayloadValidator{validate: v}
}

// Validate returns InvalidInput when a field is empty or zero and
// InvalidTimeRange when departure is not before arrival, in that order.
func (v *PayloadValidator) Validate(p domain.FlightBookingPayload) error {
	if err := v.validate.Struct(p); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			fields := make([]string, 0, len(validationErrs))
			for _, fe := range validationErrs {
				fields = append(fields, fe.Field())
			}
			return domain.InvalidInput(fmt.Sprintf("missing required fields: %s", strings.Join(fields, ", ")))
		}
		return domain.InvalidInput(err.Error())
	}

	if p.DepartureTime >= p.ArrivalTime {
		return domain.InvalidTimeRange(p.DepartureTime, p.ArrivalTime)
	}
	return nil
}
