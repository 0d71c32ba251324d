package api

import (
	// Go Internal Packages
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	// Local Packages
	errors "bbps-hub/errors"
	models "bbps-hub/models"

	// External Packages
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type FetchRequest struct {
	OperatorID     string         `json:"operatorId" validate:"required"`
	Parameters     map[string]any `json:"parameters" validate:"required"`
	IdempotencyKey string         `json:"idempotencyKey" validate:"omitempty,max=128"`
}

type PayRequest struct {
	FetchReferenceID string  `json:"fetchReferenceId" validate:"required"`
	Amount           float64 `json:"amount" validate:"gt=0"`
	PaymentMethod    string  `json:"paymentMethod" validate:"omitempty,oneof=WALLET UPI NETBANKING CARD OTHER"`
	IdempotencyKey   string  `json:"idempotencyKey" validate:"omitempty,max=128"`
}

// decodeBody reads a JSON body into dst and validates it.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errors.InvalidBodyErr(err)
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.ValidationFailedErr(err)
	}
	ve := errors.ValidationErrs()
	for _, fe := range fieldErrs {
		ve.Add(fe.Field(), describe(fe))
	}
	return errors.ValidationFailedErr(ve.Err())
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "is invalid"
}

// idempotencyKey prefers the body field over the Idempotency-Key header.
func idempotencyKey(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return r.Header.Get("Idempotency-Key")
}

func pageFromQuery(r *http.Request) (models.Page, error) {
	q := r.URL.Query()
	var p models.Page
	ve := errors.ValidationErrs()
	if s := q.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		switch {
		case err != nil || n < 1:
			ve.Add("page", "must be a positive integer")
		case n > models.MaxPage:
			ve.Add("page", "must be at most "+strconv.Itoa(models.MaxPage))
		}
		p.Page = n
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			ve.Add("limit", "must be a positive integer")
		}
		p.Limit = n
	}
	if err := ve.Err(); err != nil {
		return p, errors.InvalidParamsErr(err)
	}
	return p.Normalize(), nil
}

func filtersFromQuery(r *http.Request) models.OperatorFilters {
	q := r.URL.Query()
	return models.OperatorFilters{
		Category:           q.Get("category"),
		OperatorCategoryID: q.Get("operator_category_id"),
		Location:           q.Get("location"),
	}
}
