package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/iudanet/credisync/internal/models"
)

// ColorPattern цвет маршрута в формате #RRGGBB
var ColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

const (
	// MinPhoneDigits минимальное количество цифр в телефоне
	MinPhoneDigits = 7
	// MaxPhoneDigits максимальное количество цифр в телефоне
	MaxPhoneDigits = 15
)

// MaxAmount верхняя граница любой денежной суммы
var MaxAmount = decimal.NewFromInt(100_000_000)

// maxOverpayRatio платеж не может превышать остаток по взносу более чем в 1.5 раза
var maxOverpayRatio = decimal.NewFromFloat(1.5)

// FieldError описывает нарушение правила для одного поля
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when caller-supplied data fails a business rule.
// Such data is never written locally nor enqueued.
type ValidationError struct {
	Entity models.EntityType `json:"entity"`
	Fields []FieldError      `json:"fields"`
}

// Error implements error
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(parts, "; "))
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ruleFunc проверки, которые нельзя выразить тегами (decimal, GPS, перекрестные поля)
type ruleFunc func(rec models.Record) []FieldError

// Validator проверяет бизнес-правила сущностей перед локальной записью
type Validator struct {
	v     *validator.Validate
	rules map[models.EntityType]ruleFunc
}

// New creates a Validator with struct-tag validation plus per-entity rules.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Имена полей в ошибках берем из json-тегов
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		v: v,
		rules: map[models.EntityType]ruleFunc{
			models.EntityClient:  clientRules,
			models.EntityRoute:   routeRules,
			models.EntityProduct: productRules,
			models.EntityCredit:  creditRules,
			models.EntityPayment: paymentRules,
		},
	}
}

// Validate checks a record against its struct tags and entity rules.
// Returns *ValidationError listing every failed field, or nil.
func (val *Validator) Validate(rec models.Record) error {
	var fields []FieldError

	if err := val.v.Struct(rec); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate %s: %w", rec.EntityType(), err)
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Message: message(fe)})
		}
	}

	if rule, ok := val.rules[rec.EntityType()]; ok {
		fields = append(fields, rule(rec)...)
	}

	if len(fields) > 0 {
		return &ValidationError{Entity: rec.EntityType(), Fields: fields}
	}
	return nil
}

// ValidatePaymentAmount checks a payment amount against what the installment still owes.
func ValidatePaymentAmount(amount, due decimal.Decimal) error {
	var fields []FieldError
	switch {
	case !amount.IsPositive():
		fields = append(fields, FieldError{Field: "amount", Message: "Must be greater than 0"})
	case amount.GreaterThan(MaxAmount):
		fields = append(fields, FieldError{Field: "amount", Message: "Must not exceed " + MaxAmount.String()})
	case due.IsPositive() && amount.GreaterThan(due.Mul(maxOverpayRatio)):
		fields = append(fields, FieldError{
			Field:   "amount",
			Message: "Must not exceed 150% of the installment balance (" + due.StringFixed(2) + ")",
		})
	}
	if len(fields) > 0 {
		return &ValidationError{Entity: models.EntityPayment, Fields: fields}
	}
	return nil
}

// message возвращает человекочитаемое описание нарушения
func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	default:
		return "Invalid value"
	}
}

func clientRules(rec models.Record) []FieldError {
	c, ok := rec.(*models.Client)
	if !ok {
		return nil
	}
	var fields []FieldError

	if c.Phone != "" {
		digits := countDigits(c.Phone)
		if digits < MinPhoneDigits || digits > MaxPhoneDigits {
			fields = append(fields, FieldError{
				Field:   "phone",
				Message: fmt.Sprintf("Must contain %d to %d digits", MinPhoneDigits, MaxPhoneDigits),
			})
		}
	}

	// GPS обязателен: сборщик должен найти клиента на маршруте
	if c.Latitude == nil || c.Longitude == nil {
		fields = append(fields, FieldError{Field: "location", Message: "GPS location is required"})
		return fields
	}
	if *c.Latitude < -90 || *c.Latitude > 90 {
		fields = append(fields, FieldError{Field: "latitude", Message: "Must be between -90 and 90"})
	}
	if *c.Longitude < -180 || *c.Longitude > 180 {
		fields = append(fields, FieldError{Field: "longitude", Message: "Must be between -180 and 180"})
	}
	return fields
}

func routeRules(rec models.Record) []FieldError {
	r, ok := rec.(*models.Route)
	if !ok || r.Color == "" {
		return nil
	}
	if !ColorPattern.MatchString(r.Color) {
		return []FieldError{{Field: "color", Message: "Must be a #RRGGBB color"}}
	}
	return nil
}

func productRules(rec models.Record) []FieldError {
	p, ok := rec.(*models.Product)
	if !ok {
		return nil
	}
	var fields []FieldError

	if p.InterestPercent.IsNegative() || p.InterestPercent.GreaterThan(decimal.NewFromInt(100)) {
		fields = append(fields, FieldError{Field: "interestPercent", Message: "Must be between 0 and 100"})
	}
	if p.MinAmount.Valid && p.MaxAmount.Valid && p.MinAmount.Decimal.GreaterThan(p.MaxAmount.Decimal) {
		fields = append(fields, FieldError{Field: "minAmount", Message: "Must not exceed maxAmount"})
	}
	return fields
}

func creditRules(rec models.Record) []FieldError {
	c, ok := rec.(*models.Credit)
	if !ok {
		return nil
	}
	var fields []FieldError

	if !c.PrincipalAmount.IsPositive() {
		fields = append(fields, FieldError{Field: "principalAmount", Message: "Must be greater than 0"})
	} else if c.PrincipalAmount.GreaterThan(MaxAmount) {
		fields = append(fields, FieldError{Field: "principalAmount", Message: "Must not exceed " + MaxAmount.String()})
	}
	if c.OutstandingBalance.IsNegative() {
		fields = append(fields, FieldError{Field: "outstandingBalance", Message: "Must not be negative"})
	}
	return fields
}

func paymentRules(rec models.Record) []FieldError {
	p, ok := rec.(*models.Payment)
	if !ok {
		return nil
	}
	if !p.Amount.IsPositive() {
		return []FieldError{{Field: "amount", Message: "Must be greater than 0"}}
	}
	if p.Amount.GreaterThan(MaxAmount) {
		return []FieldError{{Field: "amount", Message: "Must not exceed " + MaxAmount.String()}}
	}
	return nil
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
