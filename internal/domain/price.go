package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var (
	// ErrPriceInvalid indicates the price is empty or not a decimal number.
	ErrPriceInvalid = errors.New("price: invalid")
	// ErrPriceNegative indicates the price parsed but is below zero.
	ErrPriceNegative = errors.New("price: negative")
)

var currencySymbols = map[string]string{
	"USD": "$",
	"CAD": "CA$",
	"AUD": "A$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
}

// CurrencyScale returns the number of minor-unit digits for an ISO currency code.
// Unknown codes use two digits.
func CurrencyScale(code string) int {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale
}

// ValidCurrency reports whether code is a recognised ISO 4217 currency.
func ValidCurrency(code string) bool {
	_, err := currency.ParseISO(strings.TrimSpace(code))
	return err == nil
}

// ParsePrice converts a decimal string such as "10", "9.99" or "$5" into minor currency units.
func ParsePrice(raw string, currencyCode string) (int64, error) {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "$")
	value = strings.ReplaceAll(value, ",", "")
	if value == "" {
		return 0, fmt.Errorf("%w: price is required", ErrPriceInvalid)
	}
	if strings.HasPrefix(value, "-") {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrPriceInvalid, raw)
		}
		if parsed < 0 {
			return 0, fmt.Errorf("%w: %s", ErrPriceNegative, raw)
		}
		value = strings.TrimPrefix(value, "-")
	} else {
		value = strings.TrimPrefix(value, "+")
	}

	scale := CurrencyScale(currencyCode)
	whole, frac, _ := strings.Cut(value, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("%w: %s", ErrPriceInvalid, raw)
	}
	if whole == "" {
		whole = "0"
	}
	if !digitsOnly(whole) || !digitsOnly(frac) || len(frac) > scale {
		return 0, fmt.Errorf("%w: %s", ErrPriceInvalid, raw)
	}
	for len(frac) < scale {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrPriceInvalid, raw)
	}
	multiplier := int64(math.Pow10(scale))
	if units > math.MaxInt64/multiplier {
		return 0, fmt.Errorf("%w: %s out of range", ErrPriceInvalid, raw)
	}
	minor := units * multiplier
	if frac != "" {
		fraction, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrPriceInvalid, raw)
		}
		minor += fraction
	}
	return minor, nil
}

// FormatPrice renders minor units for display, e.g. 1000 USD -> "$10.00".
func FormatPrice(minor int64, currencyCode string) string {
	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	if code == "" {
		code = strings.ToUpper(DefaultCurrency)
	}
	scale := CurrencyScale(code)
	amount := float64(minor) / math.Pow10(scale)

	printer := message.NewPrinter(language.English)
	formatted := printer.Sprint(number.Decimal(amount, number.MinFractionDigits(scale), number.MaxFractionDigits(scale)))
	if symbol, ok := currencySymbols[code]; ok {
		return symbol + formatted
	}
	return code + " " + formatted
}

func digitsOnly(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// RescalePrice moves minor units between currencies so the decimal amount is kept, e.g. 1000 USD
// ($10.00) becomes 10 JPY. Digits the target cannot hold are rounded half up.
func RescalePrice(minor int64, from, to string) int64 {
	diff := CurrencyScale(to) - CurrencyScale(from)
	switch {
	case diff > 0:
		factor := int64(math.Pow10(diff))
		if minor > math.MaxInt64/factor {
			return math.MaxInt64
		}
		return minor * factor
	case diff < 0:
		factor := int64(math.Pow10(-diff))
		return (minor + factor/2) / factor
	}
	return minor
}

// FormatPriceInput renders minor units as the plain decimal text ParsePrice accepts, e.g. 999 USD -> "9.99".
func FormatPriceInput(minor int64, currencyCode string) string {
	scale := CurrencyScale(currencyCode)
	if scale == 0 {
		return strconv.FormatInt(minor, 10)
	}
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	unit := int64(math.Pow10(scale))
	return fmt.Sprintf("%s%d.%0*d", sign, minor/unit, scale, minor%unit)
}
