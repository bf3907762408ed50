package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidMoney = errors.New("invalid money amount")
)

// ToCents converts a decimal amount (like 12.34) to cents as int64 safely.
// Transaction values are stored as numeric(16, 2), so two digits are exact.
func ToCents(value float64) (int64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrInvalidMoney
	}
	// Prevent overflow: int64 max ~9e18 => value max ~9e16
	if math.Abs(value) > 9e16 {
		return 0, fmt.Errorf("%w: too large", ErrInvalidMoney)
	}
	return int64(math.Round(value * 100.0)), nil
}

// Convert returns value in the group currency, in cents.
func Convert(value, rate float64) (int64, error) {
	if math.IsNaN(rate) || rate <= 0 {
		return 0, fmt.Errorf("%w: conversion rate %v", ErrInvalidMoney, rate)
	}
	return ToCents(value * rate)
}

// Format renders cents as "1,234.56 €". An empty symbol leaves the
// number alone.
func Format(cents int64, symbol string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	s := fmt.Sprintf("%s%s.%02d", sign, withCommas(cents/100), cents%100)
	if symbol = strings.TrimSpace(symbol); symbol != "" {
		s += " " + symbol
	}
	return s
}

func withCommas(n int64) string {
	str := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i := 0; i < len(str); i++ {
		b.WriteByte(str[i])
		rem := len(str) - i - 1
		if rem > 0 && rem%3 == 0 {
			b.WriteByte(',')
		}
	}
	return b.String()
}
