// internal/track/record.go

// Package track holds the shipment records scraped from the 4me inbox and
// their flat-file persistence.
package track

import (
	"strings"
	"time"
)

// Shipment statuses as they appear on the wire and in the UI.
const (
	StatusPending   = "Beklemede"
	StatusDelivered = "Teslim Edildi"
	StatusInTransit = "Yolda"

	// EstimatedDeliveryUnknown is the placeholder carriers never fill in.
	EstimatedDeliveryUnknown = "-"
)

// Record is one tracked shipment. The JSON tags are the wire contract shared
// with the frontend; do not rename them.
type Record struct {
	TrackingNumber    string    `json:"takipNo"`
	StoreID           string    `json:"magazaId"`
	RequestID         string    `json:"talepId"`
	RequestTitle      string    `json:"talepAdi"`
	Status            string    `json:"durum"`
	EstimatedDelivery string    `json:"ongorulenTeslimat"`
	LastUpdated       time.Time `json:"sonGuncelleme"`
}

// NormalizeTrackingNumber repairs UPS numbers that lost their leading "1"
// during copy-paste: a bare "Z..." becomes "1Z...". Idempotent.
func NormalizeTrackingNumber(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if s[0] == 'Z' || s[0] == 'z' {
		return "1" + s
	}
	return s
}

// IsUPS reports whether the number has the UPS "1Z" shape.
func IsUPS(trackingNumber string) bool {
	return len(trackingNumber) >= 2 && strings.EqualFold(trackingNumber[:2], "1Z")
}

// IsAras reports whether the number looks like an Aras barcode (digits only).
func IsAras(trackingNumber string) bool {
	if trackingNumber == "" {
		return false
	}
	for _, r := range trackingNumber {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
