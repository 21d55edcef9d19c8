package models

import (
	"fmt"
	"strings"
)

// LicenseClass identifies a regulatory training tier.
type LicenseClass string

const (
	LicenseB1 LicenseClass = "B1"
	LicenseB2 LicenseClass = "B2"
	LicenseC1 LicenseClass = "C1"
)

// LicenseClasses lists every tier in display order.
var LicenseClasses = []LicenseClass{LicenseB1, LicenseB2, LicenseC1}

var licenseLabels = map[LicenseClass]string{
	LicenseB1: "B tự động",
	LicenseB2: "B cơ khí",
	LicenseC1: "C1",
}

// Label returns the Vietnamese display label of the class.
func (c LicenseClass) Label() string {
	if label, ok := licenseLabels[c]; ok {
		return label
	}
	return string(c)
}

// Valid reports whether c is a known tier.
func (c LicenseClass) Valid() bool {
	_, ok := licenseLabels[c]
	return ok
}

// ParseLicenseClass accepts either the code or the display label.
func ParseLicenseClass(raw string) (LicenseClass, error) {
	trimmed := strings.TrimSpace(raw)
	for _, class := range LicenseClasses {
		if strings.EqualFold(trimmed, string(class)) || trimmed == licenseLabels[class] {
			return class, nil
		}
	}
	return "", fmt.Errorf("unknown license class %q", raw)
}

// UnmarshalText accepts codes and legacy labels, for values and map keys.
// Unknown values are kept verbatim so old blobs survive a round trip.
func (c *LicenseClass) UnmarshalText(text []byte) error {
	if parsed, err := ParseLicenseClass(string(text)); err == nil {
		*c = parsed
		return nil
	}
	*c = LicenseClass(text)
	return nil
}

// Requirement holds the regulatory targets of one license class.
type Requirement struct {
	Km             float64 `json:"km"`
	Hours          float64 `json:"hours"`
	NightHours     float64 `json:"nightHours"`
	AutomaticHours float64 `json:"automaticHours"`
}

// Requirements maps every license class to its targets.
type Requirements map[LicenseClass]Requirement

// DefaultRequirements mirrors the DAT regulation table.
func DefaultRequirements() Requirements {
	return Requirements{
		LicenseB1: {Km: 710, Hours: 12, NightHours: 1, AutomaticHours: 0},
		LicenseB2: {Km: 810, Hours: 20, NightHours: 1, AutomaticHours: 1},
		LicenseC1: {Km: 825, Hours: 24, NightHours: 1, AutomaticHours: 1},
	}
}

// Validate fails unless every license class has an entry.
func (r Requirements) Validate() error {
	var missing []string
	for _, class := range LicenseClasses {
		if _, ok := r[class]; !ok {
			missing = append(missing, string(class))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("requirements missing for license classes: %s", strings.Join(missing, ", "))
	}
	return nil
}

// For returns the targets of class and whether the class is configured.
func (r Requirements) For(class LicenseClass) (Requirement, bool) {
	req, ok := r[class]
	return req, ok
}
