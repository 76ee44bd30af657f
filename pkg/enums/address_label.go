package enums

import (
	"fmt"
	"strings"
)

// AddressLabel names a saved delivery address.
type AddressLabel string

const (
	AddressLabelHome   AddressLabel = "Home"
	AddressLabelOffice AddressLabel = "Office"
	AddressLabelOther  AddressLabel = "Other"
)

var validAddressLabels = []AddressLabel{
	AddressLabelHome,
	AddressLabelOffice,
	AddressLabelOther,
}

// String implements fmt.Stringer.
func (a AddressLabel) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AddressLabel.
func (a AddressLabel) IsValid() bool {
	for _, candidate := range validAddressLabels {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAddressLabel converts raw input into an AddressLabel, ignoring case.
func ParseAddressLabel(value string) (AddressLabel, error) {
	value = strings.TrimSpace(value)
	for _, candidate := range validAddressLabels {
		if strings.EqualFold(string(candidate), value) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid address label %q", value)
}
