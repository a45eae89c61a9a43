package models

import "fmt"

// Source identifiers. The set is fixed: an unknown source name is a
// configuration error that aborts the run before any stage executes.
const (
	SourceApify  = "apify"
	SourceGmail  = "gmail"
	SourceManual = "manual"
)

// ValidSource reports whether name is a known source identifier
func ValidSource(name string) bool {
	switch name {
	case SourceApify, SourceGmail, SourceManual:
		return true
	}
	return false
}

// SourceNames lists the known source identifiers for error messages
func SourceNames() string {
	return fmt.Sprintf("%s, %s, %s", SourceApify, SourceGmail, SourceManual)
}
