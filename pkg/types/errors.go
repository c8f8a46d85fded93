package types

import (
	"errors"
	"fmt"
)

var (
	errReferrerRequired   = errors.New("supervisor/admin attribution requires a referrer id")
	errReferrerUnexpected = errors.New("referrer id only valid for supervisor/admin attribution")
)

func errInvalidAttribution(kind string) error {
	return fmt.Errorf("invalid attribution kind %q", kind)
}
