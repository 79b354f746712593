package models

import "time"

// OptionalTime distinguishes "no record yet" from "record at the zero
// time", needed because history queries resume from the last stored
// timestamp and must not mistake absence for epoch.
type OptionalTime struct {
	Time  time.Time
	Valid bool
}
