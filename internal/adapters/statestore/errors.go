package statestore

import "errors"

// ErrUnknownCounty indicates an override aimed at a county the scenario does
// not track.
var ErrUnknownCounty = errors.New("unknown county")

// ErrStoreClosed indicates a write against a closed store.
var ErrStoreClosed = errors.New("store closed")
