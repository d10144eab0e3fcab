package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncatedHeader is returned when the datagram is shorter than the
	// fixed header size for its declared version.
	ErrTruncatedHeader = errors.New("truncated datagram header")
	// ErrTruncatedSet is returned when a flowset header declares a length
	// that runs past the end of the datagram.
	ErrTruncatedSet = errors.New("truncated flowset")
	// ErrDeclaredLengthExceedsBuffer is returned when the header/flowset
	// declares a length longer than what is actually available.
	ErrDeclaredLengthExceedsBuffer = errors.New("declared length exceeds buffer")
)

func TruncatedHeader(have, want int) error {
	return fmt.Errorf("%w: have %d bytes, need %d", ErrTruncatedHeader, have, want)
}

func TruncatedSet(setID uint16, declared, available int) error {
	return fmt.Errorf("%w: set %d declares %d bytes, %d available", ErrTruncatedSet, setID, declared, available)
}

func UnknownVersion(v Version) error {
	return fmt.Errorf("%w: %d", ErrUnknownVersion, uint16(v))
}
