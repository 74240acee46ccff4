package netrange

import (
	"fmt"
	"strings"
)

// SizeClass buckets a range by its usable host count
type SizeClass int

const (
	Small SizeClass = iota
	Medium
	Large
)

const (
	// SmallMaxHosts is the largest host count still probed in full
	SmallMaxHosts = 32512
	// LargeMinHosts is the host count from which a range is large
	LargeMinHosts = 16777214
)

// Classify maps a host count to its size class
func Classify(hostCount int) SizeClass {
	switch {
	case hostCount <= SmallMaxHosts:
		return Small
	case hostCount < LargeMinHosts:
		return Medium
	default:
		return Large
	}
}

func (c SizeClass) String() string {
	switch c {
	case Small:
		return "small"
	case Medium:
		return "medium"
	case Large:
		return "large"
	default:
		return "unknown"
	}
}

// Legacy returns the classful network letter the class stands for
func (c SizeClass) Legacy() string {
	switch c {
	case Small:
		return "C"
	case Medium:
		return "B"
	case Large:
		return "A"
	default:
		return "?"
	}
}

// ParseSizeClass accepts either the class name or its legacy letter
func ParseSizeClass(value string) (SizeClass, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "small", "c":
		return Small, nil
	case "medium", "b":
		return Medium, nil
	case "large", "a":
		return Large, nil
	}
	return 0, fmt.Errorf("unknown size class %q", value)
}

// MarshalText implements encoding.TextMarshaler
func (c SizeClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *SizeClass) UnmarshalText(text []byte) error {
	parsed, err := ParseSizeClass(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
