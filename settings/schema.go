package settings

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type Kind int

const (
	Text Kind = iota
	Integer
	Boolean
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Boolean:
		return "boolean"
	default:
		return "text"
	}
}

const (
	MaxFileSize         = "max_file_size"
	DefaultExpiryOffset = "default_expiry_offset"
	MaxExpiryOffset     = "max_expiry_offset"
	AllowOptionalExpiry = "allow_optional_expiry"
)

// Definition describes one site setting. Rule is a validator tag applied to
// the raw text before it is persisted.
type Definition struct {
	Label   string
	Kind    Kind
	Default string
	Rule    string
}

type Schema map[string]Definition

// DefaultSchema is the set of settings the application understands.
var DefaultSchema = Schema{
	MaxFileSize: {
		Label:   "Max File Size",
		Kind:    Text,
		Default: "100MB",
		Rule:    "required,bytesize",
	},
	DefaultExpiryOffset: {
		Label:   "Default Expiry Offset (hours)",
		Kind:    Integer,
		Default: "24",
		Rule:    "required,number",
	},
	MaxExpiryOffset: {
		Label:   "Max Expiry Offset (hours)",
		Kind:    Integer,
		Default: "336",
		Rule:    "required,number",
	},
	AllowOptionalExpiry: {
		Label:   "Allow Files Without Expiry",
		Kind:    Boolean,
		Default: "false",
		Rule:    "required,boolean",
	},
}

func (s Schema) definition(key string) Definition {
	def, ok := s[key]
	if !ok {
		panic(fmt.Sprintf("settings: unknown setting %q", key))
	}
	return def
}

func (s Schema) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func coerce(kind Kind, raw string) any {
	if kind == Boolean {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "1":
			return true
		}
		return false
	}
	return raw
}

// ParseByteSize converts a max_file_size value such as "100MB" or "512KB"
// into bytes.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if len(s) < 3 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	var unit int64
	switch strings.ToUpper(s[len(s)-2:]) {
	case "KB":
		unit = 1024
	case "MB":
		unit = 1024 * 1024
	default:
		return 0, fmt.Errorf("invalid size unit in %q", s)
	}
	n, err := strconv.ParseInt(s[:len(s)-2], 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if n > (1<<63-1)/unit {
		return 1<<63 - 1, nil
	}
	return n * unit, nil
}
