package rewritemdw

import (
	"fmt"
	"strings"
)

// Mode selects which fields of a job result are written
type Mode uint8

const (
	// ModeInject adds dataTypeOverride alongside the original dataType
	ModeInject Mode = 1 << iota
	// ModeReplace overwrites dataType with the corrected type
	ModeReplace

	ModeInjectAndReplace = ModeInject | ModeReplace
)

var modeNames = map[string]Mode{
	"inject":         ModeInject,
	"replace":        ModeReplace,
	"inject+replace": ModeInjectAndReplace,
}

// ParseMode parses one of inject, replace or inject+replace
func ParseMode(raw string) (Mode, error) {
	mode, ok := modeNames[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrInvalidMode, raw)
	}
	return mode, nil
}

// Includes reports whether every flag of other is set on m
func (m Mode) Includes(other Mode) bool {
	return other != 0 && m&other == other
}

func (m Mode) String() string {
	switch m {
	case ModeInject:
		return "inject"
	case ModeReplace:
		return "replace"
	case ModeInjectAndReplace:
		return "inject+replace"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}
