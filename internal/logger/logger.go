package logger

import (
	"fmt"
	"strings"
)

// Logger is the printf style logger used by every package. Loggers are
// obtained with CreateForPackage (or Create) and can be created in the var
// block, global configuration is applied to them later.
type Logger interface {
	Trace(format string, args ...any)
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warning(format string, args ...any)
	Error(format string, args ...any)
	// ChangeLevel changes the level of this logger only
	ChangeLevel(newLevel Level)
}

type Level uint

const (
	NONE Level = iota
	ERROR
	WARNING
	INFO
	DEBUG
	TRACE
)

var levelNames = []string{"NONE", "ERROR", "WARNING", "INFO", "DEBUG", "TRACE"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("Level(%d)", uint(l))
}

func ParseLevel(s string) (Level, error) {
	for i, n := range levelNames {
		if strings.EqualFold(n, s) {
			return Level(i), nil
		}
	}
	return NONE, fmt.Errorf("unknown log level %q", s)
}

func (l *Level) UnmarshalText(text []byte) error {
	v, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}
