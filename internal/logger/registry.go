package logger

import (
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// BasePackage is stripped from the package names of the loggers.
const BasePackage = "alphabill-org/zkbridge"

// how many frames to skip to get to the caller of Debug, Info,...
const callerSkipFrames = 4

type registry struct {
	sync.Mutex
	config   Config
	root     zerolog.Logger
	loggers  map[string]*packageLogger
	resolver *PackageNameResolver
	nonAlnum *regexp.Regexp
}

var global = newRegistry()

func newRegistry() *registry {
	r := &registry{
		loggers:  map[string]*packageLogger{},
		resolver: &PackageNameResolver{BasePackage: BasePackage},
		nonAlnum: regexp.MustCompile(`[^a-zA-Z0-9]+`),
	}
	if err := r.apply(developerConfig()); err != nil {
		panic(err)
	}
	return r
}

// CreateForPackage returns logger named after the package of the caller.
func CreateForPackage() Logger {
	return global.create(global.resolver.PackageName())
}

// Create returns logger with custom name, loggers with the same name are shared.
func Create(name string) Logger {
	return global.create(name)
}

// Configure replaces the global configuration, all existing loggers are updated.
func Configure(cfg Config) error {
	return global.apply(cfg)
}

// ConfigureFromFile loads YAML configuration file and applies it. In case
// of an error the current configuration is kept.
func ConfigureFromFile(filename string) error {
	cfg, err := LoadConfig(filename)
	if err != nil {
		return err
	}
	return Configure(cfg)
}

func (r *registry) apply(cfg Config) error {
	r.Lock()
	defer r.Unlock()

	w, err := cfg.output()
	if err != nil {
		return err
	}
	if cfg.TimeLocation != "" {
		loc, err := time.LoadLocation(cfg.TimeLocation)
		if err != nil {
			return fmt.Errorf("invalid time location: %w", err)
		}
		zerolog.TimestampFunc = func() time.Time { return time.Now().In(loc) }
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var root zerolog.Logger
	if cfg.ConsoleFormat {
		root = zerolog.New(zerolog.ConsoleWriter{
			Out:          w,
			TimeFormat:   "15:04:05.000",
			FormatCaller: formatCallerLastTwoDirs,
		})
	} else {
		root = zerolog.New(w)
	}
	ctx := root.With().Timestamp()
	if cfg.ShowCaller {
		ctx = ctx.CallerWithSkipFrameCount(callerSkipFrames)
	}
	r.root = ctx.Logger()
	r.config = cfg

	for name, l := range r.loggers {
		l.reset(r.newZeroLogger(name, r.levelOf(name)))
	}
	return nil
}

func (r *registry) create(name string) Logger {
	r.Lock()
	defer r.Unlock()

	name = r.nonAlnum.ReplaceAllString(name, "_")
	if l, ok := r.loggers[name]; ok {
		return l
	}
	l := &packageLogger{name: name}
	l.reset(r.newZeroLogger(name, r.levelOf(name)))
	r.loggers[name] = l
	return l
}

func (r *registry) levelOf(name string) Level {
	if lvl, ok := r.config.PackageLevels[name]; ok {
		return lvl
	}
	return r.config.DefaultLevel
}

func (r *registry) newZeroLogger(name string, lvl Level) *zerolog.Logger {
	zl := r.root.Level(toZeroLevel(lvl)).With().Str("pkg", name).Logger()
	if r.config.ShowGoroutineID {
		zl = zl.Hook(goroutineIDHook{})
	}
	return &zl
}

type packageLogger struct {
	name string
	zl   atomic.Pointer[zerolog.Logger]
}

func (l *packageLogger) reset(zl *zerolog.Logger) {
	l.zl.Store(zl)
}

func (l *packageLogger) Trace(format string, args ...any) {
	l.log(l.zl.Load().Trace(), format, args)
}

func (l *packageLogger) Debug(format string, args ...any) {
	l.log(l.zl.Load().Debug(), format, args)
}

func (l *packageLogger) Info(format string, args ...any) {
	l.log(l.zl.Load().Info(), format, args)
}

func (l *packageLogger) Warning(format string, args ...any) {
	l.log(l.zl.Load().Warn(), format, args)
}

func (l *packageLogger) Error(format string, args ...any) {
	l.log(l.zl.Load().Error(), format, args)
}

func (l *packageLogger) log(event *zerolog.Event, format string, args []any) {
	if len(args) == 0 {
		event.Msg(format)
	} else {
		event.Msgf(format, args...)
	}
}

func (l *packageLogger) ChangeLevel(newLevel Level) {
	zl := l.zl.Load().Level(toZeroLevel(newLevel))
	l.zl.Store(&zl)
}

type goroutineIDHook struct{}

func (goroutineIDHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Uint64("GoID", goroutineID())
}

func toZeroLevel(lvl Level) zerolog.Level {
	switch lvl {
	case NONE:
		return zerolog.Disabled
	case ERROR:
		return zerolog.ErrorLevel
	case WARNING:
		return zerolog.WarnLevel
	case INFO:
		return zerolog.InfoLevel
	case DEBUG:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}
