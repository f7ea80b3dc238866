package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rprtr258/fun"
	"github.com/rprtr258/scuf"
	"github.com/rs/zerolog"
)

// New returns console logger writing to stderr.
func New(debug bool) zerolog.Logger {
	return NewWriter(os.Stderr, debug)
}

func NewWriter(w io.Writer, debug bool) zerolog.Logger {
	return zerolog.New(w).
		Level(fun.IF(debug, zerolog.DebugLevel, zerolog.InfoLevel)).
		With().
		Timestamp().
		Logger().
		Output(zerolog.ConsoleWriter{ //nolint:exhaustruct // not needed
			Out: w,
			FormatLevel: func(i any) string {
				s, _ := i.(string)
				bg := fun.Switch(s, scuf.BgRed).
					Case(scuf.BgBlue, zerolog.LevelDebugValue).
					Case(scuf.BgGreen, zerolog.LevelInfoValue).
					Case(scuf.BgYellow, zerolog.LevelWarnValue).
					End()

				return scuf.String(" "+strings.ToUpper(s)+" ", bg, scuf.FgBlack)
			},
			FormatTimestamp: func(i any) string {
				s, _ := i.(string)
				t, err := time.Parse(zerolog.TimeFieldFormat, s)
				if err != nil {
					return s
				}

				return scuf.String(t.Format("[15:04:05]"), scuf.ModFaint, scuf.FgWhite)
			},
		})
}
