package iothreads

import "github.com/rs/zerolog"

// emergLevel is a level above all of zerolog's built-in values (Panic,
// NoLevel and Disabled), used for the rare watchdog escalation event that
// precedes a SIGTRAP. zerolog has no built-in EMERG level, so this
// registers a custom level name the way the field marshal hook is meant
// to be extended.
const emergLevel = zerolog.Level(8)

func init() {
	prev := zerolog.LevelFieldMarshalFunc
	zerolog.LevelFieldMarshalFunc = func(l zerolog.Level) string {
		if l == emergLevel {
			return "emerg"
		}
		if prev != nil {
			return prev(l)
		}
		return l.String()
	}
}
