package core

// Logger is any service that can log application events, optionally
// shipping them to an external error tracker.
//
// expected args: error, map[string]interface{}, user.User (sets the
// acting person on the tracker when supported)
type Logger interface {
	// Enable turns external reporting on or off; local logging always happens.
	Enable(enabled bool)

	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
