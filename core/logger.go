package core

// Logger logs messages along with any number of args.
// Args may be errors, map[string]interface{} of extra fields, or the user the message is about.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
