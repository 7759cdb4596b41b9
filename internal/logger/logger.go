// README: Structured JSON logging shared by every component.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

const service = "ordertrack"

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "timestamp",
			logrus.FieldKeyMsg:  "message",
		},
	})
	return l
}

// SetLevel parses level ("debug", "info", ...) and applies it. Unknown values keep the current level.
func SetLevel(level string) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		base.SetLevel(lvl)
	}
}

// New returns an entry tagged with the component name. Components hold on to it instead of
// calling the package functions so tests can swap in a discard logger.
func New(component string) *logrus.Entry {
	return base.WithFields(logrus.Fields{"service": service, "component": component})
}

// Discard returns an entry that writes nowhere.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(discard{})
	return logrus.NewEntry(l)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Fatal logs before any component logger exists and exits.
func Fatal(message string, fields map[string]interface{}) {
	entry(fields).Fatal(message)
}

func entry(fields map[string]interface{}) *logrus.Entry {
	e := base.WithField("service", service)
	if fields != nil {
		e = e.WithFields(logrus.Fields(fields))
	}
	return e
}
