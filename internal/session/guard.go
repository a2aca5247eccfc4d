package session

import "github.com/sirupsen/logrus"

type release struct {
	name string
	kind Kind
	fn   func() error
}

// guard releases acquired resources in reverse order. Release failures are
// logged and never returned, so they cannot mask the error that caused the
// unwind.
type guard struct {
	log      *logrus.Entry
	releases []release
}

func newGuard(log *logrus.Entry) *guard {
	return &guard{log: log}
}

// push registers fn to run on release. kind classifies a failure of fn.
func (g *guard) push(name string, kind Kind, fn func() error) {
	g.releases = append(g.releases, release{name: name, kind: kind, fn: fn})
}

// release runs every registered function, newest first.
func (g *guard) release() {
	for i := len(g.releases) - 1; i >= 0; i-- {
		r := g.releases[i]
		if err := r.fn(); err != nil {
			g.log.WithFields(logrus.Fields{
				"function": "release",
				"step":     r.name,
			}).WithError(fail(r.kind, err)).Warn("Release failed")
			continue
		}
		g.log.WithField("step", r.name).Debug("Released")
	}
	g.releases = nil
}
