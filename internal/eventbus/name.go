package eventbus

import "golang.org/x/text/cases"

// foldName returns the lookup key for an event name. Casers carry state, so
// a fresh one is made per call.
func foldName(name string) string {
	return cases.Fold().String(name)
}
