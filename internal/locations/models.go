// Package locations is the directory of places moves and journeys refer to.
// It backs relationship resolution during event application and the
// relationship expansion of the event feed.
package locations

import id "movetrack/pkg/domain"

type Location struct {
	ID id.LocationID `yaml:"id"`
	// Key is the prison system agency code, e.g. "LEI".
	Key   string `yaml:"key"`
	Title string `yaml:"title"`
	Type  string `yaml:"type"`
}
