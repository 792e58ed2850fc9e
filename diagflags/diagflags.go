// SPDX-License-Identifier: MIT

// Package diagflags is a small diagnostic sink: a set of named
// boolean flags a running service tree can raise and clear to signal
// degraded conditions (a dependency unavailable, a resource low) to
// an external observer, without the tree itself owning a health
// check subsystem.
package diagflags

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Sink is a concurrency-safe bag of named boolean flags, each
// remembering when it was last changed.
type Sink struct {
	mu    sync.RWMutex
	flags map[string]entry
	now   func() time.Time
}

type entry struct {
	set bool
	at  time.Time
}

// New returns an empty Sink.
func New() *Sink {
	return &Sink{
		flags: make(map[string]entry),
		now:   time.Now,
	}
}

// Set raises the named flag.
func (s *Sink) Set(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[name] = entry{set: true, at: s.now()}
}

// Unset clears the named flag.
func (s *Sink) Unset(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[name] = entry{set: false, at: s.now()}
}

// IsSet reports whether name is currently raised. An unknown flag
// reports false.
func (s *Sink) IsSet(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[name].set
}

// Names returns every flag currently raised, sorted.
func (s *Sink) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name, e := range s.flags {
		if e.set {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// String renders every flag that has ever been set or unset, with its
// current state and a humanized "N ago" time since it last changed,
// for debug dumps and operator consoles.
func (s *Sink) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.flags) == 0 {
		return "diagflags: (empty)"
	}

	var names []string
	for name := range s.flags {
		names = append(names, name)
	}
	sort.Strings(names)

	now := s.now()
	var b strings.Builder
	b.WriteString("diagflags:")
	for _, name := range names {
		e := s.flags[name]
		state := "unset"
		if e.set {
			state = "set"
		}
		fmt.Fprintf(&b, " %s=%s(%s)", name, state, humanize.RelTime(e.at, now, "ago", "from now"))
	}
	return b.String()
}
