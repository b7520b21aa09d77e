// Package session stamps a unique id onto each top-level download or
// inspection run, so log lines from the peer, piece, and metadata-over-
// wire packages can be correlated back to one invocation even though
// tlog itself is a plain package-level logger with no per-call context.
package session

import (
	"github.com/google/uuid"

	"github.com/lvbealr/minitorrent/internal/tlog"
)

// ID is a run-scoped correlation id, logged at the start and end of a
// subcommand's work.
type ID string

// New mints a fresh correlation id and logs it.
func New(command string) ID {
	id := ID(uuid.NewString())
	tlog.Info("[%s] session %s started", id, command)
	return id
}

// Done logs the end of the run, successful or not.
func (id ID) Done(err error) {
	if err != nil {
		tlog.Fail("[%s] session failed: %v", id, err)
		return
	}
	tlog.Info("[%s] session completed", id)
}
