package db

import (
	"log/slog"
	"time"

	"launchspace/internal/launch"
)

// NewService wires a launch.Service to the repositories on st.
func NewService(st *Store, log *slog.Logger) *launch.Service {
	return &launch.Service{
		Tx:    st,
		Subs:  &Submissions{st},
		Votes: &Votes{st},
		Users: &Users{st},
		Log:   log,
		Now:   time.Now,
	}
}
