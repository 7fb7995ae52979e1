package launch

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrIllegalState    = errors.New("illegal state")
	ErrNotVotable      = errors.New("submission is not open for voting")
	ErrWeekNotComplete = errors.New("launch week has not finished")
	ErrDuplicateSlug   = errors.New("slug already taken")
	ErrDuplicateVote   = errors.New("vote already exists")
	ErrInvalidVoteType = &ValidationError{Fields: map[string]string{"voteType": "must be upvote or downvote"}}
)

// ValidationError carries per-field problems found before any write.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
