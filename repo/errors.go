package repo

import (
	"fmt"
	"strings"
)

// ParseError is an invalid repository metadata file.
type ParseError struct {
	Repo  string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse metadata for repository %q: %v", e.Repo, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// DownloadFailure pairs a failed target URI with what went wrong.
type DownloadFailure struct {
	URI   string
	Cause error
}

func (e *DownloadFailure) Error() string {
	return fmt.Sprintf("%s: %v", e.URI, e.Cause)
}

func (e *DownloadFailure) Unwrap() error { return e.Cause }

// DownloadErrors aggregates every failure from one update call. When any are
// present the update's pending ETag changes have been rolled back.
type DownloadErrors struct {
	Failures []*DownloadFailure
}

func (e *DownloadErrors) Error() string {
	if len(e.Failures) == 1 {
		return "repository update failed: " + e.Failures[0].Error()
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("repository update failed (%d errors): %s",
		len(e.Failures), strings.Join(parts, "; "))
}
