package bot

import "errors"

var (
	// ErrUnsupportedPlatform rejects join requests for platforms no
	// strategy exists for. No driver is launched.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrDuplicateSession rejects a join whose normalized meeting id is
	// already registered. Sessions are never silently superseded.
	ErrDuplicateSession = errors.New("a session already exists for this meeting")

	// ErrSessionNotFound is returned for leave and status requests against
	// unknown meeting ids.
	ErrSessionNotFound = errors.New("no active session for this meeting")

	// ErrPastSchedule rejects scheduled joins whose time is not in the
	// future.
	ErrPastSchedule = errors.New("scheduled time is not in the future")
)
