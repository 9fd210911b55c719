package platform

import (
	"fmt"
	"regexp"
	"strings"
)

// Platform identifies a supported conferencing platform.
type Platform string

const (
	Zoom       Platform = "zoom"
	GoogleMeet Platform = "google_meet"
	MSTeams    Platform = "ms_teams"
)

func (p Platform) String() string {
	return string(p)
}

// Parse maps a user-supplied platform name onto a Platform. A few common
// spellings are accepted per platform.
func Parse(name string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "zoom":
		return Zoom, true
	case "google_meet", "googlemeet", "google-meet", "meet":
		return GoogleMeet, true
	case "ms_teams", "msteams", "ms-teams", "teams":
		return MSTeams, true
	default:
		return "", false
	}
}

var (
	zoomIDPattern  = regexp.MustCompile(`/(?:j|wc/join)/(\d+)`)
	meetIDPattern  = regexp.MustCompile(`meet\.google\.com/([a-z]{3,4}-[a-z]{3,4}-[a-z]{3,4})`)
	teamsIDPattern = regexp.MustCompile(`meeting_([A-Za-z0-9_-]+)`)
	slugInvalid    = regexp.MustCompile(`[^a-z0-9]+`)
)

const maxSlugLen = 64

// MeetingIDFromURL derives the normalized meeting identifier for a join
// URL. Extraction is deterministic: the same URL always produces the same
// identifier. URLs that match no platform pattern fall back to a sanitized,
// length-capped slug of the whole string.
func MeetingIDFromURL(p Platform, meetingURL string) string {
	switch p {
	case Zoom:
		if m := zoomIDPattern.FindStringSubmatch(meetingURL); m != nil {
			return m[1]
		}
	case GoogleMeet:
		if m := meetIDPattern.FindStringSubmatch(strings.ToLower(meetingURL)); m != nil {
			return m[1]
		}
	case MSTeams:
		if m := teamsIDPattern.FindStringSubmatch(meetingURL); m != nil {
			return m[1]
		}
	}
	return slugify(meetingURL)
}

func slugify(s string) string {
	slug := strings.ToLower(s)
	slug = strings.TrimPrefix(slug, "https://")
	slug = strings.TrimPrefix(slug, "http://")
	slug = slugInvalid.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		slug = "meeting"
	}
	return slug
}

// Origin returns the origin media permissions are granted for before
// navigation.
func (p Platform) Origin() string {
	switch p {
	case Zoom:
		return "https://zoom.us"
	case GoogleMeet:
		return "https://meet.google.com"
	case MSTeams:
		return "https://teams.microsoft.com"
	default:
		return ""
	}
}

// StepError reports the failure of one step of a join sequence. It
// identifies the step and the underlying cause; steps are never retried at
// this level.
type StepError struct {
	Platform Platform
	Step     string
	Timeout  bool
	Err      error
}

func (e *StepError) Error() string {
	kind := "failed"
	if e.Timeout {
		kind = "timed out"
	}
	return fmt.Sprintf("%s join step %q %s: %v", e.Platform, e.Step, kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
