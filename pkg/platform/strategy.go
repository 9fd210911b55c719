package platform

import (
	"context"
	"errors"
	"time"

	"github.com/voxnotes/meetingbot/pkg/browser"
)

// JoinOptions carries the parameters of one join attempt.
type JoinOptions struct {
	MeetingURL  string
	Password    string
	DisplayName string

	// StepTimeout bounds every element wait; NavigationTimeout bounds page
	// loads, which routinely take longer on conferencing sites.
	StepTimeout       time.Duration
	NavigationTimeout time.Duration
}

// Strategy encodes the ordered driver steps needed to get an automated
// participant from a join URL into a joined meeting on one platform.
// Adding a platform means adding a Strategy, not touching shared logic.
type Strategy interface {
	Name() Platform
	Join(ctx context.Context, d *browser.Driver, opts JoinOptions) error
}

// ForPlatform returns the strategy variant for the given platform.
func ForPlatform(p Platform) (Strategy, bool) {
	switch p {
	case Zoom:
		return &zoomStrategy{}, true
	case GoogleMeet:
		return &meetStrategy{}, true
	case MSTeams:
		return &teamsStrategy{}, true
	default:
		return nil, false
	}
}

// stepErr wraps a driver failure into a StepError, classifying element
// timeouts so callers can distinguish "selector never appeared" from
// "platform rejected us".
func stepErr(p Platform, step string, err error) error {
	return &StepError{
		Platform: p,
		Step:     step,
		Timeout:  errors.Is(err, browser.ErrElementTimeout),
		Err:      err,
	}
}

// checkCtx aborts a join sequence between steps once the session has been
// cancelled. An individual step already launched is allowed to finish.
func checkCtx(ctx context.Context, p Platform, step string) error {
	select {
	case <-ctx.Done():
		return stepErr(p, step, ctx.Err())
	default:
		return nil
	}
}
