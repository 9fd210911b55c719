package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/voxnotes/meetingbot/pkg/audio"
	"github.com/voxnotes/meetingbot/pkg/browser"
	"github.com/voxnotes/meetingbot/pkg/config"
	"github.com/voxnotes/meetingbot/pkg/log"
	"github.com/voxnotes/meetingbot/pkg/platform"
	"github.com/voxnotes/meetingbot/pkg/relay"
)

// JoinRequest carries the parameters of one join operation.
type JoinRequest struct {
	Platform    string `json:"platform"`
	MeetingURL  string `json:"meeting_url"`
	Password    string `json:"password,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// ScheduleAck acknowledges an accepted deferred join.
type ScheduleAck struct {
	MeetingID     string            `json:"meeting_id"`
	Platform      platform.Platform `json:"platform"`
	ScheduledTime time.Time         `json:"scheduled_time"`
}

// joinDriverFunc performs the driver-facing part of a join: launch the
// browser, install the audio tap, run the platform strategy. The driver it
// produces is attached to the session as soon as it exists, so the caller
// can guarantee teardown on any failure. Swapped out in tests.
type joinDriverFunc func(ctx context.Context, sess *Session, req JoinRequest) error

// Orchestrator composes driver, strategies, relay, registry, and scheduler
// into the join/leave/list/schedule operations.
type Orchestrator struct {
	cfg       *config.Config
	registry  *Registry
	bus       *audio.Bus
	scheduler Scheduler

	joinDriver joinDriverFunc
}

func NewOrchestrator(cfg *config.Config, bus *audio.Bus, scheduler Scheduler) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		registry:  NewRegistry(),
		bus:       bus,
		scheduler: scheduler,
	}
	o.joinDriver = o.launchAndJoin
	return o
}

// RequestJoin validates the request, drives the platform join sequence,
// and registers the resulting session. Either the session reaches active
// status with a registry entry, or the join fails with the driver closed
// and no entry left behind.
func (o *Orchestrator) RequestJoin(ctx context.Context, req JoinRequest) (Summary, error) {
	p, ok := platform.Parse(req.Platform)
	if !ok {
		return Summary{}, fmt.Errorf("platform %q: %w", req.Platform, ErrUnsupportedPlatform)
	}

	meetingID := platform.MeetingIDFromURL(p, req.MeetingURL)
	sess := newSession(meetingID, p)

	// Registering up front makes the duplicate check atomic with the
	// reservation; concurrent joins for the same id cannot both launch a
	// driver.
	if err := o.registry.Register(sess); err != nil {
		return Summary{}, fmt.Errorf("meeting %s: %w", meetingID, err)
	}

	log.Infof("Joining %s meeting %s as %q", p, meetingID, o.displayName(req))

	if err := o.joinDriver(ctx, sess, req); err != nil {
		sess.setStatus(StatusFailed)
		sess.CloseDriver()
		o.registry.RemoveSession(meetingID, sess)
		metricSessionOutcomes.WithLabelValues(p.String(), outcomeFailed).Inc()
		log.Errorf("Join failed for meeting %s: %v", meetingID, err)
		return Summary{}, fmt.Errorf("failed to join meeting %s: %w", meetingID, err)
	}

	// Reconcile against a leave that raced the join: the session may have
	// been removed while the sequence was in flight. A late success tears
	// itself down instead of re-registering.
	if !sess.transition(StatusJoining, StatusActive) || !o.registry.Contains(sess) {
		sess.CloseDriver()
		o.registry.RemoveSession(meetingID, sess)
		log.Infof("Meeting %s was cancelled during join, tearing down", meetingID)
		return Summary{}, fmt.Errorf("meeting %s: %w", meetingID, ErrSessionNotFound)
	}

	metricSessionOutcomes.WithLabelValues(p.String(), outcomeJoined).Inc()
	log.Infof("Successfully joined meeting: %s", meetingID)
	return sess.Summary(), nil
}

// RequestLeave tears down the session for a meeting id. Leaving twice is
// safe: the second call reports ErrSessionNotFound and teardown runs once.
func (o *Orchestrator) RequestLeave(meetingID string) error {
	sess, ok := o.registry.Lookup(meetingID)
	if !ok {
		return fmt.Errorf("meeting %s: %w", meetingID, ErrSessionNotFound)
	}

	sess.setStatus(StatusLeaving)

	// Remove before closing so a disconnect event fired by the close is
	// not mistaken for a crash of a live session.
	o.registry.RemoveSession(meetingID, sess)
	sess.CloseDriver()
	sess.setStatus(StatusClosed)

	metricSessionOutcomes.WithLabelValues(sess.Platform.String(), outcomeLeft).Inc()
	log.Infof("Successfully left meeting: %s", meetingID)
	return nil
}

// ListActive returns summaries of all registered sessions.
func (o *Orchestrator) ListActive() []Summary {
	return o.registry.List()
}

// GetSession returns the summary and relay stats for one meeting.
func (o *Orchestrator) GetSession(meetingID string) (Summary, relay.Stats, error) {
	sess, ok := o.registry.Lookup(meetingID)
	if !ok {
		return Summary{}, relay.Stats{}, fmt.Errorf("meeting %s: %w", meetingID, ErrSessionNotFound)
	}

	var stats relay.Stats
	if f := sess.Forwarder(); f != nil {
		stats = f.GetStats()
	}
	return sess.Summary(), stats, nil
}

// ScheduleJoin registers a deferred join. Validation runs now with no side
// effects; at fire time the join runs detached and failures are logged,
// not propagated (the original caller is long gone).
func (o *Orchestrator) ScheduleJoin(req JoinRequest, at time.Time) (ScheduleAck, error) {
	p, ok := platform.Parse(req.Platform)
	if !ok {
		return ScheduleAck{}, fmt.Errorf("platform %q: %w", req.Platform, ErrUnsupportedPlatform)
	}
	if !at.After(time.Now()) {
		return ScheduleAck{}, fmt.Errorf("%s: %w", at.Format(time.RFC3339), ErrPastSchedule)
	}

	meetingID := platform.MeetingIDFromURL(p, req.MeetingURL)
	if _, exists := o.registry.Lookup(meetingID); exists {
		return ScheduleAck{}, fmt.Errorf("meeting %s: %w", meetingID, ErrDuplicateSession)
	}

	o.scheduler.Schedule(at, func() {
		log.Infof("Scheduled join firing for meeting %s", meetingID)
		if _, err := o.RequestJoin(context.Background(), req); err != nil {
			log.Errorf("Scheduled join for meeting %s failed: %v", meetingID, err)
		}
	})

	log.Infof("Scheduled join for meeting %s at %s", meetingID, at.Format(time.RFC3339))
	return ScheduleAck{MeetingID: meetingID, Platform: p, ScheduledTime: at}, nil
}

// GetMeetingCount returns the number of registered sessions.
func (o *Orchestrator) GetMeetingCount() int {
	return o.registry.Count()
}

// Shutdown leaves every registered meeting.
func (o *Orchestrator) Shutdown() {
	log.Info("Shutting down orchestrator")

	for _, summary := range o.registry.List() {
		if err := o.RequestLeave(summary.MeetingID); err != nil {
			log.Errorf("Error leaving meeting %s during shutdown: %v", summary.MeetingID, err)
		}
	}

	log.Info("Orchestrator shutdown complete")
}

func (o *Orchestrator) displayName(req JoinRequest) string {
	if req.DisplayName != "" {
		return req.DisplayName
	}
	return o.cfg.BotDisplayName
}

// launchAndJoin is the production joinDriverFunc: launches a browser with
// media permissions for the platform origin, installs the relay tap and
// sink before any platform script runs, then executes the join sequence.
func (o *Orchestrator) launchAndJoin(ctx context.Context, sess *Session, req JoinRequest) error {
	strategy, ok := platform.ForPlatform(sess.Platform)
	if !ok {
		return fmt.Errorf("platform %q: %w", sess.Platform, ErrUnsupportedPlatform)
	}

	d, err := browser.Launch(browser.Options{
		Headless:         o.cfg.Headless,
		PermissionOrigin: sess.Platform.Origin(),
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	sess.attachDriver(d)

	forwarder := relay.NewForwarder(sess.MeetingID, o.cfg.TranscriptionURL, o.bus)
	sess.attachForwarder(forwarder)

	d.OnConsole(func(text string) {
		log.WithField("meeting_id", sess.MeetingID).Debugf("page console: %s", text)
	})

	// Sink and tap must both be in place before the first navigation so the
	// wrapper is ahead of the platform's own getUserMedia use.
	if err := d.ExposeSink(relay.SinkName, forwarder.HandleChunk); err != nil {
		return fmt.Errorf("failed to expose audio sink: %w", err)
	}
	if err := d.InjectOnLoad(relay.TapScript(o.cfg.AudioChunkSamples)); err != nil {
		return fmt.Errorf("failed to inject audio tap: %w", err)
	}

	err = strategy.Join(ctx, d, platform.JoinOptions{
		MeetingURL:        req.MeetingURL,
		Password:          req.Password,
		DisplayName:       o.displayName(req),
		StepTimeout:       o.cfg.StepTimeout,
		NavigationTimeout: o.cfg.NavigationTimeout,
	})
	if err != nil {
		return err
	}

	log.Debugf("Meeting %s landed on %s", sess.MeetingID, d.URL())

	d.OnCrash(func() {
		o.handleCrash(sess)
	})
	return nil
}

// handleCrash reacts to the browser process dying under an active session:
// the session is failed and removed, never retried.
func (o *Orchestrator) handleCrash(sess *Session) {
	// Teardown paths close the browser too, which fires the same
	// disconnect event; only a session still registered counts as a crash.
	if !o.registry.RemoveSession(sess.MeetingID, sess) {
		return
	}

	sess.setStatus(StatusFailed)
	sess.CloseDriver()
	metricSessionOutcomes.WithLabelValues(sess.Platform.String(), outcomeCrashed).Inc()
	log.Errorf("Browser driver crashed for meeting %s, session removed", sess.MeetingID)
}
