// File: internal/routine/runner.go

// Package routine orchestrates the per-user pipeline: login, list the open
// collection forms, fill each from the user's declared answers, and submit.
package routine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"campusdaily/internal/campus/auth"
	"campusdaily/internal/campus/collector"
	"campusdaily/internal/config"
	"campusdaily/internal/notify"
)

// Outcome classifies how one form ended up.
type Outcome string

const (
	// OutcomeOK: filled and accepted by the server.
	OutcomeOK Outcome = "ok"
	// OutcomeFailed: filled but the server declined the submission.
	OutcomeFailed Outcome = "failed"
	// OutcomeMisbehaved: the form could not be filled from the user's
	// declared answers (missing answers, cardinality, schema drift).
	OutcomeMisbehaved Outcome = "misbehaved"
)

// FormResult is the outcome for a single form within a user's run.
type FormResult struct {
	Subject string
	Outcome Outcome
}

// RecordEntry is one persisted history row.
type RecordEntry struct {
	Username string
	School   string
	Subject  string
	Outcome  Outcome
	At       time.Time
}

// Recorder persists run history. Implementations must tolerate being called
// concurrently from per-user goroutines.
type Recorder interface {
	Record(ctx context.Context, entries []RecordEntry) error
}

// Runner processes user profiles against the campus platform.
type Runner struct {
	log      *zap.Logger
	netCfg   config.NetworkConfig
	notifier notify.Notifier
	recorder Recorder

	concurrency int64

	// sessionOpts is test plumbing for pointing sessions at a fixture
	// directory.
	sessionOpts []auth.Option
}

// NewRunner wires a runner. notifier and recorder may be nil.
func NewRunner(netCfg config.NetworkConfig, concurrency int, notifier notify.Notifier, recorder Recorder, logger *zap.Logger, sessionOpts ...auth.Option) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Runner{
		log:         logger.Named("routine"),
		netCfg:      netCfg,
		notifier:    notifier,
		recorder:    recorder,
		concurrency: int64(concurrency),
		sessionOpts: sessionOpts,
	}
}

// ProcessUser runs the whole pipeline for one profile. The returned results
// cover every form the platform listed; an error means the run aborted before
// any form could be judged (resolution, login, or schema failures).
func (r *Runner) ProcessUser(ctx context.Context, profile *config.Profile) ([]FormResult, error) {
	log := r.log.With(zap.String("username", profile.Username))

	session, err := auth.NewSession(profile.Username, profile.Password, r.netCfg, r.log, r.sessionOpts...)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	inst, err := session.ResolveInstitution(ctx, profile.SchoolName)
	if err != nil {
		return nil, err
	}

	ok, err := session.Login(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("routine: login rejected for %s", profile.Username)
	}

	catalog := collector.New(session.Client(), inst.Root, r.netCfg.SlowRequestTimeout, r.log)
	forms, err := catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("Collection forms fetched", zap.Int("count", len(forms)))

	identity := collector.Identity{
		Username:  profile.Username,
		Address:   profile.Address,
		Longitude: profile.Longitude,
		Latitude:  profile.Latitude,
		DeviceID:  profile.DeviceID,
	}

	results := make([]FormResult, 0, len(forms))
	for _, form := range forms {
		if form.Handled {
			log.Debug("Form already handled, skipping", zap.String("subject", form.Subject))
			continue
		}
		// A schema we cannot even fetch means the session is broken; stop
		// the whole user run rather than misjudging the remaining forms.
		if err := catalog.FetchSchema(ctx, form); err != nil {
			return results, err
		}

		outcome := r.processForm(ctx, catalog, form, profile, identity, log)
		results = append(results, FormResult{Subject: form.Subject, Outcome: outcome})
	}

	r.record(ctx, profile, results, log)
	return results, nil
}

// processForm judges a single fetched form. Fill trouble of any kind is
// Misbehaved: the form stays untouched server-side and the remaining forms
// still get their chance.
func (r *Runner) processForm(ctx context.Context, catalog *collector.Catalog, form *collector.Form, profile *config.Profile, identity collector.Identity, log *zap.Logger) Outcome {
	filled, err := form.Fill(profile.AnswerSets, r.log)
	if err != nil {
		log.Warn("Form cannot be filled", zap.String("subject", form.Subject), zap.Error(err))
		return OutcomeMisbehaved
	}
	if !filled {
		return OutcomeMisbehaved
	}

	accepted, err := catalog.Submit(ctx, form, identity)
	if err != nil {
		log.Warn("Submission did not complete", zap.String("subject", form.Subject), zap.Error(err))
		return OutcomeFailed
	}
	if !accepted {
		return OutcomeFailed
	}
	return OutcomeOK
}

func (r *Runner) record(ctx context.Context, profile *config.Profile, results []FormResult, log *zap.Logger) {
	if r.recorder == nil || len(results) == 0 {
		return
	}
	now := time.Now()
	entries := make([]RecordEntry, 0, len(results))
	for _, res := range results {
		entries = append(entries, RecordEntry{
			Username: profile.Username,
			School:   profile.SchoolName,
			Subject:  res.Subject,
			Outcome:  res.Outcome,
			At:       now,
		})
	}
	// History is best effort; a down database never fails the run.
	if err := r.recorder.Record(ctx, entries); err != nil {
		log.Warn("History recording failed", zap.Error(err))
	}
}

// ProcessAll processes every profile with bounded concurrency, pushing a
// per-user summary through the notifier. Panics in a user's goroutine are
// contained to that user.
func (r *Runner) ProcessAll(ctx context.Context, profiles []config.Profile) {
	sem := semaphore.NewWeighted(r.concurrency)
	var wg sync.WaitGroup

	for i := range profiles {
		profile := &profiles[i]
		if err := sem.Acquire(ctx, 1); err != nil {
			r.log.Warn("Run cancelled before all users were processed", zap.Error(err))
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error("User run panicked",
						zap.String("username", profile.Username), zap.Any("panic", rec))
				}
			}()
			r.runOne(ctx, profile)
		}()
	}
	wg.Wait()
}

func (r *Runner) runOne(ctx context.Context, profile *config.Profile) {
	results, err := r.ProcessUser(ctx, profile)
	text := summarize(profile.Username, results, err)
	if pushErr := r.notifier.Push(ctx, profile.ChatID, text); pushErr != nil {
		r.log.Warn("Notification failed",
			zap.String("username", profile.Username), zap.Error(pushErr))
	}
	if err != nil {
		r.log.Error("User run aborted",
			zap.String("username", profile.Username), zap.Error(err))
	}
}

func summarize(username string, results []FormResult, err error) string {
	if err != nil {
		return fmt.Sprintf("%s: run aborted: %v", username, err)
	}
	if len(results) == 0 {
		return fmt.Sprintf("%s: no open collection forms", username)
	}
	text := username + ":"
	for _, res := range results {
		text += fmt.Sprintf("\n  %s: %s", res.Subject, res.Outcome)
	}
	return text
}
