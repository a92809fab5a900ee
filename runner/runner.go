// Package runner dispatches scrape requests to the backend and reports
// their outcome to the operation store.
//
// Every dispatch generates a fresh operation key, starts the store with it
// and runs the backend call on its own goroutine. Completions are reported
// with the key they were started with, so a superseded or cancelled request
// can never overwrite the current operation.
package runner

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/use-agent/scrapedesk/backend"
	"github.com/use-agent/scrapedesk/form"
	"github.com/use-agent/scrapedesk/models"
	"github.com/use-agent/scrapedesk/operation"
)

var (
	// ErrNoActiveOperation is returned by Cancel when nothing is running.
	ErrNoActiveOperation = models.NewAppError(models.ErrCodeNoActiveOperation,
		"no scraping operation is running", nil)

	// ErrNoSession is returned by interactive calls that need an open
	// browser session when there is none.
	ErrNoSession = models.NewAppError(models.ErrCodeNoSession,
		"no active interactive session; start one first", nil)
)

// Backend is the subset of backend.Client the runner drives.
type Backend interface {
	ScrapeStatic(ctx context.Context, url string) (json.RawMessage, error)
	ScrapeDynamic(ctx context.Context, req *models.DynamicScrapeRequest) (json.RawMessage, error)
	StopScraper(ctx context.Context) (*models.StopResponse, error)
	CancelTask(ctx context.Context, taskID string) (*models.StopResponse, error)
	StartBrowser(ctx context.Context, req *models.InteractiveStartRequest) (*models.InteractiveResponse, json.RawMessage, error)
	ScrapeActivePage(ctx context.Context, req *models.InteractiveScrapeRequest) (json.RawMessage, error)
	StopBrowser(ctx context.Context, sessionID string) (*models.InteractiveResponse, json.RawMessage, error)
}

// Sessions remembers the active interactive session id.
type Sessions interface {
	SessionID() string
	SetSessionID(id string) error
}

// Notifier receives snapshots of operations that reached a terminal status.
type Notifier interface {
	Notify(op models.Operation)
}

// Runner owns operation keys and talks to the backend on behalf of the
// scrape forms. It is safe for concurrent use.
type Runner struct {
	be       Backend
	store    *operation.Store
	sessions Sessions
	notifier Notifier

	base   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	cancel sync.Mutex // serialises Cancel calls
}

// Option configures a Runner.
type Option func(*Runner)

// WithSessions persists the interactive session id in s.
func WithSessions(s Sessions) Option {
	return func(r *Runner) { r.sessions = s }
}

// WithNotifier reports terminal operations to n.
func WithNotifier(n Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// New creates a Runner. Without WithSessions the session id is kept in
// memory only.
func New(be Backend, store *operation.Store, opts ...Option) *Runner {
	base, stop := context.WithCancel(context.Background())
	r := &Runner{
		be:       be,
		store:    store,
		sessions: &memorySessions{},
		base:     base,
		stop:     stop,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the operation store the runner reports to.
func (r *Runner) Store() *operation.Store { return r.store }

// Session returns the active interactive session id, or "".
func (r *Runner) Session() string { return r.sessions.SessionID() }

// Close aborts in-flight backend calls and waits for their goroutines.
func (r *Runner) Close() {
	r.stop()
	r.wg.Wait()
}

// Static scrapes url with the backend's static scraper.
func (r *Runner) Static(ctx context.Context, url string) (*Ticket, error) {
	url = strings.TrimSpace(url)
	if err := form.ValidateURL(url); err != nil {
		return nil, models.NewAppError(models.ErrCodeInvalidInput, err.Error(), nil)
	}
	return r.dispatch(ctx, models.ScrapeTypeStatic, func(ctx context.Context, key operation.Key) error {
		payload, err := r.be.ScrapeStatic(ctx, url)
		if err != nil {
			return err
		}
		r.succeed(key, payload)
		return nil
	}), nil
}

// Dynamic runs a browser-driven scrape configured by s.
func (r *Runner) Dynamic(ctx context.Context, s *form.State) (*Ticket, error) {
	if err := s.Validate(models.ScrapeTypeDynamic); err != nil {
		return nil, err
	}
	req := s.DynamicRequest()
	return r.dispatch(ctx, models.ScrapeTypeDynamic, func(ctx context.Context, key operation.Key) error {
		payload, err := r.be.ScrapeDynamic(ctx, req)
		if err != nil {
			return err
		}
		if id := backend.TaskID(payload); id != "" {
			r.store.AttachExternalID(key, id)
		}
		r.succeed(key, payload)
		return nil
	}), nil
}

// StartInteractive opens an interactive browser session, optionally at
// startURL. The returned session id is remembered for later calls.
func (r *Runner) StartInteractive(ctx context.Context, startURL string) (*Ticket, error) {
	s := &form.State{InteractiveStartURL: startURL}
	if err := s.Validate(models.ScrapeTypeInteractiveStart); err != nil {
		return nil, err
	}
	req := s.InteractiveStartRequest()
	return r.dispatch(ctx, models.ScrapeTypeInteractiveStart, func(ctx context.Context, key operation.Key) error {
		resp, raw, err := r.be.StartBrowser(ctx, req)
		if err != nil {
			return err
		}
		if err := r.sessions.SetSessionID(resp.SessionID); err != nil {
			slog.Warn("runner: cannot persist session id", "error", err)
		}
		slog.Info("interactive session started", "session_id", resp.SessionID, "url", resp.CurrentURL)
		r.succeed(key, raw)
		return nil
	}), nil
}

// ScrapeInteractive extracts data from the page open in the active session.
func (r *Runner) ScrapeInteractive(ctx context.Context, s *form.State) (*Ticket, error) {
	sid := r.sessions.SessionID()
	if sid == "" {
		return nil, ErrNoSession
	}
	if err := s.Validate(models.ScrapeTypeInteractiveScrape); err != nil {
		return nil, err
	}
	s = s.Clone()
	s.SessionID = sid
	req := s.InteractiveScrapeRequest()
	return r.dispatch(ctx, models.ScrapeTypeInteractiveScrape, func(ctx context.Context, key operation.Key) error {
		payload, err := r.be.ScrapeActivePage(ctx, req)
		if err != nil {
			return err
		}
		r.succeed(key, payload)
		return nil
	}), nil
}

// EndInteractive closes the active session.
func (r *Runner) EndInteractive(ctx context.Context) (*Ticket, error) {
	sid := r.sessions.SessionID()
	if sid == "" {
		return nil, ErrNoSession
	}
	return r.dispatch(ctx, models.ScrapeTypeInteractiveEnd, func(ctx context.Context, key operation.Key) error {
		_, raw, err := r.be.StopBrowser(ctx, sid)
		if err != nil {
			return err
		}
		if r.sessions.SessionID() == sid {
			if err := r.sessions.SetSessionID(""); err != nil {
				slog.Warn("runner: cannot clear session id", "error", err)
			}
		}
		slog.Info("interactive session ended", "session_id", sid)
		r.succeed(key, raw)
		return nil
	}), nil
}

// CancelResult is the outcome of Cancel.
type CancelResult struct {
	Operation models.Operation

	// Notice is the backend's answer to the stop request, or the reason it
	// could not be delivered.
	Notice string
}

// Cancel stops the running operation. A task id attached to the operation
// gets a targeted cancel, otherwise the generic stop signal is sent. The
// local operation is cancelled whatever the backend answered.
func (r *Runner) Cancel(ctx context.Context) (*CancelResult, error) {
	r.cancel.Lock()
	defer r.cancel.Unlock()

	snap := r.store.Snapshot()
	if !snap.IsLoading() {
		return nil, ErrNoActiveOperation
	}
	key := operation.Key(snap.Key)

	var (
		resp *models.StopResponse
		err  error
	)
	if snap.ExternalTaskID != nil {
		resp, err = r.be.CancelTask(ctx, *snap.ExternalTaskID)
	} else {
		resp, err = r.be.StopScraper(ctx)
	}

	res := &CancelResult{}
	switch {
	case err != nil:
		slog.Warn("runner: stop request failed, cancelling locally",
			"operation_key", key, "error", err)
		res.Notice = backend.Message(err)
	case resp.Message != "":
		res.Notice = resp.Message
	default:
		res.Notice = resp.Status
	}

	if r.store.Cancel(key) {
		r.notify(key)
	}
	res.Operation = r.store.Snapshot()
	return res, nil
}

func (r *Runner) dispatch(ctx context.Context, typ models.ScrapeType, do func(context.Context, operation.Key) error) *Ticket {
	key := operation.NewKey()
	r.store.Start(typ, key)
	t := newTicket(key, typ)

	callCtx, release := r.detach(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer release()

		err := do(callCtx, key)
		if err != nil {
			msg := "Error: " + backend.Message(err)
			if r.store.Fail(key, msg) {
				r.notify(key)
			}
			slog.Warn("scrape failed", "scrape_type", typ, "operation_key", key, "error", err)
		}
		t.finish(err)
	}()
	return t
}

// detach derives the context of a dispatched call: it keeps ctx's values,
// outlives the caller's request and is cancelled by Close.
func (r *Runner) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(r.base, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}

func (r *Runner) succeed(key operation.Key, payload json.RawMessage) {
	if r.store.Succeed(key, payload) {
		r.notify(key)
	}
}

func (r *Runner) notify(key operation.Key) {
	if r.notifier == nil {
		return
	}
	op := r.store.Snapshot()
	if op.Key != string(key) {
		return
	}
	r.notifier.Notify(op)
}

type memorySessions struct {
	mu sync.Mutex
	id string
}

func (m *memorySessions) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

func (m *memorySessions) SetSessionID(id string) error {
	m.mu.Lock()
	m.id = id
	m.mu.Unlock()
	return nil
}
