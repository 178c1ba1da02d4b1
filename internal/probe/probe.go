// Package probe decides whether hosts answer HTTP requests and records the
// outcome in the inventory. Network failures are never errors here: a host
// that cannot be reached is simply offline.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"hostboard/internal/models"
	"hostboard/internal/store"
)

const (
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 5 * time.Second

	// DefaultWorkers bounds concurrent probes in a bulk check.
	DefaultWorkers = 8

	// DefaultLockRefresh is how often a held Locker is renewed while a bulk
	// check runs.
	DefaultLockRefresh = time.Minute
)

// ErrBatchRunning is returned by CheckAll when another bulk check holds
// the lock.
var ErrBatchRunning = errors.New("a bulk check is already running")

// HostStore is the slice of store.HostStore the prober needs.
type HostStore interface {
	List(ctx context.Context) ([]models.Host, error)
	FindByID(ctx context.Context, id int64) (*models.Host, error)
	UpdateStatus(ctx context.Context, id int64, status models.Status, checkedAt time.Time) error
}

// Locker guards bulk checks across processes. cache.CheckState implements
// it on top of Valkey. Refresh extends a held lock and reports false once
// the lock is no longer ours.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Refresh(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// Recorder receives the summary of every finished bulk check.
type Recorder interface {
	Record(ctx context.Context, s *Summary)
}

// Summary is the outcome of a bulk check. Checked always equals
// Online + Offline.
type Summary struct {
	Checked    int       `json:"checked"`
	Online     int       `json:"online"`
	Offline    int       `json:"offline"`
	Message    string    `json:"message"`
	FinishedAt time.Time `json:"finished_at"`
}

// Prober checks host reachability.
type Prober struct {
	hosts    HostStore
	client   *http.Client
	timeout  time.Duration
	workers  int
	now      func() time.Time
	locker      Locker
	lockRefresh time.Duration
	recorder    Recorder

	// running keeps bulk checks exclusive within this process.
	running sync.Mutex
	last    atomic.Pointer[Summary]
}

// Option configures a Prober.
type Option func(*Prober)

// WithClient replaces the HTTP client used for probes.
func WithClient(c *http.Client) Option {
	return func(p *Prober) { p.client = c }
}

// WithWorkers sets the bulk check concurrency.
func WithWorkers(n int) Option {
	return func(p *Prober) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithClock overrides the time source used for last_checked.
func WithClock(now func() time.Time) Option {
	return func(p *Prober) { p.now = now }
}

// WithLocker makes bulk checks exclusive across every process sharing l.
func WithLocker(l Locker) Option {
	return func(p *Prober) { p.locker = l }
}

// WithLockRefresh sets how often the Locker is renewed during a bulk
// check. It must be well below the lock's expiry.
func WithLockRefresh(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.lockRefresh = d
		}
	}
}

// WithRecorder registers r to receive bulk check summaries.
func WithRecorder(r Recorder) Option {
	return func(p *Prober) { p.recorder = r }
}

// New returns a Prober writing results to hosts. A zero timeout uses
// DefaultTimeout.
func New(hosts HostStore, timeout time.Duration, opts ...Option) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := &Prober{
		hosts:       hosts,
		timeout:     timeout,
		workers:     DefaultWorkers,
		lockRefresh: DefaultLockRefresh,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: timeout}
	}
	return p
}

// candidates returns the URLs to try for rawURL, in order. Addresses
// without a scheme are tried over plain HTTP first.
func candidates(rawURL string) []string {
	target := strings.TrimRight(strings.TrimSpace(rawURL), "/")
	if target == "" {
		return nil
	}
	if models.HasScheme(target) {
		return []string{target}
	}
	return []string{"http://" + target, "https://" + target}
}

// Check probes rawURL. The first candidate that produces any HTTP response
// decides: a status below 400 is online, anything else offline. When no
// candidate answers the host is offline.
func (p *Prober) Check(ctx context.Context, rawURL string) models.Status {
	for _, u := range candidates(rawURL) {
		code, err := p.get(ctx, u)
		if err != nil {
			slog.Debug("probe attempt failed", "url", u, "error", err)
			continue
		}
		if code < http.StatusBadRequest {
			return models.StatusOnline
		}
		return models.StatusOffline
	}
	return models.StatusOffline
}

// get issues one GET bounded by the configured timeout.
func (p *Prober) get(ctx context.Context, u string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}

// CheckHost probes one host by id and records the result.
func (p *Prober) CheckHost(ctx context.Context, id int64) (models.Status, error) {
	h, err := p.hosts.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(h.URL) == "" {
		return "", &store.ValidationError{Field: "url", Message: "is empty"}
	}

	status := p.Check(ctx, h.URL)
	if err := p.hosts.UpdateStatus(ctx, id, status, p.now()); err != nil {
		return status, fmt.Errorf("record status for host %d: %w", id, err)
	}
	return status, nil
}

// CheckAll probes every host that has a URL, at most p.workers at a time,
// and records each result as it arrives. A failing host never stops the
// batch. If ctx is cancelled, hosts not yet probed are left untouched and
// ctx.Err() is returned with the partial summary.
func (p *Prober) CheckAll(ctx context.Context) (*Summary, error) {
	if !p.running.TryLock() {
		return nil, ErrBatchRunning
	}
	defer p.running.Unlock()

	if p.locker != nil {
		ok, err := p.locker.TryLock(ctx)
		if err != nil {
			// The shared lock is best effort; fall back to the local one.
			slog.Warn("bulk check lock unavailable", "error", err)
		} else if !ok {
			return nil, ErrBatchRunning
		} else {
			defer func() {
				if err := p.locker.Unlock(context.WithoutCancel(ctx)); err != nil {
					slog.Warn("bulk check unlock failed", "error", err)
				}
			}()
			defer p.keepLock(ctx)()
		}
	}

	hosts, err := p.hosts.List(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		summary Summary
		g       errgroup.Group
	)
	g.SetLimit(p.workers)

	for _, h := range hosts {
		if strings.TrimSpace(h.URL) == "" {
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			status := p.Check(ctx, h.URL)
			if ctx.Err() != nil {
				// Cancelled mid-probe; the result is not trustworthy.
				return nil
			}
			if err := p.hosts.UpdateStatus(ctx, h.ID, status, p.now()); err != nil {
				slog.Error("failed to record host status", "host_id", h.ID, "error", err)
			}

			mu.Lock()
			defer mu.Unlock()
			summary.Checked++
			if status == models.StatusOnline {
				summary.Online++
			} else {
				summary.Offline++
			}
			return nil
		})
	}
	g.Wait()

	summary.Message = fmt.Sprintf("Checked %d hosts: %d online, %d offline",
		summary.Checked, summary.Online, summary.Offline)
	summary.FinishedAt = p.now()

	if err := ctx.Err(); err != nil {
		return &summary, err
	}

	slog.Info("bulk check finished",
		"checked", summary.Checked,
		"online", summary.Online,
		"offline", summary.Offline,
	)
	p.last.Store(&summary)
	if p.recorder != nil {
		p.recorder.Record(ctx, &summary)
	}
	return &summary, nil
}

// keepLock renews the shared lock every lockRefresh until the returned
// stop function is called. stop waits for the renewer to exit, so Unlock
// never races a Refresh.
func (p *Prober) keepLock(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.lockRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ok, err := p.locker.Refresh(ctx)
				if err != nil {
					slog.Warn("bulk check lock refresh failed", "error", err)
					continue
				}
				if !ok {
					slog.Warn("bulk check lock lost before the run finished")
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// Last returns the summary of the most recent completed bulk check run by
// this process.
func (p *Prober) Last() (*Summary, bool) {
	s := p.last.Load()
	return s, s != nil
}

// Run performs a bulk check every interval until ctx is cancelled.
func (p *Prober) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("periodic host checks enabled", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.CheckAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("periodic bulk check skipped", "error", err)
			}
		}
	}
}
