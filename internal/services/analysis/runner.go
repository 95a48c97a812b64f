package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"countertime/internal/dto"
	"countertime/internal/logger"
	"countertime/internal/models"
	"countertime/internal/repository"
	"countertime/internal/zone"
)

// ErrBusy is returned when a run is started while another is in progress.
var ErrBusy = errors.New("an analysis is already running")

// Pipeline feeds one input into a session and returns when the input is
// exhausted.
type Pipeline func(ctx context.Context, s *Session) error

// RunnerConfig wires a Runner. Every field except Zones is optional.
type RunnerConfig struct {
	Zones    *zone.Set
	MinVisit time.Duration
	Runs     repository.RunRepository
	Visits   repository.VisitRepository
	Hub      Broadcaster
	Sinks    []VisitSink
}

type runState struct {
	run     models.Run
	session *Session
}

// Runner executes one analysis at a time and keeps the latest run's session
// available for live reports.
type Runner struct {
	cfg    RunnerConfig
	logger *logger.Logger

	mu      sync.Mutex
	current *runState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(cfg RunnerConfig, logger *logger.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{cfg: cfg, logger: logger, ctx: ctx, cancel: cancel}
}

// Zones returns the counters every run is measured against.
func (r *Runner) Zones() *zone.Set {
	return r.cfg.Zones
}

// Start runs p in the background. cleanup, if set, runs after p returns and
// before the run is marked finished.
func (r *Runner) Start(source string, p Pipeline, cleanup func()) (models.Run, error) {
	st, err := r.begin(source)
	if err != nil {
		return models.Run{}, err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := p(r.ctx, st.session)
		if cleanup != nil {
			cleanup()
		}
		r.finish(st, err)
	}()
	return st.run, nil
}

// Analyze runs p in the calling goroutine and returns the finished session.
func (r *Runner) Analyze(ctx context.Context, source string, p Pipeline) (*Session, models.Run, error) {
	st, err := r.begin(source)
	if err != nil {
		return nil, models.Run{}, err
	}
	runErr := p(ctx, st.session)
	run := r.finish(st, runErr)
	return st.session, run, runErr
}

// Current returns the latest run started by this runner and its session.
func (r *Runner) Current() (models.Run, *Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return models.Run{}, nil, false
	}
	run := r.current.run
	if !run.Finished() {
		run.Frames = r.current.session.Frames()
		run.Visits = r.current.session.Ledger().Len()
	}
	return run, r.current.session, true
}

// Stop cancels a running analysis and waits for it to end.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *Runner) begin(source string) (*runState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil && !r.current.run.Finished() {
		return nil, fmt.Errorf("%w: %s", ErrBusy, r.current.run.ID)
	}

	run := models.Run{
		ID:        uuid.NewString(),
		Source:    source,
		Status:    models.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	if r.cfg.Runs != nil {
		if err := r.cfg.Runs.Insert(&run); err != nil {
			return nil, err
		}
	}

	sinks := append([]VisitSink{}, r.cfg.Sinks...)
	if r.cfg.Visits != nil {
		sinks = append(sinks, NewRepositorySink(r.cfg.Visits))
	}
	if r.cfg.Hub != nil {
		sinks = append(sinks, NewBroadcastSink(r.cfg.Hub))
	}

	st := &runState{
		run:     run,
		session: NewSession(run.ID, r.cfg.Zones, r.cfg.MinVisit, r.logger, sinks...),
	}
	r.current = st
	r.logger.Info("Run %s started for %s", run.ID, source)
	r.announce(st.run)
	return st, nil
}

func (r *Runner) finish(st *runState, runErr error) models.Run {
	r.mu.Lock()
	now := time.Now().UTC()
	st.run.Frames = st.session.Frames()
	st.run.Visits = st.session.Ledger().Len()
	st.run.FinishedAt = &now
	st.run.Status = models.RunCompleted
	if runErr != nil {
		st.run.Status = models.RunFailed
		st.run.Error = runErr.Error()
	}
	run := st.run
	r.mu.Unlock()

	if r.cfg.Runs != nil {
		if err := r.cfg.Runs.UpdateProgress(run.ID, run.Frames, run.Visits); err != nil {
			r.logger.Error("Failed to store progress of run %s: %v", run.ID, err)
		}
		if err := r.cfg.Runs.Finish(run.ID, run.Status, run.Error); err != nil {
			r.logger.Error("Failed to finish run %s: %v", run.ID, err)
		}
	}
	if r.cfg.Visits != nil {
		stored, err := r.cfg.Visits.Count(&models.VisitFilter{RunID: run.ID})
		if err != nil {
			r.logger.Error("Failed to count stored visits of run %s: %v", run.ID, err)
		} else if stored != run.Visits {
			r.logger.Warning("Run %s stored %d of %d visits", run.ID, stored, run.Visits)
		}
	}

	if runErr != nil {
		r.logger.Error("Run %s failed after %d frames: %v", run.ID, run.Frames, runErr)
	} else {
		r.logger.Info("Run %s completed: %d frames, %d visits", run.ID, run.Frames, run.Visits)
	}
	r.announce(run)
	return run
}

func (r *Runner) announce(run models.Run) {
	if r.cfg.Hub == nil {
		return
	}
	msg, err := json.Marshal(dto.RunEvent{
		Type:   dto.EventRun,
		RunID:  run.ID,
		Status: run.Status,
		Frames: run.Frames,
		Visits: run.Visits,
		Error:  run.Error,
	})
	if err != nil {
		return
	}
	r.cfg.Hub.Broadcast(msg)
}

// TrackLogPipeline replays a track log file.
func TrackLogPipeline(path string) Pipeline {
	return func(ctx context.Context, s *Session) error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return Run(ctx, s, NewTrackLogReader(f))
	}
}
