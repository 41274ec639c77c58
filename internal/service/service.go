package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pumptrader/internal/alerting"
	"pumptrader/internal/ledger"
	"pumptrader/internal/market"
	"pumptrader/internal/opportunity"
	"pumptrader/internal/policy"
	"pumptrader/internal/storage"
	"pumptrader/internal/trading"
)

// Scanner produces the observations of one cycle.
type Scanner interface {
	Scan(ctx context.Context) ([]market.TokenObservation, error)
}

// Executor runs trade intents.
type Executor interface {
	Execute(ctx context.Context, intent trading.Intent) trading.Outcome
}

// Reserver grants exclusive cooldown slots per contract.
type Reserver interface {
	TryReserve(ctx context.Context, contract string, window time.Duration) (*ledger.Reservation, bool, error)
}

// Deps are the collaborators of a Service. Locker is optional.
type Deps struct {
	Scanner  Scanner
	Executor Executor
	Ledger   Reserver
	Sender   alerting.Sender
	Locker   storage.AdvisoryLocker
	LockKey  int64
}

// Report summarises one cycle.
type Report struct {
	CycleID      uuid.UUID
	At           time.Time
	Observations int
	Candidates   int
	Executed     int
	Skipped      int
	Failed       int
	// Locked is true when another instance held the cycle lock and nothing ran.
	Locked bool
}

// Service runs the scan, filter, decide and execute cycle.
type Service struct {
	policy   policy.Policy
	scanner  Scanner
	executor Executor
	ledger   Reserver
	sender   alerting.Sender
	locker   storage.AdvisoryLocker
	lockKey  int64
	logger   zerolog.Logger
	now      func() time.Time
}

// New constructs the trading service.
func New(p policy.Policy, deps Deps, logger zerolog.Logger) (*Service, error) {
	if deps.Scanner == nil || deps.Executor == nil || deps.Ledger == nil || deps.Sender == nil {
		return nil, errors.New("service: scanner, executor, ledger and sender are required")
	}
	if p.MaxConcurrency <= 0 {
		p.MaxConcurrency = 1
	}
	return &Service{
		policy:   p,
		scanner:  deps.Scanner,
		executor: deps.Executor,
		ledger:   deps.Ledger,
		sender:   deps.Sender,
		locker:   deps.Locker,
		lockKey:  deps.LockKey,
		logger:   logger.With().Str("component", "service").Logger(),
		now:      time.Now,
	}, nil
}

// Tick adapts RunCycle to the scheduler.
func (s *Service) Tick(ctx context.Context, at time.Time) error {
	_, err := s.RunCycle(ctx, at)
	return err
}

// RunCycle performs one full cycle. A data source outage is reported to the chat and
// returned; no individual candidate failure is ever returned.
func (s *Service) RunCycle(ctx context.Context, at time.Time) (Report, error) {
	report := Report{CycleID: uuid.New(), At: at}
	log := s.logger.With().Str("cycle_id", report.CycleID.String()).Logger()

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return report, err
	}
	if !proceed {
		report.Locked = true
		log.Debug().Msg("skip cycle because advisory lock held elsewhere")
		return report, nil
	}
	if unlock != nil {
		defer unlock()
	}

	observations, err := s.scanner.Scan(ctx)
	if err != nil {
		if errors.Is(err, market.ErrDataSourceUnavailable) {
			s.sender.Send(alerting.ScanFailed(err))
		}
		return report, fmt.Errorf("scan: %w", err)
	}
	report.Observations = len(observations)

	candidates := opportunity.Filter(observations, s.policy, s.now().UTC())
	report.Candidates = len(candidates)
	log.Info().Int("observations", report.Observations).Int("candidates", report.Candidates).Msg("scan filtered")

	var executed, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.policy.MaxConcurrency)
	for _, candidate := range candidates {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					failed.Add(1)
					log.Error().Interface("panic", r).Str("contract", candidate.Observation.ContractAddress).Msg("candidate panicked")
				}
			}()
			switch s.decide(gctx, candidate, log) {
			case decisionExecuted:
				executed.Add(1)
			case decisionSkipped:
				skipped.Add(1)
			case decisionFailed:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Executed = int(executed.Load())
	report.Skipped = int(skipped.Load())
	report.Failed = int(failed.Load())
	log.Info().Int("executed", report.Executed).Int("skipped", report.Skipped).Int("failed", report.Failed).Msg("cycle complete")
	return report, nil
}

type decision int

const (
	decisionNotified decision = iota
	decisionSkipped
	decisionExecuted
	decisionFailed
)

func (s *Service) decide(ctx context.Context, c opportunity.Candidate, log zerolog.Logger) decision {
	obs := c.Observation
	s.sender.Send(alerting.Opportunity(obs))

	if !s.policy.AutoTrade.Enabled {
		return decisionNotified
	}

	reservation, ok, err := s.ledger.TryReserve(ctx, obs.ContractAddress, s.policy.Cooldown)
	if err != nil {
		log.Error().Err(err).Str("contract", obs.ContractAddress).Msg("cooldown check failed; auto-trade skipped")
		return decisionSkipped
	}
	if !ok {
		log.Info().Str("contract", obs.ContractAddress).Dur("cooldown", s.policy.Cooldown).Msg("recently traded; auto-trade skipped")
		return decisionSkipped
	}
	defer reservation.Release()

	intent := trading.NewIntent(obs.ContractAddress, trading.Buy, s.policy.AutoTrade.Amount, trading.SourceAuto)
	outcome := s.executor.Execute(ctx, intent)
	if !outcome.Executed {
		return decisionFailed
	}
	return decisionExecuted
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
