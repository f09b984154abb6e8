package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/section-swap-api/internal/dto"
	"github.com/noah-isme/section-swap-api/internal/models"
	"github.com/noah-isme/section-swap-api/pkg/config"
	appErrors "github.com/noah-isme/section-swap-api/pkg/errors"
	"github.com/noah-isme/section-swap-api/pkg/jobs"
)

type swapStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListEligible(ctx context.Context, batch, excludeID string) ([]models.Student, error)
	MoveSection(ctx context.Context, exec sqlx.ExtContext, studentID, fromSection, toSection string) error
}

type swapRecordStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, record *models.SwapRecord) error
	List(ctx context.Context, filter models.SwapRecordFilter) ([]models.SwapRecord, error)
}

type matchFlagCache interface {
	GetFlags(ctx context.Context, batch string) (dto.MatchFlags, error)
	SetFlags(ctx context.Context, batch string, flags dto.MatchFlags, ttl time.Duration) error
	InvalidateFlags(ctx context.Context, batch string) error
}

type swapTxProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type refreshDispatcher interface {
	Enqueue(job jobs.Job) error
}

// SwapService hosts the swap-matching engine: it loads a fresh student-pool
// snapshot per search, runs the resolver, and owns plan commits. Searches
// are read only and hold no state across requests, so concurrent calls are
// safe; two searches may race to the same partner and that race is settled
// at commit time, not here.
type SwapService struct {
	students  swapStudentReader
	records   swapRecordStore
	cache     matchFlagCache
	tx        swapTxProvider
	refresh   refreshDispatcher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       config.MatchingConfig
}

// NewSwapService wires the swap engine dependencies. Cache, tx provider,
// refresh queue and metrics are optional; the resolver itself needs only the
// student reader.
func NewSwapService(
	students swapStudentReader,
	records swapRecordStore,
	cache matchFlagCache,
	tx swapTxProvider,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.MatchingConfig,
) *SwapService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRotationLength < minRotationLength {
		cfg.MaxRotationLength = defaultMaxRotation
	}
	if cfg.CandidateCap <= 0 {
		cfg.CandidateCap = defaultCandidateCap
	}
	if cfg.BatchCacheTTL <= 0 {
		cfg.BatchCacheTTL = 10 * time.Minute
	}
	return &SwapService{
		students:  students,
		records:   records,
		cache:     cache,
		tx:        tx,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// SetRefreshDispatcher attaches the background match-flag refresh queue.
// Called after construction because the queue's worker needs the service.
func (s *SwapService) SetRefreshDispatcher(d refreshDispatcher) {
	s.refresh = d
}

func (s *SwapService) limits() resolverLimits {
	return resolverLimits{
		maxDepth:     s.cfg.MaxRotationLength,
		candidateCap: s.cfg.CandidateCap,
	}
}

// FindSwap tries each target section in priority order, first for a direct
// two-party trade and then for a rotation chain. The first hit wins; an
// empty target list falls back to the requester's stored preferences. A
// missing requester is a NotFound error, an exhausted search is a NONE plan,
// not an error.
func (s *SwapService) FindSwap(ctx context.Context, requesterID string, targets []string) (*models.SwapPlan, error) {
	started := time.Now()

	requester, err := s.students.FindByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "requester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requester")
	}
	if len(targets) == 0 {
		targets = requester.DesiredSections
	}

	candidates, err := s.students.ListEligible(ctx, requester.Cohort(), requester.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate pool")
	}
	pool := newStudentPool(candidates)
	limits := s.limits()

	for _, target := range targets {
		if target == "" || target == requester.CurrentSection {
			continue
		}

		if partner := pool.directPartner(requester.CurrentSection, target); partner != nil {
			plan := &models.SwapPlan{
				Type:          models.SwapPlanDirect,
				TargetSection: target,
				Partner: &models.SwapPartner{
					StudentID:   partner.ID,
					StudentName: partner.FullName,
					Section:     partner.CurrentSection,
				},
			}
			s.observeSearch(plan, len(pool.students), time.Since(started))
			return plan, nil
		}

		// Rotations are anchored on the requester's own preferences: the
		// first step is always requester -> target, so a target the
		// requester does not actually want is never chained.
		if !requester.WantsSection(target) {
			continue
		}
		if steps := pool.findRotation(requester, target, limits); steps != nil {
			plan := &models.SwapPlan{
				Type:          models.SwapPlanRotation,
				TargetSection: target,
				Steps:         steps,
			}
			s.observeSearch(plan, len(pool.students), time.Since(started))
			return plan, nil
		}
	}

	plan := models.NoSwapPlan()
	s.observeSearch(plan, len(pool.students), time.Since(started))
	return plan, nil
}

// CheckAllMatches computes the "has potential swap" flag for every eligible
// student in the batch, serving from the Redis cache when warm. The checker
// reuses the rotation search with a reduced depth cap, so it is a cheap
// approximation and never authoritative for the full resolver.
func (s *SwapService) CheckAllMatches(ctx context.Context, batch string) (dto.MatchFlags, error) {
	if s.cache != nil {
		if flags, err := s.cache.GetFlags(ctx, batch); err == nil {
			s.observeFlagCache(true)
			return flags, nil
		}
		s.observeFlagCache(false)
	}

	flags, err := s.computeAllMatches(ctx, batch)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetFlags(ctx, batch, flags, s.cfg.BatchCacheTTL); err != nil {
			s.logger.Warn("failed to cache match flags", zap.String("batch", batch), zap.Error(err))
		}
	}
	return flags, nil
}

func (s *SwapService) computeAllMatches(ctx context.Context, batch string) (dto.MatchFlags, error) {
	students, err := s.students.ListEligible(ctx, batch, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch pool")
	}
	pool := newStudentPool(students)

	limits := resolverLimits{
		maxDepth:     batchCheckerMaxDepth,
		candidateCap: s.cfg.CandidateCap,
	}

	flags := make(dto.MatchFlags, pool.size())
	for i := range pool.students {
		student := &pool.students[i]
		flags[student.ID] = pool.anyMatch(student, limits)
	}
	return flags, nil
}

// RefreshMatchFlags recomputes and re-caches the batch flags. Invoked by the
// background queue after commits and preference updates.
func (s *SwapService) RefreshMatchFlags(ctx context.Context, batch string) error {
	flags, err := s.computeAllMatches(ctx, batch)
	if err != nil {
		return err
	}
	if s.cache == nil {
		return nil
	}
	return s.cache.SetFlags(ctx, batch, flags, s.cfg.BatchCacheTTL)
}

// CommitSwap executes a previously found plan inside one transaction. Every
// step is re-verified against live data with a conditional section move, so
// a plan raced stale by another commit fails with STALE_PLAN instead of
// tearing seats.
func (s *SwapService) CommitSwap(ctx context.Context, req dto.CommitSwapRequest, actor *models.JWTClaims) (*models.SwapRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid commit payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent && actor.StudentID != req.RequesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only commit their own swaps")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "commit requires a transactional store")
	}

	requester, err := s.students.FindByID(ctx, req.RequesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "requester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requester")
	}

	steps, err := planToSteps(requester, req.Plan)
	if err != nil {
		return nil, err
	}

	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode plan steps")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, step := range steps {
		if err := s.students.MoveSection(ctx, tx, step.StudentID, step.FromSection, step.ToSection); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrStalePlan, fmt.Sprintf("student %s no longer occupies section %s", step.StudentID, step.FromSection))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move student")
		}
	}

	record := &models.SwapRecord{
		PlanType:      req.Plan.Type,
		RequesterID:   req.RequesterID,
		TargetSection: req.Plan.TargetSection,
		Steps:         stepsJSON,
		CommittedBy:   actor.UserID,
	}
	if err := s.records.Create(ctx, tx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record swap")
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit swap")
	}

	s.observeCommit(record.PlanType)
	s.invalidateAndRefresh(ctx, requester.Cohort())
	return record, nil
}

// History lists committed swaps, newest first.
func (s *SwapService) History(ctx context.Context, filter models.SwapRecordFilter) ([]models.SwapRecord, error) {
	records, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list swap history")
	}
	return records, nil
}

// NotifyPreferenceChange drops the cached flags for the student's batch and
// schedules a background recompute.
func (s *SwapService) NotifyPreferenceChange(ctx context.Context, student *models.Student) {
	if student == nil {
		return
	}
	s.invalidateAndRefresh(ctx, student.Cohort())
}

func (s *SwapService) invalidateAndRefresh(ctx context.Context, batch string) {
	if s.cache != nil {
		if err := s.cache.InvalidateFlags(ctx, batch); err != nil {
			s.logger.Warn("failed to invalidate match flags", zap.String("batch", batch), zap.Error(err))
		}
	}
	if s.refresh != nil {
		if err := s.refresh.Enqueue(jobs.Job{Type: jobTypeMatchRefresh, Payload: batch}); err != nil {
			s.logger.Warn("failed to enqueue match refresh", zap.String("batch", batch), zap.Error(err))
		}
	}
}

func (s *SwapService) observeSearch(plan *models.SwapPlan, poolSize int, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveSwapSearch(plan, poolSize, elapsed)
	}
}

func (s *SwapService) observeCommit(planType models.SwapPlanType) {
	if s.metrics != nil {
		s.metrics.ObserveSwapCommit(planType)
	}
}

func (s *SwapService) observeFlagCache(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit)
	}
}

// planToSteps normalises a plan into the ordered moves to execute and checks
// the rotation invariants: first step departs the requester's current
// section, the last step returns to it, and the length stays within the
// search bounds.
func planToSteps(requester *models.Student, plan models.SwapPlan) ([]models.SwapStep, error) {
	switch plan.Type {
	case models.SwapPlanDirect:
		if plan.Partner == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "direct plan requires a partner")
		}
		if plan.TargetSection == "" || plan.TargetSection == requester.CurrentSection {
			return nil, appErrors.Clone(appErrors.ErrValidation, "direct plan target is invalid")
		}
		return []models.SwapStep{
			{
				StudentID:   requester.ID,
				StudentName: requester.FullName,
				FromSection: requester.CurrentSection,
				ToSection:   plan.TargetSection,
				IsRequester: true,
			},
			{
				StudentID:   plan.Partner.StudentID,
				StudentName: plan.Partner.StudentName,
				FromSection: plan.TargetSection,
				ToSection:   requester.CurrentSection,
			},
		}, nil

	case models.SwapPlanRotation:
		if len(plan.Steps) < minRotationLength || len(plan.Steps) > defaultMaxRotation {
			return nil, appErrors.Clone(appErrors.ErrValidation, "rotation length out of bounds")
		}
		first, last := plan.Steps[0], plan.Steps[len(plan.Steps)-1]
		if !first.IsRequester || first.StudentID != requester.ID || first.FromSection != requester.CurrentSection {
			return nil, appErrors.Clone(appErrors.ErrStalePlan, "rotation no longer starts at the requester's section")
		}
		if last.ToSection != requester.CurrentSection {
			return nil, appErrors.Clone(appErrors.ErrValidation, "rotation does not close back to the requester's section")
		}
		for i := 1; i < len(plan.Steps); i++ {
			if plan.Steps[i].FromSection != plan.Steps[i-1].ToSection {
				return nil, appErrors.Clone(appErrors.ErrValidation, "rotation steps are not contiguous")
			}
		}
		return plan.Steps, nil

	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "only direct or rotation plans can be committed")
	}
}

// MatchRefreshWorker adapts the service for the background queue.
type MatchRefreshWorker struct {
	svc    *SwapService
	logger *zap.Logger
}

const jobTypeMatchRefresh = "match_refresh"

// NewMatchRefreshWorker constructs the queue worker.
func NewMatchRefreshWorker(svc *SwapService, logger *zap.Logger) *MatchRefreshWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchRefreshWorker{svc: svc, logger: logger}
}

// Handle processes one refresh job.
func (w *MatchRefreshWorker) Handle(ctx context.Context, job jobs.Job) error {
	batch := job.Payload
	if err := w.svc.RefreshMatchFlags(ctx, batch); err != nil {
		return fmt.Errorf("refresh match flags for batch %q: %w", batch, err)
	}
	w.logger.Debug("match flags refreshed", zap.String("batch", batch))
	return nil
}
