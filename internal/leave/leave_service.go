package leave

import (
	"context"
	"database/sql"
	"errors"
	"time"
	"unicode/utf8"

	"go-leave/internal/balance"
	balanceerrors "go-leave/internal/balance/errors"
	"go-leave/internal/domain"
	"go-leave/internal/events"
	leaveerrors "go-leave/internal/leave/errors"
	"go-leave/internal/messaging/kafka"
	"go-leave/internal/shared/apperror"
	"go-leave/internal/shared/contextutil"
	"go-leave/internal/shared/lock"
	usererrors "go-leave/internal/user/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:generate mockgen -source=leave_service.go -destination=mock/leave_service_mock.go -package=mock
type Service interface {
	Submit(ctx context.Context, actor domain.Actor, req SubmitLeaveRequest) (LeaveResponse, error)
	Decide(ctx context.Context, actor domain.Actor, id string, approve bool) (LeaveResponse, error)
	Cancel(ctx context.Context, actor domain.Actor, id string) (CancelLeaveResponse, error)
	GetByID(ctx context.Context, actor domain.Actor, id string) (LeaveResponse, error)
	GetByUserID(ctx context.Context, actor domain.Actor, userID string) ([]LeaveResponse, error)
	GetAll(ctx context.Context, filter LeaveFilter) ([]LeaveListItem, error)
}

// LifecycleNotifier is told about every committed transition. It must not
// block the caller for long and its failures never undo the transition.
type LifecycleNotifier interface {
	Dispatch(ctx context.Context, event events.LeaveLifecycleEvent) error
}

// BalanceCache drops cached balance reads after the ledger changed.
type BalanceCache interface {
	Invalidate(ctx context.Context, userID string)
}

type Dependencies struct {
	DB       *sql.DB
	Repo     Repository
	Ledger   balance.Ledger
	Catalog  balance.Catalog
	Policy   Policy
	Outbox   kafka.OutboxRepository
	Notifier LifecycleNotifier
	Locker   lock.Locker
	Balances BalanceCache
}

type service struct {
	db       *sql.DB
	repo     Repository
	ledger   balance.Ledger
	catalog  balance.Catalog
	policy   Policy
	outbox   kafka.OutboxRepository
	notifier LifecycleNotifier
	locker   lock.Locker
	balances BalanceCache
	now      func() time.Time
	logger   *zap.Logger
}

func NewService(deps Dependencies, logger ...*zap.Logger) Service {
	l := zap.L().Named("leave.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.service")
	}
	if deps.Policy.MaxReasonLength <= 0 {
		deps.Policy.MaxReasonLength = defaultMaxReasonLength
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewNoopLocker()
	}
	return &service{
		db:       deps.DB,
		repo:     deps.Repo,
		ledger:   deps.Ledger,
		catalog:  deps.Catalog,
		policy:   deps.Policy,
		outbox:   deps.Outbox,
		notifier: deps.Notifier,
		locker:   deps.Locker,
		balances: deps.Balances,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   l,
	}
}

func (s *service) Submit(ctx context.Context, actor domain.Actor, req SubmitLeaveRequest) (LeaveResponse, error) {
	log := contextutil.GetLogger(ctx, s.logger)
	log.Debug("submit leave requested",
		zap.String("user_id", actor.UserID),
		zap.String("leave_type", req.LeaveType),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
	)

	userID, err := uuid.Parse(actor.UserID)
	if err != nil {
		return LeaveResponse{}, usererrors.ErrUserNotFound
	}

	leaveType, ok := s.catalog.Normalize(req.LeaveType)
	if !ok {
		log.Warn("submit leave unknown type", zap.String("leave_type", req.LeaveType))
		return LeaveResponse{}, leaveerrors.ErrUnknownLeaveType
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		log.Warn("submit leave invalid start_date", zap.String("start_date", req.StartDate))
		return LeaveResponse{}, leaveerrors.ErrInvalidDateFormat
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		log.Warn("submit leave invalid end_date", zap.String("end_date", req.EndDate))
		return LeaveResponse{}, leaveerrors.ErrInvalidDateFormat
	}
	if endDate.Before(startDate) {
		log.Warn("submit leave invalid range",
			zap.String("start_date", req.StartDate),
			zap.String("end_date", req.EndDate),
		)
		return LeaveResponse{}, leaveerrors.ErrInvalidDateRange
	}
	if utf8.RuneCountInString(req.Reason) > s.policy.MaxReasonLength {
		log.Warn("submit leave reason too long", zap.Int("length", utf8.RuneCountInString(req.Reason)))
		return LeaveResponse{}, leaveerrors.ErrReasonTooLong
	}

	days := inclusiveDays(startDate, endDate)

	if s.policy.CheckBalanceOnSubmit {
		available, err := s.ledger.Available(ctx, actor.UserID, leaveType)
		if err != nil {
			log.Error("submit leave balance check failed", zap.Error(err))
			return LeaveResponse{}, err
		}
		if available < days {
			log.Warn("submit leave insufficient balance",
				zap.String("leave_type", leaveType),
				zap.Int("days", days),
				zap.Int("available", available),
			)
			return LeaveResponse{}, balanceerrors.ErrInsufficientBalance
		}
	}

	now := s.now()
	l := &Leave{
		ID:        uuid.New(),
		UserID:    userID,
		LeaveType: leaveType,
		StartDate: startDate,
		EndDate:   endDate,
		TotalDays: days,
		Reason:    req.Reason,
		Status:    StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("submit leave begin tx failed", zap.Error(err))
		return LeaveResponse{}, mapRepositoryError(err)
	}
	defer tx.Rollback()

	if err := s.repo.WithTx(tx).Create(ctx, l); err != nil {
		log.Error("submit leave persist failed", zap.Error(err))
		return LeaveResponse{}, mapRepositoryError(err)
	}

	event := s.lifecycleEvent(events.LeaveSubmitted, l)
	if err := s.enqueue(ctx, tx, event); err != nil {
		log.Error("submit leave outbox persist failed", zap.String("leave_id", l.ID.String()), zap.Error(err))
		return LeaveResponse{}, mapRepositoryError(err)
	}

	if err := tx.Commit(); err != nil {
		log.Error("submit leave commit failed", zap.Error(err))
		return LeaveResponse{}, mapRepositoryError(err)
	}

	s.notify(ctx, event)

	log.Info("submit leave success",
		zap.String("leave_id", l.ID.String()),
		zap.String("user_id", actor.UserID),
		zap.String("leave_type", leaveType),
		zap.Int("days", days),
	)
	return mapToResponse(*l), nil
}

// Decide approves or rejects a pending leave. Approval reserves the days in
// the same transaction as the status change; if the ledger refuses, both
// writes roll back and the leave stays pending.
func (s *service) Decide(ctx context.Context, actor domain.Actor, id string, approve bool) (LeaveResponse, error) {
	log := contextutil.GetLogger(ctx, s.logger)
	log.Debug("decide leave requested",
		zap.String("leave_id", id),
		zap.String("actor_id", actor.UserID),
		zap.Bool("approve", approve),
	)

	if _, err := uuid.Parse(id); err != nil {
		return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
	}

	release, err := s.locker.Acquire(ctx, "leave:"+id)
	if err != nil {
		log.Warn("decide leave lock not acquired", zap.String("leave_id", id), zap.Error(err))
		return LeaveResponse{}, err
	}
	defer s.unlock(ctx, release, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("decide leave begin tx failed", zap.Error(err))
		return LeaveResponse{}, mapRepositoryError(err)
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	l, err := qtx.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(mapRepositoryError(err), leaveerrors.ErrLeaveNotFound) {
			log.Error("decide leave fetch failed", zap.String("leave_id", id), zap.Error(err))
		}
		return LeaveResponse{}, mapRepositoryError(err)
	}
	if !s.policy.AllowSelfDecision && l.UserID.String() == actor.UserID {
		log.Warn("decide leave refused, own leave", zap.String("leave_id", id))
		return LeaveResponse{}, leaveerrors.ErrSelfDecision
	}
	if l.Status != StatusPending {
		log.Warn("decide leave already decided",
			zap.String("leave_id", id),
			zap.String("status", l.Status),
		)
		return LeaveResponse{}, leaveerrors.ErrLeaveAlreadyDecided
	}

	status := StatusRejected
	eventType := events.LeaveRejected
	if approve {
		status = StatusApproved
		eventType = events.LeaveApproved
	}

	var decidedBy *uuid.UUID
	if actorID, err := uuid.Parse(actor.UserID); err == nil {
		decidedBy = &actorID
	}
	now := s.now()

	ok, err := qtx.Transition(ctx, l, status, decidedBy, now)
	if err != nil {
		log.Error("decide leave transition failed", zap.String("leave_id", id), zap.Error(err))
		return LeaveResponse{}, mapRepositoryError(err)
	}
	if !ok {
		log.Warn("decide leave lost concurrent update", zap.String("leave_id", id), zap.Int("version", l.Version))
		return LeaveResponse{}, leaveerrors.ErrLeaveModified
	}

	if approve {
		if err := s.ledger.WithTx(tx).Reserve(ctx, l.UserID.String(), l.LeaveType, l.TotalDays); err != nil {
			if errors.Is(err, balanceerrors.ErrInsufficientBalance) {
				log.Warn("decide leave insufficient balance",
					zap.String("leave_id", id),
					zap.String("user_id", l.UserID.String()),
					zap.String("leave_type", l.LeaveType),
					zap.Int("days", l.TotalDays),
				)
			} else {
				log.Error("decide leave reserve failed", zap.String("leave_id", id), zap.Error(err))
			}
			return LeaveResponse{}, err
		}
	}

	l.Status = status
	l.Version++
	l.DecidedBy = decidedBy
	l.DecidedAt = &now
	l.UpdatedAt = now

	event := s.lifecycleEvent(eventType, l)
	if err := s.enqueue(ctx, tx, event); err != nil {
		log.Error("decide leave outbox persist failed", zap.String("leave_id", id), zap.Error(err))
		return LeaveResponse{}, mapRepositoryError(err)
	}

	if err := tx.Commit(); err != nil {
		log.Error("decide leave commit failed", zap.Error(err))
		return LeaveResponse{}, mapRepositoryError(err)
	}

	if approve {
		s.invalidateBalances(ctx, l.UserID.String())
	}
	s.notify(ctx, event)

	log.Info("decide leave success",
		zap.String("leave_id", id),
		zap.String("status", status),
		zap.Int("days", l.TotalDays),
	)
	return mapToResponse(*l), nil
}

// Cancel deletes a leave on behalf of its owner or an admin. Decided leaves
// can only be cancelled when the policy allows it; an approved one then gives
// its days back if ReleaseOnCancel is set.
func (s *service) Cancel(ctx context.Context, actor domain.Actor, id string) (CancelLeaveResponse, error) {
	log := contextutil.GetLogger(ctx, s.logger)
	log.Debug("cancel leave requested", zap.String("leave_id", id), zap.String("actor_id", actor.UserID))

	if _, err := uuid.Parse(id); err != nil {
		return CancelLeaveResponse{}, leaveerrors.ErrLeaveNotFound
	}

	release, err := s.locker.Acquire(ctx, "leave:"+id)
	if err != nil {
		log.Warn("cancel leave lock not acquired", zap.String("leave_id", id), zap.Error(err))
		return CancelLeaveResponse{}, err
	}
	defer s.unlock(ctx, release, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("cancel leave begin tx failed", zap.Error(err))
		return CancelLeaveResponse{}, mapRepositoryError(err)
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	l, err := qtx.FindByID(ctx, id)
	if err != nil {
		return CancelLeaveResponse{}, mapRepositoryError(err)
	}

	if l.UserID.String() != actor.UserID && !actor.IsAdmin() {
		log.Warn("cancel leave not owner",
			zap.String("leave_id", id),
			zap.String("owner_id", l.UserID.String()),
		)
		return CancelLeaveResponse{}, leaveerrors.ErrNotLeaveOwner
	}

	if l.Status != StatusPending && !s.policy.AllowCancelDecided {
		log.Warn("cancel leave not pending", zap.String("leave_id", id), zap.String("status", l.Status))
		return CancelLeaveResponse{}, leaveerrors.ErrLeaveNotCancellable
	}

	ok, err := qtx.Delete(ctx, l)
	if err != nil {
		log.Error("cancel leave delete failed", zap.String("leave_id", id), zap.Error(err))
		return CancelLeaveResponse{}, mapRepositoryError(err)
	}
	if !ok {
		log.Warn("cancel leave lost concurrent update", zap.String("leave_id", id))
		return CancelLeaveResponse{}, leaveerrors.ErrLeaveModified
	}

	released := 0
	if l.Status == StatusApproved && s.policy.ReleaseOnCancel {
		if err := s.ledger.WithTx(tx).Release(ctx, l.UserID.String(), l.LeaveType, l.TotalDays); err != nil {
			log.Error("cancel leave release failed", zap.String("leave_id", id), zap.Error(err))
			return CancelLeaveResponse{}, err
		}
		released = l.TotalDays
	}

	event := s.lifecycleEvent(events.LeaveCancelled, l)
	if err := s.enqueue(ctx, tx, event); err != nil {
		log.Error("cancel leave outbox persist failed", zap.String("leave_id", id), zap.Error(err))
		return CancelLeaveResponse{}, mapRepositoryError(err)
	}

	if err := tx.Commit(); err != nil {
		log.Error("cancel leave commit failed", zap.Error(err))
		return CancelLeaveResponse{}, mapRepositoryError(err)
	}

	if released > 0 {
		s.invalidateBalances(ctx, l.UserID.String())
	}
	s.notify(ctx, event)

	log.Info("cancel leave success",
		zap.String("leave_id", id),
		zap.String("previous_status", l.Status),
		zap.Int("released_days", released),
	)
	return CancelLeaveResponse{
		ID:             id,
		Cancelled:      true,
		ReleasedDays:   released,
		PreviousStatus: l.Status,
	}, nil
}

func (s *service) GetByID(ctx context.Context, actor domain.Actor, id string) (LeaveResponse, error) {
	log := contextutil.GetLogger(ctx, s.logger)
	log.Debug("get leave by id requested", zap.String("leave_id", id))

	if _, err := uuid.Parse(id); err != nil {
		return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
	}

	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return LeaveResponse{}, mapRepositoryError(err)
	}
	if l.UserID.String() != actor.UserID && !actor.CanReadAll() {
		log.Warn("get leave by id not owner", zap.String("leave_id", id))
		return LeaveResponse{}, leaveerrors.ErrNotLeaveOwner
	}

	return mapToResponse(*l), nil
}

func (s *service) GetByUserID(ctx context.Context, actor domain.Actor, userID string) ([]LeaveResponse, error) {
	log := contextutil.GetLogger(ctx, s.logger)
	log.Debug("get leaves by user requested", zap.String("user_id", userID))

	if userID != actor.UserID && !actor.CanReadAll() {
		log.Warn("get leaves by user forbidden", zap.String("user_id", userID))
		return nil, apperror.ErrForbidden
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, usererrors.ErrUserNotFound
	}

	leaves, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		log.Error("get leaves by user failed", zap.Error(err))
		return nil, mapRepositoryError(err)
	}

	resp := make([]LeaveResponse, len(leaves))
	for i, l := range leaves {
		resp[i] = mapToResponse(l)
	}
	return resp, nil
}

func (s *service) GetAll(ctx context.Context, filter LeaveFilter) ([]LeaveListItem, error) {
	log := contextutil.GetLogger(ctx, s.logger)
	log.Debug("get all leaves requested",
		zap.String("search", filter.Search),
		zap.String("sort_by", filter.SortBy),
	)

	rows, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		log.Error("get all leaves failed", zap.Error(err))
		return nil, mapRepositoryError(err)
	}

	items := make([]LeaveListItem, len(rows))
	for i, row := range rows {
		items[i] = LeaveListItem{
			ID:        row.ID.String(),
			UserID:    row.UserID.String(),
			Username:  row.Username,
			LeaveType: row.LeaveType,
			StartDate: row.StartDate.Format(dateLayout),
			EndDate:   row.EndDate.Format(dateLayout),
			TotalDays: row.TotalDays,
			Reason:    row.Reason,
			Status:    row.Status,
		}
	}
	return items, nil
}

func (s *service) lifecycleEvent(eventType string, l *Leave) events.LeaveLifecycleEvent {
	event := events.LeaveLifecycleEvent{
		EventType:  eventType,
		LeaveID:    l.ID.String(),
		UserID:     l.UserID.String(),
		LeaveType:  l.LeaveType,
		StartDate:  l.StartDate.Format(dateLayout),
		EndDate:    l.EndDate.Format(dateLayout),
		TotalDays:  l.TotalDays,
		Reason:     l.Reason,
		OccurredAt: s.now(),
	}
	if l.DecidedBy != nil {
		event.DecidedBy = l.DecidedBy.String()
	}
	return event
}

// enqueue writes the event to the outbox inside tx when the outbox is wired.
func (s *service) enqueue(ctx context.Context, tx *sql.Tx, event events.LeaveLifecycleEvent) error {
	if s.outbox == nil {
		return nil
	}
	record, err := kafka.NewOutboxEvent(ctx, "leave", event.LeaveID, event.EventType, events.LeaveLifecycleTopic, event)
	if err != nil {
		return err
	}
	return s.outbox.WithTx(tx).Create(ctx, record)
}

func (s *service) notify(ctx context.Context, event events.LeaveLifecycleEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, event); err != nil {
		s.logger.Warn("leave notification dispatch failed",
			zap.String("leave_id", event.LeaveID),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
}

func (s *service) invalidateBalances(ctx context.Context, userID string) {
	if s.balances != nil {
		s.balances.Invalidate(ctx, userID)
	}
}

func (s *service) unlock(ctx context.Context, release lock.Release, id string) {
	if err := release(ctx); err != nil {
		s.logger.Warn("release leave lock failed", zap.String("leave_id", id), zap.Error(err))
	}
}

func mapToResponse(l Leave) LeaveResponse {
	resp := LeaveResponse{
		ID:        l.ID.String(),
		UserID:    l.UserID.String(),
		LeaveType: l.LeaveType,
		StartDate: l.StartDate.Format(dateLayout),
		EndDate:   l.EndDate.Format(dateLayout),
		TotalDays: l.TotalDays,
		Reason:    l.Reason,
		Status:    l.Status,
		Version:   l.Version,
		CreatedAt: l.CreatedAt.UTC().Format(time.RFC3339),
	}
	if l.DecidedBy != nil {
		v := l.DecidedBy.String()
		resp.DecidedBy = &v
	}
	if l.DecidedAt != nil {
		v := l.DecidedAt.UTC().Format(time.RFC3339)
		resp.DecidedAt = &v
	}
	return resp
}
