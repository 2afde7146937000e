package leave_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go-leave/internal/balance"
	balanceerrors "go-leave/internal/balance/errors"
	"go-leave/internal/domain"
	"go-leave/internal/events"
	"go-leave/internal/leave"
	leaveerrors "go-leave/internal/leave/errors"
	leaveMock "go-leave/internal/leave/mock"
	"go-leave/internal/messaging/kafka"
	kafkaMock "go-leave/internal/messaging/kafka/mock"
	"go-leave/internal/shared/apperror"
	"go-leave/internal/shared/lock"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"
)

var testCatalog = balance.NewCatalog([]string{"CASUAL", "SICK", "ANNUAL"}, 10)

type fakeLedger struct {
	reserveFn   func(ctx context.Context, userID, leaveType string, days int) error
	releaseFn   func(ctx context.Context, userID, leaveType string, days int) error
	availableFn func(ctx context.Context, userID, leaveType string) (int, error)
}

func (f *fakeLedger) WithTx(tx *sql.Tx) balance.Ledger { return f }

func (f *fakeLedger) Reserve(ctx context.Context, userID, leaveType string, days int) error {
	return f.reserveFn(ctx, userID, leaveType, days)
}

func (f *fakeLedger) Release(ctx context.Context, userID, leaveType string, days int) error {
	return f.releaseFn(ctx, userID, leaveType, days)
}

func (f *fakeLedger) Available(ctx context.Context, userID, leaveType string) (int, error) {
	return f.availableFn(ctx, userID, leaveType)
}

type fakeNotifier struct {
	dispatched []events.LeaveLifecycleEvent
	err        error
}

func (f *fakeNotifier) Dispatch(ctx context.Context, event events.LeaveLifecycleEvent) error {
	f.dispatched = append(f.dispatched, event)
	return f.err
}

type fakeBalanceCache struct {
	invalidated []string
}

func (f *fakeBalanceCache) Invalidate(ctx context.Context, userID string) {
	f.invalidated = append(f.invalidated, userID)
}

type busyLocker struct{}

func (busyLocker) Acquire(ctx context.Context, key string) (lock.Release, error) {
	return nil, lock.ErrLockBusy
}

type serviceDeps struct {
	sqlMock  sqlmock.Sqlmock
	repo     *leaveMock.MockRepository
	outbox   *kafkaMock.MockOutboxRepository
	ledger   *fakeLedger
	notifier *fakeNotifier
	cache    *fakeBalanceCache
	service  leave.Service
}

func setupServiceTest(t *testing.T, policy leave.Policy) *serviceDeps {
	ctrl := gomock.NewController(t)

	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	deps := &serviceDeps{
		sqlMock:  sqlMock,
		repo:     leaveMock.NewMockRepository(ctrl),
		outbox:   kafkaMock.NewMockOutboxRepository(ctrl),
		ledger:   &fakeLedger{},
		notifier: &fakeNotifier{},
		cache:    &fakeBalanceCache{},
	}
	deps.service = leave.NewService(leave.Dependencies{
		DB:       db,
		Repo:     deps.repo,
		Ledger:   deps.ledger,
		Catalog:  testCatalog,
		Policy:   policy,
		Outbox:   deps.outbox,
		Notifier: deps.notifier,
		Balances: deps.cache,
	})
	return deps
}

func (d *serviceDeps) verify(t *testing.T) {
	t.Helper()
	assert.NoError(t, d.sqlMock.ExpectationsWereMet())
}

func (d *serviceDeps) expectTxRepo() {
	d.repo.EXPECT().WithTx(gomock.Any()).Return(d.repo)
}

func (d *serviceDeps) expectOutbox(eventType string) {
	d.outbox.EXPECT().WithTx(gomock.Any()).Return(d.outbox)
	d.outbox.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, event kafka.OutboxEvent) error {
			if event.EventType != eventType || event.Topic != events.LeaveLifecycleTopic {
				return errors.New("unexpected outbox event " + event.EventType)
			}
			return nil
		},
	)
}

func pendingLeave(userID uuid.UUID) *leave.Leave {
	return &leave.Leave{
		ID:        uuid.New(),
		UserID:    userID,
		LeaveType: "CASUAL",
		StartDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		TotalDays: 3,
		Reason:    "family trip",
		Status:    leave.StatusPending,
		Version:   1,
		CreatedAt: time.Now().UTC(),
	}
}

func TestLeaveService_SubmitValidation(t *testing.T) {
	actor := domain.Actor{UserID: uuid.New().String(), Role: domain.RoleEmployee}

	tests := []struct {
		name string
		req  leave.SubmitLeaveRequest
		err  error
	}{
		{
			name: "unknown leave type",
			req:  leave.SubmitLeaveRequest{LeaveType: "SABBATICAL", StartDate: "2026-03-02", EndDate: "2026-03-04"},
			err:  leaveerrors.ErrUnknownLeaveType,
		},
		{
			name: "bad start date",
			req:  leave.SubmitLeaveRequest{LeaveType: "CASUAL", StartDate: "02/03/2026", EndDate: "2026-03-04"},
			err:  leaveerrors.ErrInvalidDateFormat,
		},
		{
			name: "impossible calendar date",
			req:  leave.SubmitLeaveRequest{LeaveType: "CASUAL", StartDate: "2026-02-30", EndDate: "2026-03-04"},
			err:  leaveerrors.ErrInvalidDateFormat,
		},
		{
			name: "end before start",
			req:  leave.SubmitLeaveRequest{LeaveType: "CASUAL", StartDate: "2026-03-04", EndDate: "2026-03-02"},
			err:  leaveerrors.ErrInvalidDateRange,
		},
		{
			name: "reason too long",
			req: leave.SubmitLeaveRequest{
				LeaveType: "CASUAL",
				StartDate: "2026-03-02",
				EndDate:   "2026-03-02",
				Reason:    strings.Repeat("é", 201),
			},
			err: leaveerrors.ErrReasonTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := setupServiceTest(t, leave.DefaultPolicy())

			_, err := deps.service.Submit(context.Background(), actor, tt.req)

			assert.ErrorIs(t, err, tt.err)
			assert.Empty(t, deps.notifier.dispatched)
			deps.verify(t)
		})
	}
}

func TestLeaveService_Submit(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	actor := domain.Actor{UserID: userID.String(), Role: domain.RoleEmployee}
	req := leave.SubmitLeaveRequest{
		LeaveType: "casual",
		StartDate: "2026-03-02",
		EndDate:   "2026-03-04",
		Reason:    strings.Repeat("a", 200),
	}

	t.Run("persists a pending leave and notifies", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, l *leave.Leave) error {
				assert.Equal(t, userID, l.UserID)
				assert.Equal(t, "CASUAL", l.LeaveType)
				assert.Equal(t, 3, l.TotalDays)
				assert.Equal(t, leave.StatusPending, l.Status)
				return nil
			},
		)
		deps.expectOutbox(events.LeaveSubmitted)
		deps.sqlMock.ExpectCommit()

		resp, err := deps.service.Submit(ctx, actor, req)

		require.NoError(t, err)
		assert.Equal(t, leave.StatusPending, resp.Status)
		assert.Equal(t, "2026-03-02", resp.StartDate)
		assert.Equal(t, "2026-03-04", resp.EndDate)
		assert.Equal(t, 3, resp.TotalDays)
		assert.Nil(t, resp.DecidedBy)
		require.Len(t, deps.notifier.dispatched, 1)
		assert.Equal(t, events.LeaveSubmitted, deps.notifier.dispatched[0].EventType)
		assert.Equal(t, resp.ID, deps.notifier.dispatched[0].LeaveID)
		deps.verify(t)
	})

	t.Run("single day leave counts one day", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		deps.expectOutbox(events.LeaveSubmitted)
		deps.sqlMock.ExpectCommit()

		resp, err := deps.service.Submit(ctx, actor, leave.SubmitLeaveRequest{
			LeaveType: "SICK", StartDate: "2026-03-02", EndDate: "2026-03-02",
		})

		require.NoError(t, err)
		assert.Equal(t, 1, resp.TotalDays)
		deps.verify(t)
	})

	t.Run("notification failure does not fail the submission", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		deps.notifier.err = errors.New("smtp down")
		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		deps.expectOutbox(events.LeaveSubmitted)
		deps.sqlMock.ExpectCommit()

		_, err := deps.service.Submit(ctx, actor, req)

		assert.NoError(t, err)
		assert.Len(t, deps.notifier.dispatched, 1)
		deps.verify(t)
	})

	t.Run("storage failure rolls back without notifying", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))
		deps.sqlMock.ExpectRollback()

		_, err := deps.service.Submit(ctx, actor, req)

		assert.ErrorIs(t, err, apperror.ErrStorageUnavailable)
		assert.Empty(t, deps.notifier.dispatched)
		deps.verify(t)
	})

	t.Run("balance check refuses when enabled", func(t *testing.T) {
		policy := leave.DefaultPolicy()
		policy.CheckBalanceOnSubmit = true
		deps := setupServiceTest(t, policy)
		deps.ledger.availableFn = func(ctx context.Context, uid, leaveType string) (int, error) {
			assert.Equal(t, "CASUAL", leaveType)
			return 2, nil
		}

		_, err := deps.service.Submit(ctx, actor, req)

		assert.ErrorIs(t, err, balanceerrors.ErrInsufficientBalance)
		deps.verify(t)
	})
}

func TestLeaveService_Decide(t *testing.T) {
	ctx := context.Background()
	managerID := uuid.New()
	manager := domain.Actor{UserID: managerID.String(), Role: domain.RoleManager}

	t.Run("approve reserves days and invalidates balances", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		l := pendingLeave(uuid.New())
		var reserved int

		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().FindByID(gomock.Any(), l.ID.String()).Return(l, nil)
		deps.repo.EXPECT().
			Transition(gomock.Any(), l, leave.StatusApproved, &managerID, gomock.Any()).
			Return(true, nil)
		deps.ledger.reserveFn = func(ctx context.Context, userID, leaveType string, days int) error {
			assert.Equal(t, l.UserID.String(), userID)
			assert.Equal(t, "CASUAL", leaveType)
			reserved = days
			return nil
		}
		deps.expectOutbox(events.LeaveApproved)
		deps.sqlMock.ExpectCommit()

		resp, err := deps.service.Decide(ctx, manager, l.ID.String(), true)

		require.NoError(t, err)
		assert.Equal(t, leave.StatusApproved, resp.Status)
		assert.Equal(t, 2, resp.Version)
		require.NotNil(t, resp.DecidedBy)
		assert.Equal(t, managerID.String(), *resp.DecidedBy)
		assert.NotNil(t, resp.DecidedAt)
		assert.Equal(t, 3, reserved)
		assert.Equal(t, []string{l.UserID.String()}, deps.cache.invalidated)
		require.Len(t, deps.notifier.dispatched, 1)
		assert.Equal(t, events.LeaveApproved, deps.notifier.dispatched[0].EventType)
		assert.Equal(t, managerID.String(), deps.notifier.dispatched[0].DecidedBy)
		deps.verify(t)
	})

	t.Run("reject leaves the ledger alone", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		l := pendingLeave(uuid.New())

		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().FindByID(gomock.Any(), l.ID.String()).Return(l, nil)
		deps.repo.EXPECT().
			Transition(gomock.Any(), l, leave.StatusRejected, &managerID, gomock.Any()).
			Return(true, nil)
		deps.expectOutbox(events.LeaveRejected)
		deps.sqlMock.ExpectCommit()

		resp, err := deps.service.Decide(ctx, manager, l.ID.String(), false)

		require.NoError(t, err)
		assert.Equal(t, leave.StatusRejected, resp.Status)
		assert.Empty(t, deps.cache.invalidated)
		require.Len(t, deps.notifier.dispatched, 1)
		assert.Equal(t, events.LeaveRejected, deps.notifier.dispatched[0].EventType)
		deps.verify(t)
	})

	t.Run("insufficient balance rolls the decision back", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		l := pendingLeave(uuid.New())

		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().FindByID(gomock.Any(), l.ID.String()).Return(l, nil)
		deps.repo.EXPECT().
			Transition(gomock.Any(), l, leave.StatusApproved, &managerID, gomock.Any()).
			Return(true, nil)
		deps.ledger.reserveFn = func(ctx context.Context, userID, leaveType string, days int) error {
			return balanceerrors.ErrInsufficientBalance
		}
		deps.sqlMock.ExpectRollback()

		_, err := deps.service.Decide(ctx, manager, l.ID.String(), true)

		assert.ErrorIs(t, err, balanceerrors.ErrInsufficientBalance)
		assert.Empty(t, deps.notifier.dispatched)
		assert.Empty(t, deps.cache.invalidated)
		deps.verify(t)
	})

	t.Run("already decided is a conflict", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		l := pendingLeave(uuid.New())
		l.Status = leave.StatusRejected

		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().FindByID(gomock.Any(), l.ID.String()).Return(l, nil)
		deps.sqlMock.ExpectRollback()

		_, err := deps.service.Decide(ctx, manager, l.ID.String(), true)

		assert.ErrorIs(t, err, leaveerrors.ErrLeaveAlreadyDecided)
		assert.Equal(t, apperror.CodeConflict, apperror.CodeOf(err))
		deps.verify(t)
	})

	t.Run("lost version race is a conflict", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		l := pendingLeave(uuid.New())

		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().FindByID(gomock.Any(), l.ID.String()).Return(l, nil)
		deps.repo.EXPECT().
			Transition(gomock.Any(), l, leave.StatusApproved, &managerID, gomock.Any()).
			Return(false, nil)
		deps.sqlMock.ExpectRollback()

		_, err := deps.service.Decide(ctx, manager, l.ID.String(), true)

		assert.ErrorIs(t, err, leaveerrors.ErrLeaveModified)
		deps.verify(t)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		id := uuid.New().String()

		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().FindByID(gomock.Any(), id).Return(nil, gorm.ErrRecordNotFound)
		deps.sqlMock.ExpectRollback()

		_, err := deps.service.Decide(ctx, manager, id, true)

		assert.ErrorIs(t, err, leaveerrors.ErrLeaveNotFound)
		deps.verify(t)
	})

	t.Run("malformed id is not found without touching storage", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())

		_, err := deps.service.Decide(ctx, manager, "not-a-uuid", true)

		assert.ErrorIs(t, err, leaveerrors.ErrLeaveNotFound)
		deps.verify(t)
	})

	t.Run("storage failure is unavailable", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		id := uuid.New().String()

		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().FindByID(gomock.Any(), id).Return(nil, errors.New("i/o timeout"))
		deps.sqlMock.ExpectRollback()

		_, err := deps.service.Decide(ctx, manager, id, false)

		assert.ErrorIs(t, err, apperror.ErrStorageUnavailable)
		deps.verify(t)
	})

	t.Run("own leave is forbidden by default", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		l := pendingLeave(managerID)

		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().FindByID(gomock.Any(), l.ID.String()).Return(l, nil)
		deps.sqlMock.ExpectRollback()

		_, err := deps.service.Decide(ctx, manager, l.ID.String(), true)

		assert.ErrorIs(t, err, leaveerrors.ErrSelfDecision)
		assert.Equal(t, apperror.CodeForbidden, apperror.CodeOf(err))
		assert.Empty(t, deps.notifier.dispatched)
		deps.verify(t)
	})

	t.Run("own leave is allowed when the policy says so", func(t *testing.T) {
		policy := leave.DefaultPolicy()
		policy.AllowSelfDecision = true
		deps := setupServiceTest(t, policy)
		l := pendingLeave(managerID)

		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().FindByID(gomock.Any(), l.ID.String()).Return(l, nil)
		deps.repo.EXPECT().
			Transition(gomock.Any(), l, leave.StatusRejected, &managerID, gomock.Any()).
			Return(true, nil)
		deps.expectOutbox(events.LeaveRejected)
		deps.sqlMock.ExpectCommit()

		resp, err := deps.service.Decide(ctx, manager, l.ID.String(), false)

		require.NoError(t, err)
		assert.Equal(t, leave.StatusRejected, resp.Status)
		deps.verify(t)
	})
}

func TestLeaveService_DecideLockBusy(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := leave.NewService(leave.Dependencies{
		DB:      db,
		Repo:    leaveMock.NewMockRepository(gomock.NewController(t)),
		Catalog: testCatalog,
		Policy:  leave.DefaultPolicy(),
		Locker:  busyLocker{},
	})

	_, err = svc.Decide(context.Background(), domain.Actor{Role: domain.RoleManager}, uuid.New().String(), true)

	assert.ErrorIs(t, err, lock.ErrLockBusy)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestLeaveService_Cancel(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()
	owner := domain.Actor{UserID: ownerID.String(), Role: domain.RoleEmployee}

	t.Run("owner cancels a pending leave", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		l := pendingLeave(ownerID)

		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().FindByID(gomock.Any(), l.ID.String()).Return(l, nil)
		deps.repo.EXPECT().Delete(gomock.Any(), l).Return(true, nil)
		deps.expectOutbox(events.LeaveCancelled)
		deps.sqlMock.ExpectCommit()

		resp, err := deps.service.Cancel(ctx, owner, l.ID.String())

		require.NoError(t, err)
		assert.Equal(t, leave.CancelLeaveResponse{
			ID:             l.ID.String(),
			Cancelled:      true,
			ReleasedDays:   0,
			PreviousStatus: leave.StatusPending,
		}, resp)
		assert.Empty(t, deps.cache.invalidated)
		require.Len(t, deps.notifier.dispatched, 1)
		assert.Equal(t, events.LeaveCancelled, deps.notifier.dispatched[0].EventType)
		deps.verify(t)
	})

	t.Run("someone else's leave is forbidden", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		l := pendingLeave(uuid.New())

		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().FindByID(gomock.Any(), l.ID.String()).Return(l, nil)
		deps.sqlMock.ExpectRollback()

		_, err := deps.service.Cancel(ctx, owner, l.ID.String())

		assert.ErrorIs(t, err, leaveerrors.ErrNotLeaveOwner)
		assert.Equal(t, apperror.CodeForbidden, apperror.CodeOf(err))
		deps.verify(t)
	})

	t.Run("admin may cancel any pending leave", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		l := pendingLeave(uuid.New())
		admin := domain.Actor{UserID: uuid.New().String(), Role: domain.RoleAdmin}

		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().FindByID(gomock.Any(), l.ID.String()).Return(l, nil)
		deps.repo.EXPECT().Delete(gomock.Any(), l).Return(true, nil)
		deps.expectOutbox(events.LeaveCancelled)
		deps.sqlMock.ExpectCommit()

		resp, err := deps.service.Cancel(ctx, admin, l.ID.String())

		require.NoError(t, err)
		assert.True(t, resp.Cancelled)
		deps.verify(t)
	})

	t.Run("decided leave is not cancellable by default", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		l := pendingLeave(ownerID)
		l.Status = leave.StatusApproved

		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().FindByID(gomock.Any(), l.ID.String()).Return(l, nil)
		deps.sqlMock.ExpectRollback()

		_, err := deps.service.Cancel(ctx, owner, l.ID.String())

		assert.ErrorIs(t, err, leaveerrors.ErrLeaveNotCancellable)
		deps.verify(t)
	})

	t.Run("approved leave gives days back when allowed", func(t *testing.T) {
		policy := leave.DefaultPolicy()
		policy.AllowCancelDecided = true
		deps := setupServiceTest(t, policy)
		l := pendingLeave(ownerID)
		l.Status = leave.StatusApproved
		var released int

		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().FindByID(gomock.Any(), l.ID.String()).Return(l, nil)
		deps.repo.EXPECT().Delete(gomock.Any(), l).Return(true, nil)
		deps.ledger.releaseFn = func(ctx context.Context, userID, leaveType string, days int) error {
			released = days
			return nil
		}
		deps.expectOutbox(events.LeaveCancelled)
		deps.sqlMock.ExpectCommit()

		resp, err := deps.service.Cancel(ctx, owner, l.ID.String())

		require.NoError(t, err)
		assert.Equal(t, 3, released)
		assert.Equal(t, 3, resp.ReleasedDays)
		assert.Equal(t, leave.StatusApproved, resp.PreviousStatus)
		assert.Equal(t, []string{ownerID.String()}, deps.cache.invalidated)
		deps.verify(t)
	})

	t.Run("concurrent change is a conflict", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		l := pendingLeave(ownerID)

		deps.sqlMock.ExpectBegin()
		deps.expectTxRepo()
		deps.repo.EXPECT().FindByID(gomock.Any(), l.ID.String()).Return(l, nil)
		deps.repo.EXPECT().Delete(gomock.Any(), l).Return(false, nil)
		deps.sqlMock.ExpectRollback()

		_, err := deps.service.Cancel(ctx, owner, l.ID.String())

		assert.ErrorIs(t, err, leaveerrors.ErrLeaveModified)
		deps.verify(t)
	})
}

func TestLeaveService_Reads(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()
	owner := domain.Actor{UserID: ownerID.String(), Role: domain.RoleEmployee}
	manager := domain.Actor{UserID: uuid.New().String(), Role: domain.RoleManager}

	t.Run("employee cannot list another user's leaves", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())

		_, err := deps.service.GetByUserID(ctx, owner, uuid.New().String())

		assert.ErrorIs(t, err, apperror.ErrForbidden)
	})

	t.Run("manager lists any user's leaves", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		l := pendingLeave(ownerID)
		deps.repo.EXPECT().FindByUserID(gomock.Any(), ownerID.String()).Return([]leave.Leave{*l}, nil)

		resp, err := deps.service.GetByUserID(ctx, manager, ownerID.String())

		require.NoError(t, err)
		require.Len(t, resp, 1)
		assert.Equal(t, l.ID.String(), resp[0].ID)
		assert.Equal(t, leave.StatusPending, resp[0].Status)
	})

	t.Run("malformed user id is user not found", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())

		_, err := deps.service.GetByUserID(ctx, manager, "nope")

		assert.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
	})

	t.Run("owner reads own leave", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		l := pendingLeave(ownerID)
		deps.repo.EXPECT().FindByID(gomock.Any(), l.ID.String()).Return(l, nil)

		resp, err := deps.service.GetByID(ctx, owner, l.ID.String())

		require.NoError(t, err)
		assert.Equal(t, "family trip", resp.Reason)
	})

	t.Run("other employee cannot read it", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		l := pendingLeave(uuid.New())
		deps.repo.EXPECT().FindByID(gomock.Any(), l.ID.String()).Return(l, nil)

		_, err := deps.service.GetByID(ctx, owner, l.ID.String())

		assert.ErrorIs(t, err, leaveerrors.ErrNotLeaveOwner)
	})

	t.Run("list joins usernames", func(t *testing.T) {
		deps := setupServiceTest(t, leave.DefaultPolicy())
		l := pendingLeave(ownerID)
		filter := leave.LeaveFilter{Search: "trip"}
		deps.repo.EXPECT().FindAll(gomock.Any(), filter).Return([]leave.LeaveWithUser{
			{Leave: *l, Username: "alice"},
		}, nil)

		items, err := deps.service.GetAll(ctx, filter)

		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "alice", items[0].Username)
		assert.Equal(t, "2026-03-02", items[0].StartDate)

		body, err := json.Marshal(items[0])
		require.NoError(t, err)
		assert.Contains(t, string(body), `"username":"alice"`)
	})
}
