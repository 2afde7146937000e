package leave

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"go-leave/internal/balance"
	balanceerrors "go-leave/internal/balance/errors"
	"go-leave/internal/domain"
	leaveerrors "go-leave/internal/leave/errors"
	"go-leave/internal/messaging/kafka"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type engine struct {
	db      *gorm.DB
	service Service
}

func setupEngine(t *testing.T, policy Policy) *engine {
	t.Helper()
	db := setupLeaveDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	svc := NewService(Dependencies{
		DB:      sqlDB,
		Repo:    NewRepository(db),
		Ledger:  balance.NewLedger(balance.NewRepository(db)),
		Catalog: balance.NewCatalog([]string{"CASUAL", "SICK"}, 10),
		Policy:  policy,
		Outbox:  kafka.NewOutboxRepository(sqlDB),
	})
	return &engine{db: db, service: svc}
}

func (e *engine) grant(t *testing.T, userID uuid.UUID, leaveType string, days int) {
	t.Helper()
	require.NoError(t, e.db.Create(&balance.LeaveBalance{
		ID: uuid.New(), UserID: userID, LeaveType: leaveType, Balance: days,
	}).Error)
}

func (e *engine) balanceOf(t *testing.T, userID uuid.UUID, leaveType string) int {
	t.Helper()
	var b balance.LeaveBalance
	require.NoError(t, e.db.Where("user_id = ? AND leave_type = ?", userID, leaveType).First(&b).Error)
	return b.Balance
}

func (e *engine) outboxCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Table("outbox_events").Count(&n).Error)
	return n
}

func TestEngine_ApprovalConsumesBalance(t *testing.T) {
	e := setupEngine(t, DefaultPolicy())
	ctx := context.Background()
	userID := seedUser(t, e.db, "dave")
	managerID := seedUser(t, e.db, "erin")
	employee := domain.Actor{UserID: userID.String(), Role: domain.RoleEmployee}
	manager := domain.Actor{UserID: managerID.String(), Role: domain.RoleManager}
	e.grant(t, userID, "CASUAL", 5)

	first, err := e.service.Submit(ctx, employee, SubmitLeaveRequest{
		LeaveType: "casual", StartDate: "2026-03-02", EndDate: "2026-03-04", Reason: "trip",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, first.TotalDays)
	assert.Equal(t, 5, e.balanceOf(t, userID, "CASUAL"), "submission reserves nothing")

	mine, err := e.service.GetByUserID(ctx, employee, userID.String())
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, StatusPending, mine[0].Status)

	approved, err := e.service.Decide(ctx, manager, first.ID, true)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.Equal(t, 2, e.balanceOf(t, userID, "CASUAL"))

	second, err := e.service.Submit(ctx, employee, SubmitLeaveRequest{
		LeaveType: "CASUAL", StartDate: "2026-05-11", EndDate: "2026-05-13",
	})
	require.NoError(t, err)

	_, err = e.service.Decide(ctx, manager, second.ID, true)
	assert.ErrorIs(t, err, balanceerrors.ErrInsufficientBalance)
	assert.Equal(t, 2, e.balanceOf(t, userID, "CASUAL"))

	still, err := e.service.GetByID(ctx, employee, second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, still.Status, "failed approval leaves the request pending")
	assert.Equal(t, 1, still.Version)

	_, err = e.service.Decide(ctx, manager, first.ID, false)
	assert.ErrorIs(t, err, leaveerrors.ErrLeaveAlreadyDecided)

	// submitted, approved, submitted
	assert.Equal(t, int64(3), e.outboxCount(t))
}

func TestEngine_ConcurrentApprovalsNeverOverdraw(t *testing.T) {
	e := setupEngine(t, DefaultPolicy())
	ctx := context.Background()
	userID := seedUser(t, e.db, "frank")
	manager := domain.Actor{UserID: seedUser(t, e.db, "grace").String(), Role: domain.RoleManager}
	e.grant(t, userID, "CASUAL", 5)

	var ids []string
	for i := 0; i < 4; i++ {
		l := seedLeave(t, e.db, userID, "CASUAL", "2026-06-01", "2026-06-03", "", StatusPending)
		ids = append(ids, l.ID.String())
	}

	var approved, refused atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			_, err := e.service.Decide(gctx, manager, id, true)
			switch {
			case err == nil:
				approved.Add(1)
			case errors.Is(err, balanceerrors.ErrInsufficientBalance):
				refused.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), approved.Load())
	assert.Equal(t, int32(3), refused.Load())
	assert.Equal(t, 2, e.balanceOf(t, userID, "CASUAL"))

	var pending int64
	require.NoError(t, e.db.Model(&Leave{}).Where("status = ?", StatusPending).Count(&pending).Error)
	assert.Equal(t, int64(3), pending)
}

func TestEngine_ConcurrentDecisionsOnOneLeave(t *testing.T) {
	e := setupEngine(t, DefaultPolicy())
	ctx := context.Background()
	userID := seedUser(t, e.db, "heidi")
	manager := domain.Actor{UserID: seedUser(t, e.db, "ivan").String(), Role: domain.RoleManager}
	e.grant(t, userID, "SICK", 10)
	l := seedLeave(t, e.db, userID, "SICK", "2026-07-06", "2026-07-08", "", StatusPending)

	var won, conflicted atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 6; i++ {
		approve := i%2 == 0
		g.Go(func() error {
			_, err := e.service.Decide(gctx, manager, l.ID.String(), approve)
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, leaveerrors.ErrLeaveAlreadyDecided), errors.Is(err, leaveerrors.ErrLeaveModified):
				conflicted.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), won.Load())
	assert.Equal(t, int32(5), conflicted.Load())

	var got Leave
	require.NoError(t, e.db.First(&got, "id = ?", l.ID).Error)
	switch got.Status {
	case StatusApproved:
		assert.Equal(t, 7, e.balanceOf(t, userID, "SICK"))
	case StatusRejected:
		assert.Equal(t, 10, e.balanceOf(t, userID, "SICK"))
	default:
		t.Fatalf("leave left in status %s", got.Status)
	}
}

func TestEngine_CancelApprovedReleasesDays(t *testing.T) {
	policy := DefaultPolicy()
	policy.AllowCancelDecided = true
	e := setupEngine(t, policy)
	ctx := context.Background()
	userID := seedUser(t, e.db, "judy")
	employee := domain.Actor{UserID: userID.String(), Role: domain.RoleEmployee}
	manager := domain.Actor{UserID: seedUser(t, e.db, "ken").String(), Role: domain.RoleManager}
	e.grant(t, userID, "CASUAL", 4)

	submitted, err := e.service.Submit(ctx, employee, SubmitLeaveRequest{
		LeaveType: "CASUAL", StartDate: "2026-08-03", EndDate: "2026-08-06",
	})
	require.NoError(t, err)
	_, err = e.service.Decide(ctx, manager, submitted.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 0, e.balanceOf(t, userID, "CASUAL"))

	resp, err := e.service.Cancel(ctx, employee, submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, resp.ReleasedDays)
	assert.Equal(t, 4, e.balanceOf(t, userID, "CASUAL"))

	_, err = e.service.GetByID(ctx, employee, submitted.ID)
	assert.ErrorIs(t, err, leaveerrors.ErrLeaveNotFound)

	_, err = e.service.Cancel(ctx, employee, submitted.ID)
	assert.ErrorIs(t, err, leaveerrors.ErrLeaveNotFound)
}
