package balance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	balanceerrors "go-leave/internal/balance/errors"
	"go-leave/internal/shared/contextutil"
	usererrors "go-leave/internal/user/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	BalancesKeyPrefix        = "balances:"
	BalancesVersionKeyPrefix = "balances:version:"
	BalancesVersionTTL       = 24 * time.Hour
)

func GetBalancesKey(userID string) string {
	return BalancesKeyPrefix + userID
}

// GetBalancesVersionKey names the counter Invalidate bumps. A fill only lands
// when the counter still holds the value read before the database query.
func GetBalancesVersionKey(userID string) string {
	return BalancesVersionKeyPrefix + userID
}

var fillIfCurrent = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current == false then current = '0' end
if current ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

type Service interface {
	GetBalance(ctx context.Context, userID, leaveType string) (BalanceResponse, error)
	GetBalances(ctx context.Context, userID string) ([]BalanceResponse, error)
	Initialize(ctx context.Context, userID string) ([]BalanceResponse, error)
	SetBalance(ctx context.Context, userID, leaveType string, days int) (BalanceResponse, error)
	Invalidate(ctx context.Context, userID string)
}

type service struct {
	db       *sql.DB
	repo     Repository
	catalog  Catalog
	rdb      *redis.Client
	cacheTTL time.Duration
	sf       *singleflight.Group
	logger   *zap.Logger
}

func NewService(
	db *sql.DB,
	repo Repository,
	catalog Catalog,
	rdb *redis.Client,
	cacheTTL time.Duration,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("balance.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("balance.service")
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &service{
		db:       db,
		repo:     repo,
		catalog:  catalog,
		rdb:      rdb,
		cacheTTL: cacheTTL,
		sf:       &singleflight.Group{},
		logger:   l,
	}
}

func (s *service) GetBalance(ctx context.Context, userID, leaveType string) (BalanceResponse, error) {
	log := contextutil.GetLogger(ctx, s.logger)
	log.Debug("get balance requested", zap.String("user_id", userID), zap.String("leave_type", leaveType))

	if _, err := uuid.Parse(userID); err != nil {
		return BalanceResponse{}, balanceerrors.ErrBalanceNotFound
	}
	canonical, ok := s.catalog.Normalize(leaveType)
	if !ok {
		log.Warn("get balance unknown leave type", zap.String("leave_type", leaveType))
		return BalanceResponse{}, balanceerrors.ErrUnknownLeaveType
	}

	b, err := s.repo.FindByUserAndType(ctx, userID, canonical)
	if err != nil {
		return BalanceResponse{}, mapRepositoryError(err)
	}
	return mapToResponse(*b), nil
}

func (s *service) GetBalances(ctx context.Context, userID string) ([]BalanceResponse, error) {
	log := contextutil.GetLogger(ctx, s.logger)
	if _, err := uuid.Parse(userID); err != nil {
		return nil, usererrors.ErrUserNotFound
	}

	cacheKey := GetBalancesKey(userID)
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var resp []BalanceResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return resp, nil
			}
		}
	}

	v, err, _ := s.sf.Do(cacheKey, func() (interface{}, error) {
		version, cacheable := s.cacheVersion(ctx, userID)

		balances, err := s.repo.FindAllByUser(ctx, userID)
		if err != nil {
			log.Error("get balances failed", zap.String("user_id", userID), zap.Error(err))
			return nil, mapRepositoryError(err)
		}

		if len(balances) == 0 {
			exists, err := s.repo.UserExists(ctx, userID)
			if err != nil {
				return nil, mapRepositoryError(err)
			}
			if !exists {
				return nil, usererrors.ErrUserNotFound
			}
		}

		resp := mapToListResponse(balances)
		if cacheable {
			s.fillCache(ctx, userID, version, resp)
		}

		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]BalanceResponse), nil
}

// Initialize seeds one row per catalog leave type. A user that already has any
// balance row is refused rather than topped up.
func (s *service) Initialize(ctx context.Context, userID string) ([]BalanceResponse, error) {
	log := contextutil.GetLogger(ctx, s.logger)
	log.Debug("initialize balances requested", zap.String("user_id", userID))

	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, usererrors.ErrUserNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("initialize balances begin tx failed", zap.Error(err))
		return nil, mapRepositoryError(err)
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	exists, err := qtx.UserExists(ctx, userID)
	if err != nil {
		log.Error("initialize balances user lookup failed", zap.Error(err))
		return nil, mapRepositoryError(err)
	}
	if !exists {
		log.Warn("initialize balances user not found", zap.String("user_id", userID))
		return nil, usererrors.ErrUserNotFound
	}

	count, err := qtx.CountByUser(ctx, userID)
	if err != nil {
		log.Error("initialize balances count failed", zap.Error(err))
		return nil, mapRepositoryError(err)
	}
	if count > 0 {
		log.Warn("initialize balances already initialized",
			zap.String("user_id", userID),
			zap.Int64("rows", count),
		)
		return nil, balanceerrors.ErrAlreadyInitialized
	}

	balances := make([]LeaveBalance, 0, len(s.catalog.Types))
	for _, t := range s.catalog.Types {
		balances = append(balances, LeaveBalance{
			ID:        uuid.New(),
			UserID:    uid,
			LeaveType: t,
			Balance:   s.catalog.DefaultEntitlement,
		})
	}

	if err := qtx.CreateMany(ctx, balances); err != nil {
		log.Error("initialize balances persist failed", zap.Error(err))
		return nil, mapRepositoryError(err)
	}

	if err := tx.Commit(); err != nil {
		log.Error("initialize balances commit failed", zap.Error(err))
		return nil, mapRepositoryError(err)
	}

	s.Invalidate(ctx, userID)

	log.Info("initialize balances success",
		zap.String("user_id", userID),
		zap.Int("types", len(balances)),
		zap.Int("entitlement", s.catalog.DefaultEntitlement),
	)
	return mapToListResponse(balances), nil
}

func (s *service) SetBalance(ctx context.Context, userID, leaveType string, days int) (BalanceResponse, error) {
	log := contextutil.GetLogger(ctx, s.logger)
	log.Debug("set balance requested",
		zap.String("user_id", userID),
		zap.String("leave_type", leaveType),
		zap.Int("balance", days),
	)

	uid, err := uuid.Parse(userID)
	if err != nil {
		return BalanceResponse{}, usererrors.ErrUserNotFound
	}
	canonical, ok := s.catalog.Normalize(leaveType)
	if !ok {
		log.Warn("set balance unknown leave type", zap.String("leave_type", leaveType))
		return BalanceResponse{}, balanceerrors.ErrUnknownLeaveType
	}
	if days < 0 {
		return BalanceResponse{}, balanceerrors.ErrInvalidDays
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("set balance begin tx failed", zap.Error(err))
		return BalanceResponse{}, mapRepositoryError(err)
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	exists, err := qtx.UserExists(ctx, userID)
	if err != nil {
		return BalanceResponse{}, mapRepositoryError(err)
	}
	if !exists {
		log.Warn("set balance user not found", zap.String("user_id", userID))
		return BalanceResponse{}, usererrors.ErrUserNotFound
	}

	if err := qtx.Upsert(ctx, &LeaveBalance{UserID: uid, LeaveType: canonical, Balance: days}); err != nil {
		log.Error("set balance persist failed", zap.Error(err))
		return BalanceResponse{}, mapRepositoryError(err)
	}

	saved, err := qtx.FindByUserAndType(ctx, userID, canonical)
	if err != nil {
		return BalanceResponse{}, mapRepositoryError(err)
	}

	if err := tx.Commit(); err != nil {
		log.Error("set balance commit failed", zap.Error(err))
		return BalanceResponse{}, mapRepositoryError(err)
	}

	s.Invalidate(ctx, userID)

	log.Info("set balance success",
		zap.String("user_id", userID),
		zap.String("leave_type", canonical),
		zap.Int("balance", saved.Balance),
	)
	return mapToResponse(*saved), nil
}

// cacheVersion reads the invalidation counter of userID. A missing counter
// is version "0"; an unreadable one disables the fill.
func (s *service) cacheVersion(ctx context.Context, userID string) (string, bool) {
	if s.rdb == nil {
		return "", false
	}
	version, err := s.rdb.Get(ctx, GetBalancesVersionKey(userID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0", true
	case err != nil:
		s.logger.Warn("read balances cache version failed", zap.String("user_id", userID), zap.Error(err))
		return "", false
	}
	return version, true
}

// fillCache stores resp unless an Invalidate ran since version was read.
func (s *service) fillCache(ctx context.Context, userID, version string, resp []BalanceResponse) {
	jsonData, err := json.Marshal(resp)
	if err != nil {
		return
	}
	cacheKey := GetBalancesKey(userID)
	stored, err := fillIfCurrent.Run(ctx, s.rdb,
		[]string{cacheKey, GetBalancesVersionKey(userID)},
		version, string(jsonData), s.cacheTTL.Milliseconds(),
	).Int()
	if err != nil {
		s.logger.Warn("cache balances failed", zap.String("key", cacheKey), zap.Error(err))
		return
	}
	if stored == 0 {
		s.logger.Debug("skip stale balances fill", zap.String("key", cacheKey))
	}
}

// Invalidate bumps the version counter first, so a reader that loaded
// balances before this call cannot write them back, then drops the entry.
// Failures are logged only; the entry expires on its own.
func (s *service) Invalidate(ctx context.Context, userID string) {
	if s.rdb == nil {
		return
	}
	cacheKey := GetBalancesKey(userID)
	versionKey := GetBalancesVersionKey(userID)

	if err := s.rdb.Incr(ctx, versionKey).Err(); err != nil {
		s.logger.Error("failed to bump balances cache version", zap.Error(err), zap.String("key", versionKey))
	} else if err := s.rdb.Expire(ctx, versionKey, BalancesVersionTTL).Err(); err != nil {
		s.logger.Warn("failed to set balances cache version ttl", zap.Error(err), zap.String("key", versionKey))
	}

	if err := s.rdb.Del(ctx, cacheKey).Err(); err != nil {
		s.logger.Error("failed to invalidate balances cache",
			zap.Error(err),
			zap.String("key", cacheKey),
		)
	}
}

func mapToResponse(b LeaveBalance) BalanceResponse {
	return BalanceResponse{
		ID:        b.ID.String(),
		UserID:    b.UserID.String(),
		LeaveType: b.LeaveType,
		Balance:   b.Balance,
	}
}

func mapToListResponse(balances []LeaveBalance) []BalanceResponse {
	resp := make([]BalanceResponse, len(balances))
	for i, b := range balances {
		resp[i] = mapToResponse(b)
	}
	return resp
}
