package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go-leave/internal/domain"
	"go-leave/internal/events"
	"go-leave/internal/messaging/kafka"
	"go-leave/internal/notification"
	"go-leave/internal/shared/contextutil"
	usererrors "go-leave/internal/user/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	Create(ctx context.Context, req CreateUserRequest) (UserResponse, error)
	GetAll(ctx context.Context) ([]UserResponse, error)
	GetByID(ctx context.Context, id string) (UserResponse, error)
	Update(ctx context.Context, id string, req UpdateUserRequest) (UserResponse, error)
	Delete(ctx context.Context, actor domain.Actor, id string) error
	LookupContact(ctx context.Context, userID string) (notification.Contact, error)
	EnsureAdmin(ctx context.Context, username, password, email string) error
}

type service struct {
	db     *sql.DB
	repo   Repository
	outbox kafka.OutboxRepository
	logger *zap.Logger
}

// NewService wires the user service. outbox may be nil, in which case no
// user_created event is recorded.
func NewService(db *sql.DB, repo Repository, outbox kafka.OutboxRepository, logger ...*zap.Logger) Service {
	l := zap.L().Named("user.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("user.service")
	}
	return &service{db: db, repo: repo, outbox: outbox, logger: l}
}

func (s *service) Create(ctx context.Context, req CreateUserRequest) (UserResponse, error) {
	log := contextutil.GetLogger(ctx, s.logger)
	log.Debug("create user requested", zap.String("username", req.Username), zap.String("role", req.Role))

	role := domain.NormalizeRole(req.Role)
	if role == "" {
		log.Warn("create user invalid role", zap.String("role", req.Role))
		return UserResponse{}, usererrors.ErrInvalidRole
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("create user hash password failed", zap.Error(err))
		return UserResponse{}, err
	}

	now := time.Now().UTC()
	u := &User{
		ID:           uuid.New(),
		Username:     strings.TrimSpace(req.Username),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		Role:         role,
		PasswordHash: string(hashed),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("create user begin tx failed", zap.Error(err))
		return UserResponse{}, mapRepositoryError(err)
	}
	defer tx.Rollback()

	if err := s.repo.WithTx(tx).Create(ctx, u); err != nil {
		mapped := mapRepositoryError(err)
		if errors.Is(mapped, usererrors.ErrUserAlreadyExists) {
			log.Warn("create user duplicate username", zap.String("username", u.Username))
		} else {
			log.Error("create user persist failed", zap.Error(err))
		}
		return UserResponse{}, mapped
	}

	if s.outbox != nil {
		event := events.UserCreatedEvent{
			EventType:  events.UserCreated,
			UserID:     u.ID.String(),
			Username:   u.Username,
			Role:       u.Role,
			OccurredAt: now,
		}
		record, err := kafka.NewOutboxEvent(ctx, "user", event.UserID, event.EventType, events.UserLifecycleTopic, event)
		if err != nil {
			log.Error("create user build outbox event failed", zap.Error(err))
			return UserResponse{}, err
		}
		if err := s.outbox.WithTx(tx).Create(ctx, record); err != nil {
			log.Error("create user outbox persist failed", zap.Error(err))
			return UserResponse{}, mapRepositoryError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("create user commit failed", zap.Error(err))
		return UserResponse{}, mapRepositoryError(err)
	}

	log.Info("create user success", zap.String("user_id", u.ID.String()), zap.String("role", role))
	return mapToResponse(*u), nil
}

func (s *service) GetAll(ctx context.Context) ([]UserResponse, error) {
	users, err := s.repo.FindAll(ctx)
	if err != nil {
		contextutil.GetLogger(ctx, s.logger).Error("get all users failed", zap.Error(err))
		return nil, mapRepositoryError(err)
	}

	resp := make([]UserResponse, len(users))
	for i, u := range users {
		resp[i] = mapToResponse(u)
	}
	return resp, nil
}

func (s *service) GetByID(ctx context.Context, id string) (UserResponse, error) {
	if _, err := uuid.Parse(id); err != nil {
		return UserResponse{}, usererrors.ErrUserNotFound
	}

	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return UserResponse{}, mapRepositoryError(err)
	}
	return mapToResponse(*u), nil
}

func (s *service) Update(ctx context.Context, id string, req UpdateUserRequest) (UserResponse, error) {
	log := contextutil.GetLogger(ctx, s.logger)
	log.Debug("update user requested", zap.String("user_id", id))

	if _, err := uuid.Parse(id); err != nil {
		return UserResponse{}, usererrors.ErrUserNotFound
	}

	var role string
	if req.Role != nil {
		role = domain.NormalizeRole(*req.Role)
		if role == "" {
			log.Warn("update user invalid role", zap.String("role", *req.Role))
			return UserResponse{}, usererrors.ErrInvalidRole
		}
	}

	var hashed []byte
	if req.Password != nil && *req.Password != "" {
		var err error
		hashed, err = bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Error("update user hash password failed", zap.Error(err))
			return UserResponse{}, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("update user begin tx failed", zap.Error(err))
		return UserResponse{}, mapRepositoryError(err)
	}
	defer tx.Rollback()

	repo := s.repo.WithTx(tx)
	u, err := repo.FindByID(ctx, id)
	if err != nil {
		return UserResponse{}, mapRepositoryError(err)
	}

	// Usernames are never cleared.
	if req.Username != nil && strings.TrimSpace(*req.Username) != "" {
		u.Username = strings.TrimSpace(*req.Username)
	}
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		u.Email = strings.TrimSpace(*req.Email)
	}
	if role != "" {
		u.Role = role
	}
	if hashed != nil {
		u.PasswordHash = string(hashed)
	}
	u.UpdatedAt = time.Now().UTC()

	if err := repo.Update(ctx, u); err != nil {
		mapped := mapRepositoryError(err)
		if errors.Is(mapped, usererrors.ErrUserAlreadyExists) {
			log.Warn("update user duplicate username", zap.String("username", u.Username))
		} else {
			log.Error("update user persist failed", zap.Error(err))
		}
		return UserResponse{}, mapped
	}

	if err := tx.Commit(); err != nil {
		log.Error("update user commit failed", zap.Error(err))
		return UserResponse{}, mapRepositoryError(err)
	}

	log.Info("update user success", zap.String("user_id", id), zap.Bool("password_changed", hashed != nil))
	return mapToResponse(*u), nil
}

func (s *service) Delete(ctx context.Context, actor domain.Actor, id string) error {
	log := contextutil.GetLogger(ctx, s.logger)
	log.Debug("delete user requested", zap.String("user_id", id))

	if id == actor.UserID {
		log.Warn("delete user refused, self delete")
		return usererrors.ErrCannotDeleteSelf
	}
	if _, err := uuid.Parse(id); err != nil {
		return usererrors.ErrUserNotFound
	}

	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		log.Error("delete user failed", zap.String("user_id", id), zap.Error(err))
		return mapRepositoryError(err)
	}
	if !ok {
		return usererrors.ErrUserNotFound
	}

	log.Info("delete user success", zap.String("user_id", id))
	return nil
}

// LookupContact returns the name and mail address of a user. The username
// is used as the address when no email is stored and it looks like one.
func (s *service) LookupContact(ctx context.Context, userID string) (notification.Contact, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return notification.Contact{}, usererrors.ErrUserNotFound
	}

	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return notification.Contact{}, mapRepositoryError(err)
	}

	address := u.Email
	if address == "" && strings.Contains(u.Username, "@") {
		address = u.Username
	}
	if address == "" {
		return notification.Contact{}, usererrors.ErrContactUnavailable
	}

	name := u.Name
	if name == "" {
		name = u.Username
	}
	return notification.Contact{Name: name, Address: address}, nil
}

// EnsureAdmin creates the bootstrap administrator unless the username is
// already taken.
func (s *service) EnsureAdmin(ctx context.Context, username, password, email string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil
	}

	_, err := s.repo.FindByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(mapRepositoryError(err), usererrors.ErrUserNotFound) {
		return mapRepositoryError(err)
	}

	_, err = s.Create(ctx, CreateUserRequest{
		Username: username,
		Name:     username,
		Email:    email,
		Password: password,
		Role:     domain.RoleAdmin,
	})
	if errors.Is(err, usererrors.ErrUserAlreadyExists) {
		return nil
	}
	if err == nil {
		s.logger.Info("seeded admin user", zap.String("username", username))
	}
	return err
}

func mapToResponse(u User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}
