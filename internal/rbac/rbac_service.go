package rbac

import (
	"sort"
	"sync"

	"go-leave/internal/domain"

	"github.com/casbin/casbin/v2"
	"go.uber.org/zap"
)

type Service interface {
	LoadDefaultPolicy() error
	Enforce(req domain.EnforceRequest) (bool, error)
	PermissionsForRole(role string) ([]domain.PermissionResponse, error)
}

type service struct {
	enforcer *casbin.Enforcer
	mu       sync.RWMutex
	logger   *zap.Logger
}

func NewService(enforcer *casbin.Enforcer, logger ...*zap.Logger) Service {
	l := zap.L().Named("rbac.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("rbac.service")
	}
	return &service{
		enforcer: enforcer,
		logger:   l,
	}
}

func (s *service) LoadDefaultPolicy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enforcer.ClearPolicy()

	for _, pair := range DefaultRoleHierarchy() {
		if _, err := s.enforcer.AddGroupingPolicy(pair[0], pair[1]); err != nil {
			return err
		}
	}

	perms := DefaultPermissions()
	for _, p := range perms {
		if _, err := s.enforcer.AddPolicy(p.Role, p.Resource, p.Action); err != nil {
			return err
		}
	}

	s.logger.Info("rbac policy loaded",
		zap.Int("permissions", len(perms)),
		zap.Int("role_links", len(DefaultRoleHierarchy())),
	)
	return nil
}

func (s *service) Enforce(req domain.EnforceRequest) (bool, error) {
	role := domain.NormalizeRole(req.Role)
	if role == "" {
		s.logger.Debug("rbac enforce unknown role", zap.String("role", req.Role))
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed, err := s.enforcer.Enforce(role, req.Resource, req.Action)
	if err != nil {
		s.logger.Error("rbac enforce failed",
			zap.String("role", role),
			zap.String("resource", req.Resource),
			zap.String("action", req.Action),
			zap.Error(err),
		)
		return false, err
	}

	s.logger.Debug("rbac enforce result",
		zap.String("role", role),
		zap.String("resource", req.Resource),
		zap.String("action", req.Action),
		zap.Bool("allowed", allowed),
	)
	return allowed, nil
}

func (s *service) PermissionsForRole(role string) ([]domain.PermissionResponse, error) {
	role = domain.NormalizeRole(role)
	if role == "" {
		return []domain.PermissionResponse{}, nil
	}

	s.mu.RLock()
	perms, err := s.enforcer.GetImplicitPermissionsForUser(role)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	resp := make([]domain.PermissionResponse, 0, len(perms))
	for _, p := range perms {
		if len(p) < 3 {
			continue
		}
		resp = append(resp, domain.PermissionResponse{Resource: p[1], Action: p[2]})
	}
	sort.Slice(resp, func(i, j int) bool {
		if resp[i].Resource != resp[j].Resource {
			return resp[i].Resource < resp[j].Resource
		}
		return resp[i].Action < resp[j].Action
	})
	return resp, nil
}
