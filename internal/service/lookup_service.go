package service

import (
	"context"
	"time"

	"github.com/noah-isme/phonebook-api/internal/models"
	appErrors "github.com/noah-isme/phonebook-api/pkg/errors"
)

const (
	rolesCacheKey       = "lookup:roles"
	departmentsCacheKey = "lookup:departments"
	lookupCacheTTL      = 10 * time.Minute
)

type roleLister interface {
	List(ctx context.Context) ([]models.Role, error)
}

type departmentLister interface {
	List(ctx context.Context) ([]models.Department, error)
}

// LookupService serves the reference lists used to fill person forms.
type LookupService struct {
	roles       roleLister
	departments departmentLister
	cache       *CacheService
}

// NewLookupService constructs a LookupService. cache may be nil.
func NewLookupService(roles roleLister, departments departmentLister, cache *CacheService) *LookupService {
	return &LookupService{roles: roles, departments: departments, cache: cache}
}

// Roles lists active roles by name.
func (s *LookupService) Roles(ctx context.Context) ([]models.Role, error) {
	var cached []models.Role
	if hit, err := s.cache.Get(ctx, rolesCacheKey, &cached); err == nil && hit {
		return cached, nil
	}
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list roles")
	}
	_ = s.cache.Set(ctx, rolesCacheKey, roles, lookupCacheTTL)
	return roles, nil
}

// Departments lists active departments by name.
func (s *LookupService) Departments(ctx context.Context) ([]models.Department, error) {
	var cached []models.Department
	if hit, err := s.cache.Get(ctx, departmentsCacheKey, &cached); err == nil && hit {
		return cached, nil
	}
	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	_ = s.cache.Set(ctx, departmentsCacheKey, departments, lookupCacheTTL)
	return departments, nil
}
