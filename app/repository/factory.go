package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetParentClaimRepository returns the parent claim repository instance
func (f *Factory) GetParentClaimRepository() ParentClaimRepository {
	return f.GetRepositories().ParentClaim
}

// GetParentInviteRepository returns the parent invite repository instance
func (f *Factory) GetParentInviteRepository() ParentInviteRepository {
	return f.GetRepositories().ParentInvite
}
