package repository

import (
	"sync"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Factory builds the repositories once on first use
type Factory struct {
	db    *gorm.DB
	redis *redis.Client
	once  sync.Once
	repos *Repositories
}

func NewFactory(db *gorm.DB, redisClient *redis.Client) *Factory {
	return &Factory{db: db, redis: redisClient}
}

func (f *Factory) Repositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db, f.redis)
	})
	return f.repos
}

var (
	globalFactory *Factory
	factoryOnce   sync.Once
)

// InitializeFactory sets up the process wide factory. Only the first call counts.
func InitializeFactory(db *gorm.DB, redisClient *redis.Client) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db, redisClient)
	})
}

// GetGlobalRepositories panics when InitializeFactory was not called
func GetGlobalRepositories() *Repositories {
	if globalFactory == nil {
		panic("repository: InitializeFactory must run before GetGlobalRepositories")
	}
	return globalFactory.Repositories()
}
