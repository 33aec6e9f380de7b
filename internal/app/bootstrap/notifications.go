package bootstrap

import (
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/clinic-appointments/internal/config"
	"github.com/wolfman30/clinic-appointments/internal/notify"
	"github.com/wolfman30/clinic-appointments/pkg/logging"
)

// Notifications is the presenter stack handed to the workflow and handler.
type Notifications struct {
	Hub *notify.Hub
	// Memory is set when notifications live in process and need sweeping.
	Memory *notify.MemoryFeed
}

// BuildNotifications picks the feed named by NOTIFICATION_BACKEND and wraps
// it in a Hub for live streaming.
func BuildNotifications(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) Notifications {
	if logger == nil {
		logger = logging.Default()
	}
	ttl := notify.DefaultTTL
	backend := "memory"
	if cfg != nil {
		if cfg.NotificationTTL > 0 {
			ttl = cfg.NotificationTTL
		}
		backend = cfg.NotificationBackend
	}

	if backend == "redis" {
		if redisClient != nil {
			logger.Info("notifications: redis feed", "ttl", ttl.String())
			return Notifications{Hub: notify.NewHub(notify.NewRedisFeed(redisClient, ttl, logger), logger)}
		}
		logger.Warn("notifications: redis unavailable, using in-memory feed")
	}
	mem := notify.NewMemoryFeed(ttl)
	return Notifications{Hub: notify.NewHub(mem, logger), Memory: mem}
}
