package temporalx

import (
	"time"

	"github.com/yungbote/catalog-search-backend/internal/platform/envutil"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	AutoRegisterNamespace bool
	DialTimeout           time.Duration
	DialMaxWait           time.Duration

	// TextRebuildCron and ImageRebuildCron drive the periodic full rebuilds;
	// "off" disables the schedule for that scope.
	TextRebuildCron  string
	ImageRebuildCron string
	ScheduleTimezone string
}

func LoadConfig() Config {
	return Config{
		Address:   envutil.String("TEMPORAL_ADDRESS", ""),
		Namespace: envutil.String("TEMPORAL_NAMESPACE", "catalog-search"),
		TaskQueue: envutil.String("TEMPORAL_TASK_QUEUE", "catalog-search"),

		ClientCertPath: envutil.String("TEMPORAL_CLIENT_CERT_PATH", ""),
		ClientKeyPath:  envutil.String("TEMPORAL_CLIENT_KEY_PATH", ""),
		ClientCAPath:   envutil.String("TEMPORAL_CLIENT_CA_PATH", ""),

		AutoRegisterNamespace: envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false),
		DialTimeout:           envutil.Duration("TEMPORAL_DIAL_TIMEOUT", 5*time.Second),
		DialMaxWait:           envutil.Duration("TEMPORAL_DIAL_MAX_WAIT", 60*time.Second),

		TextRebuildCron:  envutil.String("REBUILD_TEXT_CRON", "0 3 * * *"),
		ImageRebuildCron: envutil.String("REBUILD_IMAGE_CRON", "30 3 * * 0"),
		ScheduleTimezone: envutil.String("REBUILD_SCHEDULE_TZ", "UTC"),
	}
}

func (c Config) hasTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}
