package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Push      PushConfig
	Scheduler SchedulerConfig
	Auth      AuthConfig
	Log       LogConfig
}

type LogConfig struct {
	Level string
}

type ServerConfig struct {
	Port    string
	Timeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RabbitMQConfig drives the optional alarm event feed. An empty URL
// disables publishing entirely.
type RabbitMQConfig struct {
	URL        string
	Exchange   string
	AlarmQueue string `mapstructure:"alarm_queue"`
}

type PushConfig struct {
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	// Subscriber is the contact claim placed in the VAPID assertion.
	Subscriber  string
	TTL         int
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

type SchedulerConfig struct {
	Timezone      string
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.timeout", "10s")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("rabbitmq.exchange", "alarms.direct")
	viper.SetDefault("rabbitmq.alarm_queue", "alarm.events")
	viper.SetDefault("push.subscriber", "mailto:admin@example.com")
	viper.SetDefault("push.ttl", 60)
	viper.SetDefault("push.send_timeout", "10s")
	viper.SetDefault("scheduler.timezone", "Asia/Seoul")
	viper.SetDefault("scheduler.max_concurrent", 8)
	viper.SetDefault("log.level", "info")

	// Read from environment
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// HasVAPIDKeys reports whether the signing identity is configured.
// Dispatch attempts without it fail fast instead of reaching the transport.
func (c *Config) HasVAPIDKeys() bool {
	return c.Push.VAPIDPublicKey != "" && c.Push.VAPIDPrivateKey != ""
}
