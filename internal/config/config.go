package config

import "time"

type Config struct {
	Service     *ServiceConfig
	Store       *StoreConfig
	Postgres    *PostgresConfig
	Mongo       *MongoConfig
	Redis       *RedisConfig
	Presence    *PresenceConfig
	Transport   *TransportConfig
	Logger      *LoggerConfig
	Tracer      *TracerConfig
	SecretToken string
	TokenTTL    time.Duration
}

type ServiceConfig struct {
	Name string
	Env  string
	Add  string
}

// StoreConfig picks the persistence adapter: "postgres" or "mongo".
type StoreConfig struct {
	Driver string
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	Migrate         bool
}

type MongoConfig struct {
	URI         string
	Database    string
	MaxPoolSize uint64
	PingTimeout time.Duration
}

// RedisConfig is optional; an empty URL disables the presence mirror.
type RedisConfig struct {
	URL          string
	ClientName   string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

type PresenceConfig struct {
	RefreshInterval time.Duration
	WriteTimeout    time.Duration
	LoopBacklog     int
}

type TransportConfig struct {
	SendBuffer   int
	ReadLimit    int64
	WriteTimeout time.Duration
	PingInterval time.Duration
	ShutdownWait time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
}

// TracerConfig holds the OTLP collector address; empty disables export.
type TracerConfig struct {
	Address string
}
