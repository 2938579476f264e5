package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	RPC      RPCConfig      `mapstructure:"rpc"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BrokerConfig names the AMQP endpoint and the exchanges/queues the RPC
// bridge publishes to and listens on. The reply queues are bound to the
// reply exchanges at startup, mirroring the remote services' topology.
type BrokerConfig struct {
	URL           string      `mapstructure:"url"`
	Authorization RPCEndpoint `mapstructure:"authorization"`
	Stock         RPCEndpoint `mapstructure:"stock"`
}

// RPCEndpoint describes one request/response exchange pair.
type RPCEndpoint struct {
	Exchange        string `mapstructure:"exchange"`
	RoutingKey      string `mapstructure:"routing_key"`
	ReplyExchange   string `mapstructure:"reply_exchange"`
	ReplyRoutingKey string `mapstructure:"reply_routing_key"`
	ReplyQueue      string `mapstructure:"reply_queue"`
	DeadLetter      string `mapstructure:"dead_letter_exchange"`
}

// RPCConfig carries per-call deadlines in milliseconds. The stock deadline is
// explicit here rather than inherited implicitly from the authorization one.
type RPCConfig struct {
	AuthorizationTimeoutMs int `mapstructure:"authorization_timeout_ms"`
	StockTimeoutMs         int `mapstructure:"stock_timeout_ms"`
	AuthCacheTTLSeconds    int `mapstructure:"auth_cache_ttl_seconds"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
