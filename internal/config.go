package internal

import "time"

type Config struct {
	Host string `env:"HOST,required=true"`
	Port int    `env:"PORT,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	UploadDir      string `env:"UPLOAD_DIR,required=true"`

	BufferSize           int           `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	StoreTimeout         time.Duration `env:"STORE_TIMEOUT,required=true"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,required=true"`
	MaxMessageSize       int64         `env:"MAX_MESSAGE_SIZE,required=true"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	AllowedOrigin string `env:"ALLOWED_ORIGIN,required=true"`
	LogLevel      string `env:"LOG_LEVEL,required=true"`

	// Local-only keyspace inspector, served when debug logging is enabled.
	DebugPort int `env:"DEBUG_PORT,default=6060"`
}
