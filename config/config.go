package config

type AppConfig struct {
	APIPort string `env:"PORT" envDefault:"12222"`
	APIKey  string `env:"API_KEY,required"`

	// Key material for credential encryption (IMAP/SMTP passwords, LLM keys).
	EncryptionKey string `env:"ENCRYPTION_KEY,required"`
	SecretKey     string `env:"SECRET_KEY"`
}

type DatabaseConfig struct {
	// "postgres" in production; "sqlite" is used by tests.
	Driver string `env:"DATABASE_DRIVER" envDefault:"postgres"`

	Host            string `env:"POSTGRES_HOST"`
	Port            string `env:"POSTGRES_PORT" envDefault:"5432"`
	User            string `env:"POSTGRES_USER"`
	DBName          string `env:"POSTGRES_DB_NAME"`
	Password        string `env:"POSTGRES_PASSWORD"`
	MaxConn         int    `env:"POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"POSTGRES_SSL_MODE"`

	// SQLite DSN, only read when Driver is "sqlite".
	SQLitePath string `env:"SQLITE_PATH" envDefault:"parceltrace.db"`
}

type ImapConfig struct {
	// Fallback message age window when neither the folder nor the stored
	// settings define one.
	MaxEmailAgeDays  int  `env:"IMAP_MAX_EMAIL_AGE_DAYS" envDefault:"7"`
	CheckUIDValidity bool `env:"IMAP_CHECK_UIDVALIDITY" envDefault:"true"`
}

type QueueConfig struct {
	TickSeconds      int `env:"QUEUE_TICK_SECONDS" envDefault:"5"`
	RetentionSeconds int `env:"QUEUE_RETENTION_SECONDS" envDefault:"600"`
	MaxAgeDays       int `env:"QUEUE_MAX_AGE_DAYS" envDefault:"7"`
	MaxPerUser       int `env:"QUEUE_MAX_PER_USER" envDefault:"5000"`
}
