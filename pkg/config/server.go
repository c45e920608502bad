package config

import "time"

// ServerConfig holds runtime configuration for matchd.
type ServerConfig struct {
	Environment    string
	Addr           string
	LogLevel       string
	DatabaseURL    string
	MigrationsDir  string
	JWTSecret      string
	AccessTokenTTL time.Duration
	// APIKeyHash is the bcrypt hash operators exchange for a token.
	APIKeyHash string

	RedisAddr string
	RedisPass string
	RedisDB   int
	NATSURL   string

	OpenAIKey            string
	OpenAIBaseURL        string
	OpenAIEmbeddingModel string
	OpenAIReviewModel    string
	EmbeddingCacheTTL    time.Duration

	DesiredTeamSize   int
	Seed              int64
	MaxIter           int
	CoverageThreshold float64
	MaxRefineSwaps    int
	Workers           int
	DefaultCapacity   int
	ReviewConcurrency int
	ProgressBuffer    int
	ProfilePath       string
	AllowedRoles      []string
	AllowedSkills     []string
	RequireMotivation bool

	RateLimitPerMinute int
	ShutdownTimeout    time.Duration
}

// LoadServerConfig constructs a ServerConfig from environment variables.
func LoadServerConfig() ServerConfig {
	return ServerConfig{
		Environment:    GetString("APP_ENV", "development"),
		Addr:           GetString("MATCHD_ADDR", ":4100"),
		LogLevel:       GetString("LOG_LEVEL", "info"),
		DatabaseURL:    GetString("DATABASE_URL", ""),
		MigrationsDir:  GetString("DB_MIGRATIONS_DIR", ""),
		JWTSecret:      GetString("JWT_SECRET", "supersecuresecret"),
		AccessTokenTTL: time.Duration(GetInt("ACCESS_TOKEN_TTL_MIN", 60)) * time.Minute,
		APIKeyHash:     GetString("MATCHD_API_KEY_HASH", ""),

		RedisAddr: GetString("REDIS_ADDR", ""),
		RedisPass: GetString("REDIS_PASSWORD", ""),
		RedisDB:   GetInt("REDIS_DB", 0),
		NATSURL:   GetString("NATS_URL", ""),

		OpenAIKey:            GetString("OPENAI_API_KEY", ""),
		OpenAIBaseURL:        GetString("OPENAI_BASE_URL", ""),
		OpenAIEmbeddingModel: GetString("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		OpenAIReviewModel:    GetString("OPENAI_REVIEW_MODEL", "gpt-4o-mini"),
		EmbeddingCacheTTL:    GetDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),

		DesiredTeamSize:   GetInt("MATCH_TEAM_SIZE", 4),
		Seed:              GetInt64("MATCH_SEED", 42),
		MaxIter:           GetInt("MATCH_MAX_ITER", 100),
		CoverageThreshold: GetFloat("MATCH_COVERAGE_THRESHOLD", 0.6),
		MaxRefineSwaps:    GetInt("MATCH_REFINE_SWAPS", 10),
		Workers:           GetInt("MATCH_WORKERS", 4),
		DefaultCapacity:   GetInt("MATCH_DEFAULT_CAPACITY", 0),
		ReviewConcurrency: GetInt("REVIEW_CONCURRENCY", 4),
		ProgressBuffer:    GetInt("PROGRESS_BUFFER", 256),
		ProfilePath:       GetString("MATCH_PROFILE_PATH", ""),
		AllowedRoles:      GetList("MATCH_ALLOWED_ROLES", nil),
		AllowedSkills:     GetList("MATCH_ALLOWED_SKILLS", nil),
		RequireMotivation: GetBool("MATCH_REQUIRE_MOTIVATION", false),

		RateLimitPerMinute: GetInt("RATE_LIMIT_PER_MINUTE", 120),
		ShutdownTimeout:    time.Duration(GetInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}
