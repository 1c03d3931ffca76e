package config

import "time"

type Config struct {
	DiscordToken          string   `env:"DISCORD_TOKEN"`
	DataDir               string   `env:"DATA_DIR" envDefault:"./data"`
	LogLevel              string   `env:"LOG_LEVEL" envDefault:"info"`
	BotActivity           string   `env:"BOT_ACTIVITY" envDefault:"music"`
	RegisterCommandsOnBot bool     `env:"REGISTER_COMMANDS_ON_BOT" envDefault:"false"`
	DevIDs                []string `env:"DEV_IDS" envSeparator:","`

	// Playback
	DefaultVolume       int           `env:"DEFAULT_VOLUME" envDefault:"100"`
	SearchSource        string        `env:"SEARCH_SOURCE" envDefault:"youtube"` // youtube/youtubemusic/soundcloud
	ResolveTimeout      time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"15s"`
	SpotifyClientID     string        `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string        `env:"SPOTIFY_CLIENT_SECRET"`
	YouTubeCookiesPath  string        `env:"YOUTUBE_COOKIES_PATH"`

	SponsorBlockEnabled  bool          `env:"SPONSORBLOCK_ENABLED" envDefault:"true"`
	SponsorBlockCooldown time.Duration `env:"SPONSORBLOCK_COOLDOWN" envDefault:"5m"`

	// Assistant
	GeminiAPIKey    string        `env:"GEMINI_API_KEY"`
	GeminiModel     string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	AIChannel       string        `env:"AI_CHANNEL" envDefault:"napstablook"`
	AITimeout       time.Duration `env:"AI_TIMEOUT" envDefault:"30s"`
	AIRatePerMinute int           `env:"AI_RATE_PER_MINUTE" envDefault:"6"`
	HistoryLimit    int           `env:"AI_HISTORY_LIMIT" envDefault:"20"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Minecraft
	RconAllowedUserIDs []string `env:"RCON_ALLOWED_USER_IDS" envSeparator:","`
	RconAllowedRoleIDs []string `env:"RCON_ALLOWED_ROLE_IDS" envSeparator:","`
	MCHost             string   `env:"MC_HOST" envDefault:"127.0.0.1"`
	MCPort             int      `env:"MC_PORT" envDefault:"25565"`
	MCStatusTimeoutMS  int      `env:"MC_STATUS_TIMEOUT_MS" envDefault:"3000"`
	RconHost           string   `env:"RCON_HOST" envDefault:"127.0.0.1"`
	RconPort           int      `env:"RCON_PORT" envDefault:"25575"`
	RconPassword       string   `env:"RCON_PASSWORD"`
	RconTimeoutMS      int      `env:"RCON_TIMEOUT_MS" envDefault:"5000"`

	// Compute
	AWSRegion       string        `env:"AWS_REGION" envDefault:"eu-north-1"`
	EC2InstanceID   string        `env:"EC2_INSTANCE_ID"`
	EC2StartTimeout time.Duration `env:"EC2_START_TIMEOUT" envDefault:"5m"`
}
