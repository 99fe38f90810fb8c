package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Providers ProvidersConfig `mapstructure:"providers"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"` // bcrypt
}

type QueueConfig struct {
	TaskQueue           string `mapstructure:"task_queue"`
	MaxWorkers          int    `mapstructure:"max_workers"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
	MaxTaskLifetimeMin  int    `mapstructure:"max_task_lifetime_minutes"` // 超过后自动退款并放弃任务
}

type SweeperConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
	WarnDaysBefore  int `mapstructure:"warn_days_before"`
}

type PricingConfig struct {
	Video      VideoPricingConfig    `mapstructure:"video"`
	Plans      map[string]PlanConfig `mapstructure:"plans"`
	TopupPacks []TopupPackConfig     `mapstructure:"topup_packs"`
}

// VideoPricingConfig 按秒计费参数
// 每秒费率 = round(外部成本 × 加价倍数 / 单币价值)，启动时算一次并缓存
type VideoPricingConfig struct {
	CostPerSecondMute  float64 `mapstructure:"cost_per_second_mute"`
	CostPerSecondAudio float64 `mapstructure:"cost_per_second_audio"`
	MarginMultiplier   float64 `mapstructure:"margin_multiplier"`
	CoinUnitValue      float64 `mapstructure:"coin_unit_value"`
}

type PlanConfig struct {
	Title        string `mapstructure:"title"`
	PriceRub     int    `mapstructure:"price_rub"`
	Coins        int    `mapstructure:"coins"`
	DurationDays int    `mapstructure:"duration_days"`
}

type TopupPackConfig struct {
	Coins      int `mapstructure:"coins"`
	PriceRub   int `mapstructure:"price_rub"`
	BonusCoins int `mapstructure:"bonus_coins"`
}

type PaymentConfig struct {
	ShopID    string `mapstructure:"shop_id"`
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"`
	ReturnURL string `mapstructure:"return_url"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	APIBase  string `mapstructure:"api_base"`
}

type ProvidersConfig struct {
	Sora ProviderConfig `mapstructure:"sora"`
	Veo  ProviderConfig `mapstructure:"veo"`
}

type ProviderConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	CallbackURL    string `mapstructure:"callback_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	// 检查 config.local.yaml 是否存在
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
