package config

import (
	"errors"
	"log"
	"os"

	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	App      AppConfig      `mapstructure:"app"`
	Credits  CreditsConfig  `mapstructure:"credits"`
	Epay     EpayConfig     `mapstructure:"epay"`
	Generate GenerateConfig `mapstructure:"generate"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int64  `mapstructure:"expire"` // 小时
}

type AppConfig struct {
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

// CreditsConfig 新用户免费次数配置
type CreditsConfig struct {
	NewUserFreeCredits    int  `mapstructure:"new_user_free_credits"`
	FreeCreditsExpiryDays int  `mapstructure:"free_credits_expiry_days"`
	FreeCreditsNeverExpire bool `mapstructure:"free_credits_never_expire"`
}

// EpayConfig 易支付网关配置（V1 MD5 接口）
type EpayConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	PID            string `mapstructure:"pid"`      // 商户ID
	Key            string `mapstructure:"key"`      // 商户密钥
	APIURL         string `mapstructure:"api_url"`  // 网关地址
	NotifyURL      string `mapstructure:"notify_url"`
	ReturnURL      string `mapstructure:"return_url"`
	WxpayEnabled   bool   `mapstructure:"wxpay_enabled"`
	AlipayEnabled  bool   `mapstructure:"alipay_enabled"`
	BalanceEnabled bool   `mapstructure:"balance_enabled"`
}

// GenerateConfig 图片生成 API 配置
type GenerateConfig struct {
	APIURL         string `mapstructure:"api_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

var GlobalConfig Config

// Validate 验证配置
func (c *Config) Validate() error {
	if c.JWT.Secret == "" || c.JWT.Secret == "your_super_secret_key" {
		return errors.New("please set a secure JWT secret in production")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}

	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	if c.Epay.Enabled {
		if c.Epay.PID == "" || c.Epay.Key == "" || c.Epay.APIURL == "" {
			return errors.New("epay is enabled but pid/key/api_url is incomplete")
		}
	}

	return nil
}

// LoadConfig 加载配置
func LoadConfig() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	configName := "config"
	if env != "" && env != "dev" {
		configName = "config." + env
	}

	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("jwt.expire", 168)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("app.env", "dev")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("credits.new_user_free_credits", 5)
	viper.SetDefault("credits.free_credits_expiry_days", 30)
	viper.SetDefault("credits.free_credits_never_expire", false)
	viper.SetDefault("generate.timeout_seconds", 30)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults or env vars: %v", err)
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		log.Fatalf("Unable to decode into struct: %v", err)
	}

	// 手动覆盖，以防 viper 无法正确解析复杂结构或环境变量
	if host := os.Getenv("DB_HOST"); host != "" {
		GlobalConfig.Database.Host = host
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		GlobalConfig.Redis.Addr = redisAddr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		GlobalConfig.JWT.Secret = jwtSecret
	}
	if epayKey := os.Getenv("EPAY_KEY"); epayKey != "" {
		GlobalConfig.Epay.Key = epayKey
	}

	if err := GlobalConfig.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	log.Printf("Configuration loaded and validated successfully. Environment: %s", GlobalConfig.App.Env)
}
