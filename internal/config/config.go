package config

import (
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	AdminPolicyReservedName = "reserved-name"
	AdminPolicyRoomOwner    = "room-owner"
)

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	WebRTC   WebRTCConfig   `yaml:"webrtc"`
	Session  SessionConfig  `yaml:"session"`
	Profile  ProfileConfig  `yaml:"profile"`
}

type HTTPConfig struct {
	Address      string   `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	AllowOrigins []string `yaml:"allow_origins" env:"HTTP_ALLOW_ORIGINS"`
}

// DatabaseConfig selects the relay storage. An empty DSN keeps rooms and chat in memory.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"DATABASE_DSN" env-default:""`
}

type WebRTCConfig struct {
	STUNServers  []string `yaml:"stun_servers" env:"STUN_SERVERS"`
	TURNServers  []string `yaml:"turn_servers" env:"TURN_SERVERS"`
	TURNUsername string   `yaml:"turn_username" env:"TURN_USERNAME" env-default:""`
	TURNPassword string   `yaml:"turn_password" env:"TURN_PASSWORD" env-default:""`
}

type SessionConfig struct {
	RelayURL      string        `yaml:"relay_url" env:"RELAY_URL" env-default:""`
	APIURL        string        `yaml:"api_url" env:"API_URL" env-default:""`
	StatsInterval time.Duration `yaml:"stats_interval" env:"STATS_INTERVAL" env-default:"1s"`
	AdminPolicy   string        `yaml:"admin_policy" env:"ADMIN_POLICY" env-default:"reserved-name"`
	AdminNickname string        `yaml:"admin_nickname" env:"ADMIN_NICKNAME" env-default:"Teolojik"`
	PoorLoss      float64       `yaml:"poor_loss" env-default:"0.05"`
	PoorRTT       time.Duration `yaml:"poor_rtt" env-default:"200ms"`
	ExcellentRTT  time.Duration `yaml:"excellent_rtt" env-default:"100ms"`
	HistoryLimit  int           `yaml:"history_limit" env-default:"50"`
}

type ProfileConfig struct {
	Path string `yaml:"path" env:"PROFILE_PATH" env-default:""`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	cfg, err := LoadPath(configPath)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

// LoadPath reads the YAML file at configPath and applies environment overrides and defaults.
func LoadPath(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, &LoadError{Path: configPath, Err: err}
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, &LoadError{Path: configPath, Err: err}
	}

	cfg.setDefaults()

	return &cfg, nil
}

type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return "cannot read config " + e.Path + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if len(c.WebRTC.STUNServers) == 0 {
		c.WebRTC.STUNServers = []string{
			"stun:stun.l.google.com:19302",
			"stun:stun1.l.google.com:19302",
		}
	}
	if c.Session.RelayURL == "" {
		c.Session.RelayURL = "ws://localhost" + c.HTTP.Address
	}
	if c.Session.APIURL == "" {
		c.Session.APIURL = "http://localhost" + c.HTTP.Address
	}
	if c.Session.StatsInterval <= 0 {
		c.Session.StatsInterval = time.Second
	}
	if c.Session.AdminPolicy != AdminPolicyRoomOwner {
		c.Session.AdminPolicy = AdminPolicyReservedName
	}
	if c.Session.PoorLoss <= 0 {
		c.Session.PoorLoss = 0.05
	}
	if c.Session.PoorRTT <= 0 {
		c.Session.PoorRTT = 200 * time.Millisecond
	}
	if c.Session.ExcellentRTT <= 0 {
		c.Session.ExcellentRTT = 100 * time.Millisecond
	}
	if c.Session.HistoryLimit <= 0 {
		c.Session.HistoryLimit = 50
	}
	if c.Profile.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.Profile.Path = filepath.Join(home, ".meshconf", "profile.yaml")
	}
}
