package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type FilesConfig struct {
	RootDir string `yaml:"root_dir"`
}

type SchedulingConfig struct {
	// Days before the deadline at which a task turns pending.
	PendingThresholdDays int `yaml:"pending_threshold_days"`
	// Default generation horizon for automatic runs, in months.
	MonthsAdvanced  int    `yaml:"months_advanced"`
	StatusSweepCron string `yaml:"status_sweep_cron"`
	GenerationCron  string `yaml:"generation_cron"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUser     string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		Enabled      bool   `yaml:"enabled"`
	} `yaml:"email"`
	Files      FilesConfig      `yaml:"files"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
}

func LoadConfig() *Config {
	f, err := os.Open("config/config.yaml")
	if err != nil {
		panic("Failed to open config.yaml: " + err.Error())
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		panic("Failed to parse config.yaml: " + err.Error())
	}

	if cfg.Files.RootDir == "" {
		cfg.Files.RootDir = "./files"
	}
	if cfg.Scheduling.PendingThresholdDays <= 0 {
		cfg.Scheduling.PendingThresholdDays = 7
	}
	if cfg.Scheduling.MonthsAdvanced <= 0 {
		cfg.Scheduling.MonthsAdvanced = 1
	}
	if cfg.Scheduling.StatusSweepCron == "" {
		cfg.Scheduling.StatusSweepCron = "0 * * * *" // hourly
	}
	if cfg.Scheduling.GenerationCron == "" {
		cfg.Scheduling.GenerationCron = "30 2 * * *" // daily, 02:30
	}
	return &cfg
}
