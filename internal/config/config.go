// Package config loads, defaults, and validates the chatpulse configuration from
// a YAML file, a .env file, and CHATPULSE_* environment variables.
package config

import (
	"time"
	_ "time/tzdata" // timezone names must resolve on minimal images

	"github.com/go-telegram/bot/models"
)

// Config is the complete application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig selects the log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig configures the embedded SQLite store.
type DatabaseConfig struct {
	Path             string        `mapstructure:"path"              validate:"required"`
	ReaderConns      int           `mapstructure:"reader_conns"      validate:"min=1,max=64"`
	BusyTimeout      time.Duration `mapstructure:"busy_timeout"      validate:"min=100ms"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" validate:"min=100ms"`
	RollupBatchSize  int           `mapstructure:"rollup_batch_size" validate:"min=1"`
}

// TelegramConfig configures the bot transport.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`
	// AdminUserID may toggle chat settings in any chat. Zero disables the override.
	AdminUserID int64 `mapstructure:"admin_user_id" validate:"min=0"`
	// BotInfo is filled at startup from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// IngestConfig sizes the ingestion queue and worker pool.
type IngestConfig struct {
	Workers             int           `mapstructure:"workers"               validate:"min=1,max=64"`
	QueueSize           int           `mapstructure:"queue_size"            validate:"min=1"`
	StepTimeout         time.Duration `mapstructure:"step_timeout"          validate:"min=100ms"`
	DeadLetterRetention time.Duration `mapstructure:"dead_letter_retention" validate:"min=1h"`
}

// StatsConfig shapes the query layer's answers.
type StatsConfig struct {
	TopLimit     int `mapstructure:"top_limit"     validate:"min=1,max=50"`
	FriendsLimit int `mapstructure:"friends_limit" validate:"min=1,max=20"`
	// Timezone decides where "today" starts, as an IANA name.
	Timezone string `mapstructure:"timezone" validate:"required,timezone"`
}

// Location returns the configured timezone, falling back to UTC.
func (s StatsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SchedulerConfig maps task names to their schedule.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig is one scheduled task. Schedule is a six-field cron expression.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MessagesConfig holds the user-facing reply templates.
type MessagesConfig struct {
	Welcome           string `mapstructure:"welcome"             validate:"required"`
	Help              string `mapstructure:"help"                validate:"required"`
	Unauthorized      string `mapstructure:"unauthorized"        validate:"required"`
	GeneralError      string `mapstructure:"general_error"       validate:"required"`
	GroupOnly         string `mapstructure:"group_only"          validate:"required"`
	NoMessagesToday   string `mapstructure:"no_messages_today"   validate:"required"`
	NoMessagesEver    string `mapstructure:"no_messages_ever"    validate:"required"`
	SeenUsage         string `mapstructure:"seen_usage"          validate:"required"`
	SeenUnknown       string `mapstructure:"seen_unknown"        validate:"required"`
	SearchUsage       string `mapstructure:"search_usage"        validate:"required"`
	SearchDisabled    string `mapstructure:"search_disabled"     validate:"required"`
	SearchNoMatch     string `mapstructure:"search_no_match"     validate:"required"`
	FriendsNoneInChat string `mapstructure:"friends_none_in_chat" validate:"required"`
	FriendsNoneForYou string `mapstructure:"friends_none_for_you" validate:"required"`
	FTSEnabled        string `mapstructure:"fts_enabled"         validate:"required"`
	FTSAlreadyEnabled string `mapstructure:"fts_already_enabled" validate:"required"`
	FTSDisabled       string `mapstructure:"fts_disabled"        validate:"required"`
	FTSAlreadyOff     string `mapstructure:"fts_already_off"     validate:"required"`
}
