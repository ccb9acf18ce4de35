// Package config loads the workbench settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
	"github.com/joho/godotenv"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
	"github.com/FocuswithJustin/tfstbench/core/session"
	"github.com/FocuswithJustin/tfstbench/internal/logging"
)

// Prefix of every environment variable read by Load.
const Prefix = "TFST_"

// Config holds the workbench settings.
type Config struct {
	SntDir         string `validate:"omitempty,dir"`
	ElagDir        string `validate:"omitempty,dir"`
	UnitexTool     string
	FontName       string
	FontSize       int    `validate:"gte=0,lte=200"`
	LogLevel       string `validate:"oneof=debug info warn error"`
	LogFormat      string `validate:"oneof=json text"`
	DBPath         string `validate:"required"`
	SnapshotDir    string `validate:"required"`
	TranscriptPath string
	ListenAddr     string `validate:"required"`
	Encoding       string `validate:"oneof=utf16le utf16be utf8 utf8bom"`
}

// keys maps struct fields to their variable names, without the prefix.
var keys = map[string]string{
	"SntDir":         "SNT_DIR",
	"ElagDir":        "ELAG_DIR",
	"UnitexTool":     "UNITEX_TOOL",
	"FontName":       "FONT_NAME",
	"FontSize":       "FONT_SIZE",
	"LogLevel":       "LOG_LEVEL",
	"LogFormat":      "LOG_FORMAT",
	"DBPath":         "DB_PATH",
	"SnapshotDir":    "SNAPSHOT_DIR",
	"TranscriptPath": "TRANSCRIPT",
	"ListenAddr":     "LISTEN_ADDR",
	"Encoding":       "ENCODING",
}

// Default returns the settings used when nothing is set.
func Default() *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		DBPath:      "tfstbench.db",
		SnapshotDir: filepath.Join(".tfstbench", "snapshots"),
		ListenAddr:  "127.0.0.1:8080",
		Encoding:    "utf16le",
	}
}

// Load reads the given .env files (.env in the working directory when none
// is given), then the TFST_ variables, and validates the result. Variables
// already set in the environment win over the files. A missing default .env
// is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if len(envFiles) > 0 {
			return nil, fmt.Errorf("loading env files: %w", err)
		}
		logging.Debug("no .env file found, using environment variables")
	}

	cfg := Default()
	cfg.SntDir = getEnv("SntDir", cfg.SntDir)
	cfg.ElagDir = getEnv("ElagDir", cfg.ElagDir)
	cfg.UnitexTool = getEnv("UnitexTool", cfg.UnitexTool)
	cfg.FontName = getEnv("FontName", cfg.FontName)
	cfg.LogLevel = strings.ToLower(getEnv("LogLevel", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(getEnv("LogFormat", cfg.LogFormat))
	cfg.DBPath = getEnv("DBPath", cfg.DBPath)
	cfg.SnapshotDir = getEnv("SnapshotDir", cfg.SnapshotDir)
	cfg.TranscriptPath = getEnv("TranscriptPath", cfg.TranscriptPath)
	cfg.ListenAddr = getEnv("ListenAddr", cfg.ListenAddr)
	cfg.Encoding = strings.ToLower(getEnv("Encoding", cfg.Encoding))

	size, err := getEnvInt("FontSize", cfg.FontSize)
	if err != nil {
		return nil, err
	}
	cfg.FontSize = size

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(field, def string) string {
	if v := os.Getenv(Prefix + keys[field]); v != "" {
		return v
	}
	return def
}

func getEnvInt(field string, def int) (int, error) {
	v := os.Getenv(Prefix + keys[field])
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s%s=%q is not an integer", tfsterrors.ErrInvalidInput, Prefix, keys[field], v)
	}
	return n, nil
}

// Validate checks the field constraints. Errors name the variables.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := Prefix + keys[fe.Field()] + ": failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s", tfsterrors.ErrInvalidInput, strings.Join(msgs, "; "))
}

// RequireSession checks the settings needed to open a text automaton.
func (c *Config) RequireSession() error {
	var missing []string
	if c.SntDir == "" {
		missing = append(missing, Prefix+keys["SntDir"])
	}
	if c.UnitexTool == "" {
		missing = append(missing, Prefix+keys["UnitexTool"])
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s must be set", tfsterrors.ErrInvalidInput, strings.Join(missing, " and "))
	}
	return nil
}

// SessionOptions returns the session settings. The elag directory defaults
// to the sentence directory.
func (c *Config) SessionOptions() session.Options {
	elag := c.ElagDir
	if elag == "" {
		elag = c.SntDir
	}
	return session.Options{
		SntDir:   c.SntDir,
		ElagDir:  elag,
		Font:     c.FontName,
		FontSize: c.FontSize,
	}
}

// InitLogging configures the global logger from the settings.
func (c *Config) InitLogging() {
	logging.InitLogger(logging.ParseLevel(c.LogLevel), logging.ParseFormat(c.LogFormat))
}
