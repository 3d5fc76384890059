// Package config manages pipeline configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every option the pipeline stages consume. Stages receive
// this struct explicitly; nothing reads the environment after Load returns.
type Config struct {
	// Karakeep bookmark service.
	KarakeepBaseURL string
	KarakeepListID  string
	KarakeepAPIKey  string

	// Matrix chat room history.
	MatrixHomeserver  string
	MatrixRoomID      string
	MatrixAccessToken string

	// YouTube upload OAuth client.
	YouTubeClientID     string
	YouTubeClientSecret string
	YouTubeProjectID    string
	// TokenFile is where the OAuth token is cached between runs.
	TokenFile string

	// Directories.
	DownloadDir    string
	CompilationDir string
	// ReportTemplate optionally overrides the built-in report template.
	ReportTemplate string

	// MaxClipDuration is the inclusive duration ceiling for a clip.
	MaxClipDuration time.Duration
	// Width and Height define the normalization target resolution.
	Width  int
	Height int

	// External tools.
	YtdlpPath      string
	FfmpegPath     string
	FfprobePath    string
	CookiesBrowser string
	ProbeTimeout   time.Duration
	ToolTimeout    time.Duration

	// HTTPTimeout bounds individual requests to the bookmark and chat
	// services.
	HTTPTimeout time.Duration

	// Logging.
	LogLevel  string
	PrettyLog bool

	// Retry tuning for the HTTP fetchers.
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		TokenFile:       ".youtube_token.json",
		DownloadDir:     "downloads",
		CompilationDir:  "compilation",
		MaxClipDuration: 180 * time.Second,
		Width:           1920,
		Height:          1080,
		YtdlpPath:       "yt-dlp",
		FfmpegPath:      "ffmpeg",
		FfprobePath:     "ffprobe",
		CookiesBrowser:  "firefox",
		ProbeTimeout:    1 * time.Minute,
		ToolTimeout:     15 * time.Minute,
		HTTPTimeout:     30 * time.Second,
		LogLevel:        "info",
		PrettyLog:       true,
		MaxRetries:      3,
		InitialBackoff:  1 * time.Second,
	}
}

// Load builds configuration from defaults, an optional YAML file, and
// environment variables, in increasing priority, then validates the result.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Duration unmarshals YAML strings like "90s" or "2m" via
// time.ParseDuration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// fileConfig is the YAML file schema. Pointer fields distinguish unset
// keys from explicit zero values.
type fileConfig struct {
	KarakeepBaseURL *string `yaml:"karakeep_base_url"`
	KarakeepListID  *string `yaml:"karakeep_list_id"`
	KarakeepAPIKey  *string `yaml:"karakeep_api_key"`

	MatrixHomeserver  *string `yaml:"matrix_homeserver"`
	MatrixRoomID      *string `yaml:"matrix_room_id"`
	MatrixAccessToken *string `yaml:"matrix_access_token"`

	YouTubeClientID     *string `yaml:"youtube_client_id"`
	YouTubeClientSecret *string `yaml:"youtube_client_secret"`
	YouTubeProjectID    *string `yaml:"youtube_project_id"`
	TokenFile           *string `yaml:"token_file"`

	DownloadDir    *string `yaml:"download_dir"`
	CompilationDir *string `yaml:"compilation_dir"`
	ReportTemplate *string `yaml:"report_template"`

	MaxClipDuration *Duration `yaml:"max_clip_duration"`
	Width           *int      `yaml:"width"`
	Height          *int      `yaml:"height"`

	YtdlpPath      *string   `yaml:"ytdlp_path"`
	FfmpegPath     *string   `yaml:"ffmpeg_path"`
	FfprobePath    *string   `yaml:"ffprobe_path"`
	CookiesBrowser *string   `yaml:"cookies_browser"`
	ProbeTimeout   *Duration `yaml:"probe_timeout"`
	ToolTimeout    *Duration `yaml:"tool_timeout"`

	HTTPTimeout *Duration `yaml:"http_timeout"`

	LogLevel  *string `yaml:"log_level"`
	PrettyLog *bool   `yaml:"pretty_log"`

	MaxRetries     *int      `yaml:"max_retries"`
	InitialBackoff *Duration `yaml:"initial_backoff"`
}

// loadFromFile reads vidweek.yaml from the current directory or the user
// config directory. The file is optional.
func (c *Config) loadFromFile() error {
	paths := []string{
		"vidweek.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", "vidweek", "vidweek.yaml"),
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		var file fileConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		c.apply(&file)
		return nil
	}

	return os.ErrNotExist
}

// apply copies the set fields of a parsed config file over the defaults.
func (c *Config) apply(f *fileConfig) {
	applyString(&c.KarakeepBaseURL, f.KarakeepBaseURL)
	applyString(&c.KarakeepListID, f.KarakeepListID)
	applyString(&c.KarakeepAPIKey, f.KarakeepAPIKey)

	applyString(&c.MatrixHomeserver, f.MatrixHomeserver)
	applyString(&c.MatrixRoomID, f.MatrixRoomID)
	applyString(&c.MatrixAccessToken, f.MatrixAccessToken)

	applyString(&c.YouTubeClientID, f.YouTubeClientID)
	applyString(&c.YouTubeClientSecret, f.YouTubeClientSecret)
	applyString(&c.YouTubeProjectID, f.YouTubeProjectID)
	applyString(&c.TokenFile, f.TokenFile)

	applyString(&c.DownloadDir, f.DownloadDir)
	applyString(&c.CompilationDir, f.CompilationDir)
	applyString(&c.ReportTemplate, f.ReportTemplate)

	applyDuration(&c.MaxClipDuration, f.MaxClipDuration)
	applyInt(&c.Width, f.Width)
	applyInt(&c.Height, f.Height)

	applyString(&c.YtdlpPath, f.YtdlpPath)
	applyString(&c.FfmpegPath, f.FfmpegPath)
	applyString(&c.FfprobePath, f.FfprobePath)
	applyString(&c.CookiesBrowser, f.CookiesBrowser)
	applyDuration(&c.ProbeTimeout, f.ProbeTimeout)
	applyDuration(&c.ToolTimeout, f.ToolTimeout)

	applyDuration(&c.HTTPTimeout, f.HTTPTimeout)

	applyString(&c.LogLevel, f.LogLevel)
	if f.PrettyLog != nil {
		c.PrettyLog = *f.PrettyLog
	}

	applyInt(&c.MaxRetries, f.MaxRetries)
	applyDuration(&c.InitialBackoff, f.InitialBackoff)
}

// loadFromEnv overrides config with environment variables. Service
// credentials keep their historical names; tuning knobs use VIDWEEK_.
func (c *Config) loadFromEnv() {
	setString(&c.KarakeepBaseURL, "KARAKEEP_BASE_URL")
	setString(&c.KarakeepListID, "KARAKEEP_LIST_ID")
	setString(&c.KarakeepAPIKey, "KARAKEEP_API_KEY")

	setString(&c.MatrixHomeserver, "MATRIX_HOMESERVER")
	setString(&c.MatrixRoomID, "MATRIX_ROOM_ID")
	setString(&c.MatrixAccessToken, "MATRIX_ACCESS_TOKEN")

	setString(&c.YouTubeClientID, "YOUTUBE_CLIENT_ID")
	setString(&c.YouTubeClientSecret, "YOUTUBE_CLIENT_SECRET")
	setString(&c.YouTubeProjectID, "YOUTUBE_PROJECT_ID")

	setString(&c.TokenFile, "VIDWEEK_TOKEN_FILE")
	setString(&c.DownloadDir, "VIDWEEK_DOWNLOAD_DIR")
	setString(&c.CompilationDir, "VIDWEEK_COMPILATION_DIR")
	setString(&c.ReportTemplate, "VIDWEEK_REPORT_TEMPLATE")
	setString(&c.YtdlpPath, "VIDWEEK_YTDLP_PATH")
	setString(&c.FfmpegPath, "VIDWEEK_FFMPEG_PATH")
	setString(&c.FfprobePath, "VIDWEEK_FFPROBE_PATH")
	setString(&c.CookiesBrowser, "VIDWEEK_COOKIES_BROWSER")
	setString(&c.LogLevel, "VIDWEEK_LOG_LEVEL")

	setDuration(&c.MaxClipDuration, "VIDWEEK_MAX_CLIP_DURATION")
	setDuration(&c.ProbeTimeout, "VIDWEEK_PROBE_TIMEOUT")
	setDuration(&c.ToolTimeout, "VIDWEEK_TOOL_TIMEOUT")
	setDuration(&c.HTTPTimeout, "VIDWEEK_HTTP_TIMEOUT")
	setDuration(&c.InitialBackoff, "VIDWEEK_INITIAL_BACKOFF")

	setInt(&c.Width, "VIDWEEK_WIDTH")
	setInt(&c.Height, "VIDWEEK_HEIGHT")
	setInt(&c.MaxRetries, "VIDWEEK_MAX_RETRIES")

	setBool(&c.PrettyLog, "VIDWEEK_PRETTY_LOG")
}

// Portrait switches the normalization target to the 1080x1920 portrait
// profile used for TikTok-format output.
func (c *Config) Portrait() {
	c.Width, c.Height = 1080, 1920
}

// Validate checks that configuration values are consistent.
func (c *Config) Validate() error {
	if c.MaxClipDuration <= 0 {
		return fmt.Errorf("max_clip_duration must be positive")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("width and height must be positive")
	}
	if c.ProbeTimeout <= 0 || c.ToolTimeout <= 0 {
		return fmt.Errorf("tool timeouts must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	return nil
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func applyInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func applyDuration(dst *time.Duration, src *Duration) {
	if src != nil {
		*dst = time.Duration(*src)
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
