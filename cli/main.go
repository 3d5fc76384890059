package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"vidweek/config"
	"vidweek/karakeep"
	"vidweek/logging"
	"vidweek/matrix"
	"vidweek/media"
	"vidweek/pipeline"
	"vidweek/report"
	"vidweek/retry"
	"vidweek/upload"
	"vidweek/window"
)

func main() {
	command := "run"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "run":
		cmdRun(args)
	case "upload":
		cmdUpload(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `vidweek - weekly bookmark video compilation

Usage:
  vidweek run [flags]    Fetch, download, and compile this week's videos
  vidweek upload         Upload the latest compilation to YouTube
  vidweek help           Show this help message

Run flags:
  --start-date   Window start, ISO-8601 (default: 7 days before end)
  --end-date     Window end, ISO-8601 (default: now)
  --merge-only   Skip fetching and downloading, reuse existing files
  --tiktok       Produce portrait 1080x1920 output instead of 1920x1080
`)
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	startDate := fs.String("start-date", "", "Window start, ISO-8601")
	endDate := fs.String("end-date", "", "Window end, ISO-8601")
	mergeOnly := fs.Bool("merge-only", false, "Skip download steps and go directly to merging existing videos")
	tiktok := fs.Bool("tiktok", false, "Generate video in TikTok format (1080x1920 portrait)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vidweek run [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *tiktok {
		cfg.Portrait()
	}

	win, err := parseWindow(*startDate, *endDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.PrettyLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.MaxRetries
	retryCfg.InitialBackoff = cfg.InitialBackoff

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	bookmarks := karakeep.NewClient(cfg.KarakeepBaseURL, cfg.KarakeepListID, cfg.KarakeepAPIKey)
	bookmarks.HTTPClient = httpClient
	bookmarks.Retry = retryCfg

	chat := matrix.NewClient(cfg.MatrixHomeserver, cfg.MatrixRoomID, cfg.MatrixAccessToken)
	chat.HTTPClient = httpClient
	chat.Retry = retryCfg

	ytdlp := media.NewYtdlp()
	ytdlp.Path = cfg.YtdlpPath
	ytdlp.CookiesBrowser = cfg.CookiesBrowser
	ytdlp.ProbeTimeout = cfg.ProbeTimeout
	ytdlp.DownloadTimeout = cfg.ToolTimeout

	// Fail before any fetching rather than on the first probe.
	if !*mergeOnly {
		if err := ytdlp.CheckInstalled(context.Background()); err != nil {
			log.Error("yt-dlp not available", zap.String("path", ytdlp.Path), zap.Error(err))
			os.Exit(1)
		}
	}

	ffmpeg := media.NewFFmpeg()
	ffmpeg.FfmpegPath = cfg.FfmpegPath
	ffmpeg.FfprobePath = cfg.FfprobePath
	ffmpeg.Timeout = cfg.ToolTimeout
	ffmpeg.ProbeTimeout = cfg.ProbeTimeout

	p := &pipeline.Pipeline{
		Cfg:        cfg,
		Log:        log,
		Bookmarks:  bookmarks,
		Chat:       chat,
		Prober:     &runProber{ytdlp: ytdlp, ffmpeg: ffmpeg},
		Downloader: ytdlp,
		Encoder:    ffmpeg,
		Renderer:   &report.Renderer{TemplatePath: cfg.ReportTemplate},
	}

	if err := p.Run(context.Background(), win, *mergeOnly); err != nil {
		log.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
}

func cmdUpload(args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vidweek upload\n")
	}
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.PrettyLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	auth := upload.NewAuthenticator(cfg.YouTubeClientID, cfg.YouTubeClientSecret,
		&upload.FileTokenCache{Path: cfg.TokenFile})

	uploader := &upload.Uploader{
		Auth:           auth,
		CompilationDir: cfg.CompilationDir,
		Log:            log,
	}

	videoID, err := uploader.Run(context.Background())
	if err != nil {
		log.Error("upload failed", zap.Error(err))
		os.Exit(1)
	}

	fmt.Printf("Uploaded: https://www.youtube.com/watch?v=%s\n", videoID)
}

// runProber probes remote URLs with yt-dlp and local files with ffprobe.
type runProber struct {
	ytdlp  *media.Ytdlp
	ffmpeg *media.FFmpeg
}

func (p *runProber) Probe(ctx context.Context, url string) (*media.Metadata, error) {
	return p.ytdlp.Probe(ctx, url)
}

func (p *runProber) FileDuration(ctx context.Context, path string) (time.Duration, error) {
	return p.ffmpeg.FileDuration(ctx, path)
}

// parseWindow builds the run window from the date flags, defaulting to the
// trailing 7 days ending now.
func parseWindow(start, end string) (window.Window, error) {
	endTime := time.Now()
	if end != "" {
		t, err := parseISODate(end)
		if err != nil {
			return window.Window{}, fmt.Errorf("parse --end-date: %w", err)
		}
		endTime = t
	}

	win := window.Last(endTime, 7*24*time.Hour)
	if start != "" {
		t, err := parseISODate(start)
		if err != nil {
			return window.Window{}, fmt.Errorf("parse --start-date: %w", err)
		}
		win.Start = t
	}

	return win, nil
}

// parseISODate accepts RFC3339, a naive datetime, or a bare date.
func parseISODate(s string) (time.Time, error) {
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (use ISO-8601)", s)
}
