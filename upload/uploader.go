package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// categoryPeopleAndBlogs is YouTube category 22, the fixed category every
// compilation is uploaded under.
const categoryPeopleAndBlogs = "22"

// ErrNoCompilation indicates the compilation directory holds no video.
var ErrNoCompilation = errors.New("no compilation video found")

// Uploader submits the most recent compilation video with its report as
// description.
type Uploader struct {
	Auth           *Authenticator
	CompilationDir string
	Log            *zap.Logger
}

// Run locates the newest compilation, authenticates, and uploads it as a
// private video. It returns the platform video id.
func (u *Uploader) Run(ctx context.Context) (string, error) {
	videoPath, err := latestCompilation(u.CompilationDir)
	if err != nil {
		return "", err
	}

	reportPath := strings.TrimSuffix(videoPath, ".mp4") + ".md"
	description, err := os.ReadFile(reportPath)
	if err != nil {
		return "", fmt.Errorf("read report: %w", err)
	}

	client, err := u.Auth.Client(ctx)
	if err != nil {
		return "", err
	}

	service, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return "", fmt.Errorf("create youtube service: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(videoPath), ".mp4")
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       "Video Compilation - " + stem,
			Description: string(description),
			CategoryId:  categoryPeopleAndBlogs,
		},
		Status: &youtube.VideoStatus{PrivacyStatus: "private"},
	}

	file, err := os.Open(videoPath)
	if err != nil {
		return "", fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	u.Log.Info("uploading", zap.String("video", videoPath), zap.String("report", reportPath))

	resp, err := service.Videos.Insert([]string{"snippet", "status"}, video).
		Media(file).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("upload video: %w", err)
	}

	u.Log.Info("upload complete", zap.String("video_id", resp.Id))
	return resp.Id, nil
}

// latestCompilation returns the most recently modified .mp4 in dir.
func latestCompilation(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read compilation dir: %w", err)
	}

	var newest string
	var newestMod int64
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".mp4" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().UnixNano() > newestMod {
			newest = filepath.Join(dir, e.Name())
			newestMod = info.ModTime().UnixNano()
		}
	}

	if newest == "" {
		return "", ErrNoCompilation
	}
	return newest, nil
}
