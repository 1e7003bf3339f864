package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fmueller/tubescribe/internal/audio"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var (
	ErrNoAudioStream      = errors.New("no audio stream available for this video")
	ErrDownloaderNotFound = errors.New("no downloader found (install yt-dlp or youtube-dl)")
)

var downloaderNames = []string{"yt-dlp", "youtube-dl"}

// VideoInfo is the subset of the downloader's metadata the pipeline uses.
type VideoInfo struct {
	ID           string
	Title        string
	Duration     time.Duration
	AudioFormats int
}

// Fetcher downloads the best audio-only stream of a video and stores it as MP3.
type Fetcher struct {
	// Downloader is the yt-dlp compatible executable.
	Downloader string
	Transcoder audio.Transcoder
	Logger     *zap.Logger
	// Status receives one human readable line per pipeline step.
	Status func(string)
}

func New(downloader string, transcoder audio.Transcoder, logger *zap.Logger, status func(string)) (*Fetcher, error) {
	exe, err := ResolveDownloader(downloader)
	if err != nil {
		return nil, err
	}
	if transcoder == nil {
		transcoder = audio.NewTranscoder(logger)
	}
	return &Fetcher{Downloader: exe, Transcoder: transcoder, Logger: logger, Status: status}, nil
}

// ResolveDownloader returns preferred when set, else the first of yt-dlp and
// youtube-dl found on PATH.
func ResolveDownloader(preferred string) (string, error) {
	if preferred = strings.TrimSpace(preferred); preferred != "" {
		path, err := exec.LookPath(preferred)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrDownloaderNotFound, preferred, err)
		}
		return path, nil
	}

	for _, name := range downloaderNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrDownloaderNotFound
}

// Inspect reads the video metadata and fails with ErrNoAudioStream when no
// audio-only format is offered.
func (f *Fetcher) Inspect(ctx context.Context, url string) (VideoInfo, error) {
	out, err := f.run(ctx, "-J", "--no-playlist", "--no-warnings", url)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("inspect %s: %w", url, err)
	}
	return parseInfo(out)
}

func parseInfo(raw []byte) (VideoInfo, error) {
	if !gjson.ValidBytes(raw) {
		return VideoInfo{}, errors.New("downloader returned invalid metadata JSON")
	}

	doc := gjson.ParseBytes(raw)
	info := VideoInfo{
		ID:       doc.Get("id").String(),
		Title:    doc.Get("title").String(),
		Duration: time.Duration(doc.Get("duration").Float() * float64(time.Second)),
	}

	formats := doc.Get("formats")
	if !formats.Exists() {
		if isAudioOnly(doc) {
			info.AudioFormats = 1
		}
	} else {
		formats.ForEach(func(_, format gjson.Result) bool {
			if isAudioOnly(format) {
				info.AudioFormats++
			}
			return true
		})
	}

	if info.AudioFormats == 0 {
		return info, ErrNoAudioStream
	}
	return info, nil
}

func isAudioOnly(format gjson.Result) bool {
	acodec := format.Get("acodec").String()
	return format.Get("vcodec").String() == "none" && acodec != "" && acodec != "none"
}

// Fetch downloads the best audio stream of url into outputDir and returns the
// path of the MP3 file. The raw download is removed after conversion.
func (f *Fetcher) Fetch(ctx context.Context, url, outputDir string) (string, error) {
	logger := f.logger()

	f.status("Starting to download...")
	info, err := f.Inspect(ctx, url)
	if err != nil {
		return "", err
	}
	f.status("Downloading audio stream: " + info.Title)
	logger.Debug("inspected video",
		zap.String("id", info.ID),
		zap.String("title", info.Title),
		zap.Duration("duration", info.Duration),
		zap.Int("audio_formats", info.AudioFormats),
	)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	staging, err := os.MkdirTemp(outputDir, ".tubescribe-download-*")
	if err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}
	defer os.RemoveAll(staging)

	template := filepath.Join(staging, "%(title)s.%(ext)s")
	if _, err := f.run(ctx, "-f", "bestaudio", "--no-playlist", "--no-progress", "--no-warnings", "-o", template, url); err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}

	rawPath, err := downloadedFile(staging)
	if err != nil {
		return "", err
	}
	rawInfo, err := os.Stat(rawPath)
	if err != nil {
		return "", fmt.Errorf("stat download: %w", err)
	}
	f.status("Downloaded video to: " + rawPath)
	logger.Info("downloaded audio stream",
		zap.String("file", filepath.Base(rawPath)),
		zap.String("size", humanize.IBytes(uint64(rawInfo.Size()))),
	)

	base := strings.TrimSuffix(filepath.Base(rawPath), filepath.Ext(rawPath))
	mp3Path := filepath.Join(outputDir, base+".mp3")

	if strings.EqualFold(filepath.Ext(rawPath), ".mp3") {
		if err := os.Rename(rawPath, mp3Path); err != nil {
			return "", fmt.Errorf("move audio file: %w", err)
		}
	} else {
		f.status("Converting video to MP3 format: " + mp3Path)
		if f.Transcoder == nil {
			return "", errors.New("no transcoder configured")
		}
		if err := f.Transcoder.Transcode(ctx, rawPath, mp3Path); err != nil {
			return "", err
		}

		f.status("Removing the original video file...")
		if err := os.Remove(rawPath); err != nil {
			return "", fmt.Errorf("remove original download: %w", err)
		}
	}

	f.status("Audio file saved at: " + mp3Path)
	return mp3Path, nil
}

// downloadedFile returns the single finished file in dir. Leftover partial
// downloads are ignored.
func downloadedFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read download directory: %w", err)
	}

	var found []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		found = append(found, filepath.Join(dir, name))
	}

	switch len(found) {
	case 0:
		return "", errors.New("downloader finished without producing a file")
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("downloader produced %d files, expected one", len(found))
	}
}

func (f *Fetcher) run(ctx context.Context, args ...string) ([]byte, error) {
	if f.Downloader == "" {
		return nil, ErrDownloaderNotFound
	}

	cmd := exec.CommandContext(ctx, f.Downloader, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	f.logger().Debug("running downloader", zap.String("downloader", f.Downloader), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%s: %w", filepath.Base(f.Downloader), err)
		}
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(f.Downloader), err, msg)
	}
	return stdout.Bytes(), nil
}

func (f *Fetcher) status(line string) {
	if f.Status != nil {
		f.Status(line)
	}
}

func (f *Fetcher) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}
