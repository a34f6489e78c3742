package docker

import (
	"time"
)

// Config holds the configuration for running ffmpeg in containers.
type Config struct {
	// Image must provide both ffmpeg and ffprobe.
	Image string
	// MediaDir is the host upload directory, mounted at /media.
	MediaDir string
	// MemoryLimit is the maximum amount of memory a container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs a container can use.
	CPULimit float64
	// Timeout bounds a single command.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int
}

// DefaultConfig returns limits sized for transcoding short previews.
func DefaultConfig(image, mediaDir string) Config {
	return Config{
		Image:    image,
		MediaDir: mediaDir,
		// 512 MB memory limit
		MemoryLimit: 512 * 1024 * 1024,
		CPULimit:    1,
		Timeout:     10 * time.Minute,
		PoolSize:    2,
	}
}
