package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Thumbnail timemarks and preview sampling periods, in seconds.
const (
	longVideo  = 900
	shortVideo = 50

	thumbLong   = 720
	thumbMedium = 240
	thumbShort  = 5

	previewPeriodLong  = 150
	previewPeriodShort = 45
	previewClip        = 0.8
)

// ThumbnailAt picks where to grab the thumbnail frame: 720s into videos of
// 15 minutes or more, 240s into videos over 50 seconds, else 5s.
func ThumbnailAt(d time.Duration) int {
	secs := int(math.Floor(d.Seconds()))
	switch {
	case secs >= longVideo:
		return thumbLong
	case secs > shortVideo:
		return thumbMedium
	default:
		return thumbShort
	}
}

// PreviewPeriod is the spacing of the 0.8s clips the preview is stitched
// from: one every 150s for videos over 15 minutes, every 45s otherwise.
func PreviewPeriod(d time.Duration) int {
	if int(math.Floor(d.Seconds())) > longVideo {
		return previewPeriodLong
	}
	return previewPeriodShort
}

// ProbeCommand asks ffprobe for the container format as JSON.
func ProbeCommand(source string) Command {
	return Command{
		Name: "ffprobe",
		Args: []string{"-v", "error", "-print_format", "json", "-show_format", source},
	}
}

// ThumbnailCommand writes one frame at second `at` as a PNG. Videos shorter
// than the timemark get the middle frame instead, so short clips still
// produce a thumbnail.
func ThumbnailCommand(source, thumb string, d time.Duration) Command {
	at := float64(ThumbnailAt(d))
	if d > 0 && at >= d.Seconds() {
		at = d.Seconds() / 2
	}
	return Command{
		Name: "ffmpeg",
		Args: []string{
			"-y", "-ss", strconv.FormatFloat(at, 'f', 3, 64),
			"-i", source,
			"-frames:v", "1",
			thumb,
		},
	}
}

// PreviewCommand keeps the first 0.8s of every period and re-times the
// kept frames and samples into a short webm.
func PreviewCommand(source, preview string, d time.Duration) Command {
	sel := fmt.Sprintf("lt(mod(t,%d),%g)", PreviewPeriod(d), previewClip)
	return Command{
		Name: "ffmpeg",
		Args: []string{
			"-y", "-i", source,
			"-vf", fmt.Sprintf("select='%s',setpts=N/FRAME_RATE/TB", sel),
			"-af", fmt.Sprintf("aselect='%s',asetpts=N/SR/TB", sel),
			preview,
		},
	}
}

// Probe returns the duration of source.
func Probe(ctx context.Context, r Runner, source string) (time.Duration, error) {
	res, err := run(ctx, r, ProbeCommand(source))
	if err != nil {
		return 0, err
	}
	return parseProbe([]byte(res.Stdout))
}

func parseProbe(out []byte) (time.Duration, error) {
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("media: decoding ffprobe output: %w", err)
	}
	secs, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("media: ffprobe reported no duration: %w", err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Generate probes the source and writes the thumbnail and the preview.
func Generate(ctx context.Context, r Runner, t Task) error {
	d, err := Probe(ctx, r, t.Source)
	if err != nil {
		return err
	}
	if _, err := run(ctx, r, ThumbnailCommand(t.Source, t.Thumb, d)); err != nil {
		return fmt.Errorf("thumbnail: %w", err)
	}
	if _, err := run(ctx, r, PreviewCommand(t.Source, t.Preview, d)); err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	return nil
}
