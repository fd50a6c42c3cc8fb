package metadataprobe

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ffprobeJSON mirrors the subset of `ffprobe -print_format json
// -show_format -show_streams` output this probe cares about (spec.md
// §6.3: "CLI that emits a JSON description").
type ffprobeJSON struct {
	Format struct {
		Duration string            `json:"duration"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		Tags      map[string]string `json:"tags"`
	} `json:"streams"`
}

// FFProbeVideoProber runs the `ffprobe` binary and parses its JSON
// description into a VideoMeta (spec.md §4.3, §6.3).
type FFProbeVideoProber struct {
	binary string
}

// NewFFProbeVideoProber builds a VideoProber backed by the ffprobe
// binary found on PATH (or at binary, if non-empty).
func NewFFProbeVideoProber(binary string) *FFProbeVideoProber {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFProbeVideoProber{binary: binary}
}

func (p *FFProbeVideoProber) Probe(ctx context.Context, path string) (VideoMeta, error) {
	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return VideoMeta{}, err
	}

	var parsed ffprobeJSON
	if err := json.Unmarshal(out, &parsed); err != nil {
		return VideoMeta{}, err
	}

	var meta VideoMeta
	if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		meta.DurationS = d
	}
	for _, s := range parsed.Streams {
		if s.CodecType != "video" {
			continue
		}
		meta.Width = s.Width
		meta.Height = s.Height
		meta.Codec = s.CodecName
		meta.FPS = parseFrameRate(s.RFrameRate)
		break
	}
	if dt, ok := parsed.Format.Tags["creation_time"]; ok {
		if t, err := time.Parse(time.RFC3339, dt); err == nil {
			meta.DateTaken = &t
		}
	}
	return meta, nil
}

// parseFrameRate converts ffprobe's "30000/1001"-style rational frame
// rate string into a float.
func parseFrameRate(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
