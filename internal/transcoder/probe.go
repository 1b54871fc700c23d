package transcoder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// probeArgs selects only what orientation analysis needs.
func probeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:stream_tags=rotate:stream_side_data=rotation",
		"-of", "json",
		path,
	}
}

// flexInt accepts both JSON numbers and numeric strings. ffprobe prints the
// rotate tag as a string and side-data rotation as a number.
type flexInt struct {
	value int
	set   bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	f.value = int(v)
	f.set = true
	return nil
}

type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
		Tags   struct {
			Rotate flexInt `json:"rotate"`
		} `json:"tags"`
		SideDataList []struct {
			Rotation flexInt `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
}

// ParseProbeOutput decodes ffprobe JSON output. The rotate tag wins over the
// first side-data entry carrying a rotation.
func ParseProbeOutput(out []byte) (ProbeResult, error) {
	var data probeOutput
	if err := json.Unmarshal(out, &data); err != nil {
		return ProbeResult{}, fmt.Errorf("%w: %v", ErrMetadataParse, err)
	}
	if len(data.Streams) == 0 {
		return ProbeResult{}, fmt.Errorf("%w: no video stream", ErrMetadataParse)
	}

	s := data.Streams[0]
	res := ProbeResult{Width: s.Width, Height: s.Height}

	switch {
	case s.Tags.Rotate.set:
		res.Rotation = s.Tags.Rotate.value
	default:
		for _, sd := range s.SideDataList {
			if sd.Rotation.set {
				res.Rotation = sd.Rotation.value
				break
			}
		}
	}
	return res, nil
}
