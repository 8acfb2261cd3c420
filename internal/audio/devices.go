package audio

import (
	"bufio"
	"cmp"
	"fmt"
	"os/exec"
	"regexp"
	"slices"
	"strings"
)

// ListInputDevices returns the devices of drv whose direction is unspecified or
// Input, in host order. A host without input devices yields an empty slice.
func ListInputDevices(drv Driver) ([]Device, error) {
	all, err := drv.Devices()
	if err != nil {
		return nil, fmt.Errorf("list %s devices: %w", drv.Name(), err)
	}

	devices := make([]Device, 0, len(all))
	for _, dev := range all {
		if dev.Direction == DirectionOutput {
			continue
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// runListCommand runs a device listing tool and returns its output.
func runListCommand(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil && len(output) == 0 {
		return "", fmt.Errorf("run %s: %w", name, err)
	}
	return string(output), nil
}

// parseHintList parses the PCM hint listing printed by `arecord -L`: a device
// name at column zero followed by indented description lines.
func parseHintList(output string) []Device {
	devices := []Device{}
	current := -1

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if line[0] != ' ' && line[0] != '\t' {
			devices = append(devices, Device{Name: strings.TrimSpace(line)})
			current = len(devices) - 1
			continue
		}

		// Description line before any name, e.g. a tool warning.
		if current < 0 {
			continue
		}

		desc := strings.TrimSpace(line)
		if devices[current].Description == "" {
			devices[current].Description = desc
		} else {
			devices[current].Description += ", " + desc
		}
	}

	return devices
}

// directionOf maps playback and capture capability to a direction tag.
func directionOf(play, record bool) Direction {
	switch {
	case play && !record:
		return DirectionOutput
	case record && !play:
		return DirectionInput
	default:
		return DirectionAny
	}
}

// hwNamePattern matches ALSA hardware device names such as hw:1,0.
var hwNamePattern = regexp.MustCompile(`^hw:(\d+),(\d+)$`)

// pluginNamePattern matches ALSA PCM names with a plugin prefix.
var pluginNamePattern = regexp.MustCompile(`^[a-z_]+:`)

// isPluginName reports whether id names an alsa-lib plugin PCM such as
// plughw:1,0 or dsnoop:CARD=PCH rather than a kernel node.
func isPluginName(id string) bool {
	return pluginNamePattern.MatchString(id) && !hwNamePattern.MatchString(id)
}

// pcmPathPattern matches kernel PCM nodes such as /dev/snd/pcmC1D0c.
var pcmPathPattern = regexp.MustCompile(`pcmC(\d+)D(\d+)[cp]$`)

// hwName returns the hw:C,D name for a kernel PCM node path, or the path itself.
func hwName(path string) string {
	m := pcmPathPattern.FindStringSubmatch(path)
	if m == nil {
		return path
	}
	return "hw:" + m[1] + "," + m[2]
}

// captureCandidate is a record-capable kernel PCM considered by matchCaptureDevice.
type captureCandidate struct {
	Path      string
	CardTitle string
	Title     string
}

// matchCaptureDevice returns the index of the candidate selected by id, or -1.
// An empty id or "default" selects the first candidate; hw:C,D selects by card
// and device number; anything else matches a path, card title or device title
// case-insensitively.
func matchCaptureDevice(id string, candidates []captureCandidate) int {
	if len(candidates) == 0 {
		return -1
	}
	if id == "" || id == "default" {
		return 0
	}

	if hwNamePattern.MatchString(id) {
		for i, c := range candidates {
			if hwName(c.Path) == id {
				return i
			}
		}
		return -1
	}

	for i, c := range candidates {
		if c.Path == id || strings.EqualFold(c.CardTitle, id) || strings.EqualFold(c.Title, id) {
			return i
		}
	}
	return -1
}

// commonRates are the sample rates tried when the exact rate is rejected.
var commonRates = []int{8000, 11025, 16000, 22050, 32000, 44100, 48000, 88200, 96000, 176400, 192000}

// blockSizes are the buffer sizes in frames tried when the exact block size is rejected.
var blockSizes = func() []int {
	var sizes []int
	for n := 16; n <= 65536; n *= 2 {
		sizes = append(sizes, n)
	}
	return sizes
}()

// nearest returns want followed by the other candidates ordered by distance
// from want, larger first on ties.
func nearest(want int, candidates []int) []int {
	out := []int{want}
	for _, c := range candidates {
		if c != want {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out[1:], func(a, b int) int {
		if c := cmp.Compare(abs(a-want), abs(b-want)); c != 0 {
			return c
		}
		return cmp.Compare(b, a)
	})
	return out
}

// periodCandidates returns hardware period sizes for a ring buffer of the
// given size, preferring two periods per buffer.
func periodCandidates(buffer int) []int {
	var out []int
	for _, n := range []int{buffer / 2, buffer / 4, buffer} {
		if n > 0 && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
