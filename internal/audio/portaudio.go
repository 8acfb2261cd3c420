//go:build portaudio

package audio

import (
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

func init() {
	Register("portaudio", func() Driver { return portAudioDriver{} })
}

// portAudioDriver captures through PortAudio's blocking stream API.
type portAudioDriver struct{}

func (portAudioDriver) Name() string { return "portaudio" }

func (portAudioDriver) Devices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, d := range infos {
		desc := d.Name
		if d.HostApi != nil {
			desc = d.HostApi.Name + ", " + d.Name
		}
		devices = append(devices, Device{
			Name:        d.Name,
			Description: desc,
			Direction:   directionOf(d.MaxOutputChannels > 0, d.MaxInputChannels > 0),
		})
	}
	return devices, nil
}

func (portAudioDriver) Open(device string) (PCM, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	info, err := findPortAudioDevice(device)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	return &portAudioPCM{info: info}, nil
}

func findPortAudioDevice(device string) (*portaudio.DeviceInfo, error) {
	if device == "" || device == "default" {
		info, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return info, nil
	}

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range infos {
		if d.Name == device && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoAudioDevice, device)
}

// portAudioPCM stages parameters until Commit opens and starts the stream.
type portAudioPCM struct {
	info     *portaudio.DeviceInfo
	channels int
	rate     int
	period   int

	stream *portaudio.Stream
	buf    []int16
}

func (p *portAudioPCM) SetAccess() error { return nil }

func (p *portAudioPCM) SetFormat() error { return nil }

func (p *portAudioPCM) SetChannels(n int) error {
	if n > p.info.MaxInputChannels {
		return fmt.Errorf("device has %d input channels", p.info.MaxInputChannels)
	}
	p.channels = n
	return nil
}

func (p *portAudioPCM) SetRateNear(rate int) (int, error) {
	p.rate = rate
	return rate, nil
}

func (p *portAudioPCM) SetPeriodSizeNear(frames int) (int, error) {
	p.period = frames
	return frames, nil
}

func (p *portAudioPCM) Commit() error {
	p.buf = make([]int16, p.period*p.channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   p.info,
			Channels: p.channels,
			Latency:  p.info.DefaultLowInputLatency,
		},
		SampleRate:      float64(p.rate),
		FramesPerBuffer: p.period,
	}, p.buf)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	p.stream = stream
	return nil
}

func (p *portAudioPCM) Read(buf []byte) (int, error) {
	err := p.stream.Read()
	if err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return 0, err
	}

	encodeS16LE(buf, p.buf)
	if err != nil {
		return p.period, fmt.Errorf("%w: %w", ErrOverrun, err)
	}
	return p.period, nil
}

func (p *portAudioPCM) Avail() (int, error) {
	return p.stream.AvailableToRead()
}

// Discard reads and drops whole buffers until less than one period is pending.
func (p *portAudioPCM) Discard() error {
	n, err := p.stream.AvailableToRead()
	if err != nil {
		return err
	}
	for ; n >= p.period; n -= p.period {
		if err := p.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			return err
		}
	}
	return nil
}

func (p *portAudioPCM) Drain() error {
	if p.stream == nil {
		return nil
	}
	return p.stream.Stop()
}

func (p *portAudioPCM) Close() error {
	var err error
	if p.stream != nil {
		err = p.stream.Close()
	}
	if termErr := portaudio.Terminate(); termErr != nil && err == nil {
		err = termErr
	}
	return err
}
