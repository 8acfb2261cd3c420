//go:build linux

package audio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yobert/alsa"
	"golang.org/x/sys/unix"
)

func init() {
	Register("alsa", func() Driver { return alsaDriver{} })
}

// alsaDriver talks to kernel PCM nodes under /dev/snd directly.
type alsaDriver struct{}

func (alsaDriver) Name() string { return "alsa" }

func (alsaDriver) Devices() ([]Device, error) {
	cards, err := alsa.OpenCards()
	if err != nil {
		return nil, fmt.Errorf("open sound cards: %w", err)
	}
	defer alsa.CloseCards(cards)

	devices := []Device{}
	for _, card := range cards {
		pcms, err := card.Devices()
		if err != nil {
			return nil, fmt.Errorf("list devices of %s: %w", card.Title, err)
		}
		for _, pcm := range pcms {
			if pcm.Type != alsa.PCM {
				continue
			}
			devices = append(devices, Device{
				Name:        hwName(pcm.Path),
				Description: card.Title + ", " + pcm.Title,
				Direction:   directionOf(pcm.Play, pcm.Record),
			})
		}
	}
	return devices, nil
}

func (alsaDriver) Open(device string) (PCM, error) {
	if isPluginName(device) {
		return nil, fmt.Errorf("%w: %q is an ALSA plugin device, use the arecord driver", ErrNoAudioDevice, device)
	}

	cards, err := alsa.OpenCards()
	if err != nil {
		return nil, fmt.Errorf("open sound cards: %w", err)
	}
	defer alsa.CloseCards(cards)

	var (
		records    []*alsa.Device
		candidates []captureCandidate
	)
	for _, card := range cards {
		pcms, err := card.Devices()
		if err != nil {
			return nil, fmt.Errorf("list devices of %s: %w", card.Title, err)
		}
		for _, pcm := range pcms {
			if pcm.Type != alsa.PCM || !pcm.Record {
				continue
			}
			records = append(records, pcm)
			candidates = append(candidates, captureCandidate{
				Path:      pcm.Path,
				CardTitle: card.Title,
				Title:     pcm.Title,
			})
		}
	}

	i := matchCaptureDevice(device, candidates)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoAudioDevice, device)
	}

	dev := records[i]
	if err := dev.Open(); err != nil {
		return nil, fmt.Errorf("open %s: %w", dev.Path, err)
	}
	return &alsaPCM{dev: dev}, nil
}

// alsaPCM is an open kernel capture node. Access is always RW interleaved.
//
// The ring buffer holds exactly one frame block, so a single read reaches the
// start threshold yobert/alsa sets in Prepare. The negotiated values are kept
// so Discard can reopen the node and apply them again; the kernel rejects new
// hardware parameters on a running stream.
type alsaPCM struct {
	dev      *alsa.Device
	channels int
	rate     int
	buffer   int
	period   int

	// resetErr is set when Discard could not reopen the node.
	resetErr error
}

func (p *alsaPCM) SetAccess() error { return nil }

func (p *alsaPCM) SetFormat() error {
	got, err := p.dev.NegotiateFormat(alsa.S16_LE)
	if err != nil {
		return err
	}
	if got != alsa.S16_LE {
		return fmt.Errorf("device offered %v", got)
	}
	return nil
}

func (p *alsaPCM) SetChannels(n int) error {
	got, err := p.dev.NegotiateChannels(n)
	if err != nil {
		return err
	}
	if got != n {
		return fmt.Errorf("device offered %d channels", got)
	}
	p.channels = n
	return nil
}

// SetRateNear tries the requested rate first, then common rates by distance.
func (p *alsaPCM) SetRateNear(rate int) (int, error) {
	got, err := p.dev.NegotiateRate(nearest(rate, commonRates)...)
	if err != nil {
		return 0, err
	}
	p.rate = got
	return got, nil
}

// SetPeriodSizeNear sizes the ring buffer to the frame block and splits it
// into hardware periods. It returns the block size.
func (p *alsaPCM) SetPeriodSizeNear(frames int) (int, error) {
	buffer, err := p.dev.NegotiateBufferSize(nearest(frames, blockSizes)...)
	if err != nil {
		return 0, fmt.Errorf("buffer size: %w", err)
	}
	period, err := p.dev.NegotiatePeriodSize(periodCandidates(buffer)...)
	if err != nil {
		return 0, fmt.Errorf("period size for %d frame buffer: %w", buffer, err)
	}
	p.buffer = buffer
	p.period = period
	return buffer, nil
}

func (p *alsaPCM) Commit() error {
	return classifyErrno(p.dev.Prepare())
}

func (p *alsaPCM) Read(buf []byte) (int, error) {
	if p.resetErr != nil {
		return 0, fmt.Errorf("%w: reopen failed: %w", ErrDisconnected, p.resetErr)
	}
	if err := p.dev.Read(buf); err != nil {
		return 0, classifyErrno(err)
	}
	return len(buf) / (p.channels * BytesPerSample), nil
}

func (p *alsaPCM) Avail() (int, error) {
	return 0, errors.ErrUnsupported
}

// Discard closes and reopens the node with the negotiated parameters, so the
// next read starts a fresh window.
func (p *alsaPCM) Discard() error {
	p.dev.Close()
	if err := p.reopen(); err != nil {
		p.resetErr = classifyErrno(err)
		return p.resetErr
	}
	return nil
}

func (p *alsaPCM) reopen() error {
	if err := p.dev.Open(); err != nil {
		return err
	}
	if _, err := p.dev.NegotiateFormat(alsa.S16_LE); err != nil {
		return err
	}
	if _, err := p.dev.NegotiateChannels(p.channels); err != nil {
		return err
	}
	if _, err := p.dev.NegotiateRate(p.rate); err != nil {
		return err
	}
	if _, err := p.dev.NegotiateBufferSize(p.buffer); err != nil {
		return err
	}
	if _, err := p.dev.NegotiatePeriodSize(p.period); err != nil {
		return err
	}
	return p.dev.Prepare()
}

func (p *alsaPCM) Drain() error { return nil }

func (p *alsaPCM) Close() error {
	p.dev.Close()
	return nil
}

// classifyErrno wraps kernel xrun and hot-unplug errnos in the capture sentinels.
// yobert/alsa formats the errno into the message instead of wrapping it.
func classifyErrno(err error) error {
	switch {
	case err == nil:
		return nil
	case hasErrno(err, unix.EPIPE):
		return fmt.Errorf("%w: %w", ErrOverrun, err)
	case hasErrno(err, unix.ENODEV), hasErrno(err, unix.ESHUTDOWN), hasErrno(err, unix.EBADFD):
		return fmt.Errorf("%w: %w", ErrDisconnected, err)
	default:
		return err
	}
}

func hasErrno(err error, errno unix.Errno) bool {
	return errors.Is(err, errno) || strings.HasSuffix(err.Error(), ": "+errno.Error())
}
