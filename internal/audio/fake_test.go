package audio

import "errors"

func init() {
	Register("fake", func() Driver { return &fakeDriver{pcm: &fakePCM{}} })
}

// fakeDriver hands out a single scripted fakePCM.
type fakeDriver struct {
	pcm        *fakePCM
	openErr    error
	devices    []Device
	devicesErr error

	opened []string
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Open(device string) (PCM, error) {
	d.opened = append(d.opened, device)
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.pcm, nil
}

func (d *fakeDriver) Devices() ([]Device, error) {
	return d.devices, d.devicesErr
}

// fakePCM records calls and replays queued sample blocks.
type fakePCM struct {
	// failAt names the configuration step that fails with errStep.
	failAt string
	// snapRate and snapPeriod adjust requested values; nil echoes the request.
	snapRate   func(int) int
	snapPeriod func(int) int

	blocks  [][]int16
	readErr error

	avail    int
	availErr error

	discardErr error
	drainErr   error
	closeErr   error

	channels  int
	steps     []string
	reads     int
	discards  int
	drains    int
	closes    int
	committed bool
}

var errStep = errors.New("step rejected")

func (p *fakePCM) step(name string) error {
	p.steps = append(p.steps, name)
	if p.failAt == name {
		return errStep
	}
	return nil
}

func (p *fakePCM) SetAccess() error { return p.step("access") }

func (p *fakePCM) SetFormat() error { return p.step("format") }

func (p *fakePCM) SetChannels(n int) error {
	if err := p.step("channels"); err != nil {
		return err
	}
	p.channels = n
	return nil
}

func (p *fakePCM) SetRateNear(rate int) (int, error) {
	if err := p.step("rate"); err != nil {
		return 0, err
	}
	if p.snapRate != nil {
		return p.snapRate(rate), nil
	}
	return rate, nil
}

func (p *fakePCM) SetPeriodSizeNear(frames int) (int, error) {
	if err := p.step("period"); err != nil {
		return 0, err
	}
	if p.snapPeriod != nil {
		return p.snapPeriod(frames), nil
	}
	return frames, nil
}

func (p *fakePCM) Commit() error {
	if err := p.step("commit"); err != nil {
		return err
	}
	p.committed = true
	return nil
}

// Read returns the next queued block, or a full block of silence.
func (p *fakePCM) Read(buf []byte) (int, error) {
	p.reads++
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.blocks) == 0 {
		clear(buf)
		return len(buf) / (p.channels * BytesPerSample), nil
	}
	block := p.blocks[0]
	p.blocks = p.blocks[1:]
	encodeS16LE(buf, block)
	return len(block) / p.channels, nil
}

func (p *fakePCM) Avail() (int, error) { return p.avail, p.availErr }

func (p *fakePCM) Discard() error {
	p.discards++
	return p.discardErr
}

func (p *fakePCM) Drain() error {
	p.drains++
	return p.drainErr
}

func (p *fakePCM) Close() error {
	p.closes++
	return p.closeErr
}
