package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/asticode/go-astiav"
)

const (
	sampleRate = 48000
	channels   = 2
	frameSize  = 960 // samples per channel in 20ms
	frameMs    = 20
)

type OpusPacketHandler func(pkt []byte) error

// Encoder turns 20ms s16le stereo frames into Opus packets with libopus.
type Encoder struct {
	cc     *astiav.CodecContext
	frame  *astiav.Frame
	packet *astiav.Packet
}

func NewEncoder(bitrate int64) (_ *Encoder, err error) {
	codec := astiav.FindEncoderByName("libopus")
	if codec == nil {
		return nil, errors.New("libopus encoder unavailable in linked ffmpeg")
	}

	e := &Encoder{}
	defer func() {
		if err != nil {
			e.Close()
		}
	}()

	if e.cc = astiav.AllocCodecContext(codec); e.cc == nil {
		return nil, errors.New("alloc opus codec context")
	}
	e.cc.SetSampleRate(sampleRate)
	e.cc.SetChannelLayout(astiav.ChannelLayoutStereo)
	e.cc.SetSampleFormat(astiav.SampleFormatS16)
	e.cc.SetBitRate(bitrate)

	opts := astiav.NewDictionary()
	defer opts.Free()
	_ = opts.Set("frame_duration", strconv.Itoa(frameMs), 0)
	_ = opts.Set("application", "audio", 0)
	if err := e.cc.Open(codec, opts); err != nil {
		return nil, fmt.Errorf("open opus encoder: %w", err)
	}

	if e.frame = astiav.AllocFrame(); e.frame == nil {
		return nil, errors.New("alloc encoder frame")
	}
	e.frame.SetSampleRate(sampleRate)
	e.frame.SetChannelLayout(astiav.ChannelLayoutStereo)
	e.frame.SetSampleFormat(astiav.SampleFormatS16)
	e.frame.SetNbSamples(frameSize)
	if err := e.frame.AllocBuffer(0); err != nil {
		return nil, fmt.Errorf("alloc encoder frame buffer: %w", err)
	}

	if e.packet = astiav.AllocPacket(); e.packet == nil {
		return nil, errors.New("alloc encoder packet")
	}

	slog.Debug("opus encoder ready", "bitrate", bitrate)
	return e, nil
}

func (e *Encoder) Close() {
	if e.packet != nil {
		e.packet.Free()
	}
	if e.frame != nil {
		e.frame.Free()
	}
	if e.cc != nil {
		e.cc.Free()
	}
}

// EncodeFrame encodes exactly one frame of FrameBytes() bytes. The slice
// passed to onPacket is reused by the next call.
func (e *Encoder) EncodeFrame(pcm []byte, onPacket OpusPacketHandler) error {
	if len(pcm) != FrameBytes() {
		return fmt.Errorf("pcm frame is %d bytes, want %d", len(pcm), FrameBytes())
	}
	if err := e.frame.Data().SetBytes(pcm, 0); err != nil {
		return fmt.Errorf("fill encoder frame: %w", err)
	}
	if err := e.cc.SendFrame(e.frame); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return e.drain(onPacket)
}

func (e *Encoder) drain(onPacket OpusPacketHandler) error {
	for {
		e.packet.Unref()
		if err := e.cc.ReceivePacket(e.packet); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return nil
			}
			return fmt.Errorf("receive opus packet: %w", err)
		}
		if err := onPacket(e.packet.Data()); err != nil {
			return err
		}
	}
}

// FrameBytes is the size of one 20ms s16le stereo frame.
func FrameBytes() int {
	return frameSize * channels * 2
}
