// SPDX-License-Identifier: EPL-2.0

package webm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/source"
	"github.com/remko/go-mkvparse"
)

// Matroska element ids used by the extractor.
const (
	idInfo              mkvparse.ElementID = 0x1549A966
	idTimecodeScale     mkvparse.ElementID = 0x2AD7B1
	idDuration          mkvparse.ElementID = 0x4489
	idTracks            mkvparse.ElementID = 0x1654AE6B
	idTrackEntry        mkvparse.ElementID = 0xAE
	idTrackNumber       mkvparse.ElementID = 0xD7
	idTrackType         mkvparse.ElementID = 0x83
	idCodecID           mkvparse.ElementID = 0x86
	idCodecPrivate      mkvparse.ElementID = 0x63A2
	idCodecDelay        mkvparse.ElementID = 0x56AA
	idDefaultDuration   mkvparse.ElementID = 0x23E383
	idSamplingFrequency mkvparse.ElementID = 0xB5
	idChannels          mkvparse.ElementID = 0x9F
	idBitDepth          mkvparse.ElementID = 0x6264
	idContentEncryption mkvparse.ElementID = 0x5035
	idContentEncKeyID   mkvparse.ElementID = 0x47E2
	idCluster           mkvparse.ElementID = 0x1F43B675
	idTimecode          mkvparse.ElementID = 0xE7
	idSimpleBlock       mkvparse.ElementID = 0xA3
	idBlock             mkvparse.ElementID = 0xA1
	idCues              mkvparse.ElementID = 0x1C53BB6B
	idTags              mkvparse.ElementID = 0x1254C367
	idChapters          mkvparse.ElementID = 0x1043A770
	idAttachments       mkvparse.ElementID = 0x1941A469
)

const (
	defaultTimecodeScale = 1_000_000
	readBufferSize       = 64 * 1024
)

// Info describes the audio track of a Matroska file.
type Info struct {
	Format *media.Format
	// Tracks is the number of tracks in the file.
	Tracks int
}

// frameFunc receives one frame of the selected track.
type frameFunc func(data []byte, timeUs int64) error

// matroska is a mkvparse.Handler collecting the track list and handing the
// frames of one track to onFrame.
type matroska struct {
	scale      int64
	durationTC float64
	tracks     []*track
	cur        *track

	tracksDone bool
	selected   *track
	// onTracks runs once the track list was read. Returning errStop ends
	// parsing early.
	onTracks func(m *matroska) error
	onFrame  frameFunc

	ctx       context.Context
	clusterTC int64

	// err holds the first error of a leaf handler. mkvparse drops what
	// HandleBinary returns, so it is reported from the next master element
	// and after Parse.
	err error
}

var errStop = errors.New("webm: stop parsing")

func newMatroska(ctx context.Context) *matroska {
	return &matroska{ctx: ctx, scale: defaultTimecodeScale}
}

// parse runs mkvparse over r and returns the first handler error.
func (m *matroska) parse(r io.Reader) error {
	err := mkvparse.Parse(r, m)
	if m.err != nil {
		return m.err
	}
	return err
}

func (m *matroska) HandleMasterBegin(id mkvparse.ElementID, _ mkvparse.ElementInfo) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	switch id {
	case idTrackEntry:
		m.cur = &track{}
	case idContentEncryption:
		if m.cur != nil {
			m.cur.encrypted = true
		}
	case idCluster:
		if err := m.ctx.Err(); err != nil {
			return false, err
		}
		if !m.tracksDone {
			return false, ErrNotMatroska
		}
	case idCues, idTags, idChapters, idAttachments:
		return false, nil
	}
	return true, nil
}

func (m *matroska) HandleMasterEnd(id mkvparse.ElementID, _ mkvparse.ElementInfo) error {
	if m.err != nil {
		return m.err
	}
	switch id {
	case idTrackEntry:
		if m.cur != nil {
			m.tracks = append(m.tracks, m.cur)
			m.cur = nil
		}
	case idTracks:
		m.tracksDone = true
		for _, t := range m.tracks {
			if t.isAudio() {
				m.selected = t
				break
			}
		}
		if m.onTracks != nil {
			return m.onTracks(m)
		}
	}
	return nil
}

func (m *matroska) HandleString(id mkvparse.ElementID, value string, _ mkvparse.ElementInfo) error {
	if id == idCodecID && m.cur != nil {
		m.cur.codecID = value
	}
	return nil
}

func (m *matroska) HandleInteger(id mkvparse.ElementID, value int64, _ mkvparse.ElementInfo) error {
	switch id {
	case idTimecodeScale:
		if value > 0 {
			m.scale = value
		}
	case idTimecode:
		m.clusterTC = value
	}

	t := m.cur
	if t == nil {
		return nil
	}
	switch id {
	case idTrackNumber:
		t.number = uint64(value)
	case idTrackType:
		t.trackType = value
	case idChannels:
		t.channels = int(value)
	case idBitDepth:
		t.bitDepth = int(value)
	case idDefaultDuration:
		t.defaultDurationNs = value
	case idCodecDelay:
		t.codecDelayNs = value
	}
	return nil
}

func (m *matroska) HandleFloat(id mkvparse.ElementID, value float64, _ mkvparse.ElementInfo) error {
	switch id {
	case idDuration:
		m.durationTC = value
	case idSamplingFrequency:
		if m.cur != nil {
			m.cur.sampleRate = value
		}
	}
	return nil
}

func (m *matroska) HandleDate(mkvparse.ElementID, time.Time, mkvparse.ElementInfo) error {
	return nil
}

func (m *matroska) HandleBinary(id mkvparse.ElementID, value []byte, _ mkvparse.ElementInfo) error {
	switch id {
	case idCodecPrivate:
		if m.cur != nil {
			m.cur.codecPrivate = append([]byte(nil), value...)
		}
	case idContentEncKeyID:
		if m.cur != nil {
			m.cur.keyID = append([]byte(nil), value...)
		}
	case idSimpleBlock, idBlock:
		if m.err != nil {
			return m.err
		}
		if err := m.handleBlock(value); err != nil {
			m.err = err
			return err
		}
	}
	return nil
}

func (m *matroska) handleBlock(data []byte) error {
	if m.selected == nil || m.onFrame == nil {
		return nil
	}
	if err := m.ctx.Err(); err != nil {
		return err
	}

	b, err := parseBlock(data)
	if err != nil {
		return err
	}
	if b.track != m.selected.number {
		return nil
	}

	timeUs := m.toUs(m.clusterTC + int64(b.relative))
	for i, frame := range b.frames {
		frameUs := timeUs + int64(i)*m.selected.defaultDurationNs/1000
		if err := m.onFrame(append([]byte(nil), frame...), frameUs); err != nil {
			return err
		}
	}
	return nil
}

// toUs converts a timecode in TimecodeScale units to microseconds.
func (m *matroska) toUs(tc int64) int64 {
	return tc * m.scale / 1000
}

func (m *matroska) durationUs() int64 {
	if m.durationTC <= 0 {
		return media.TimeUnset
	}
	return int64(m.durationTC * float64(m.scale) / 1000)
}

// Probe reads the track list of the Matroska file at path and returns the
// format of its first audio track.
func Probe(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var info *Info
	m := newMatroska(context.Background())
	m.onTracks = func(m *matroska) error {
		if m.selected == nil {
			return source.ErrNoAudioTrack
		}
		format, err := m.selected.format()
		if err != nil {
			return err
		}
		format.DurationUs = m.durationUs()
		info = &Info{Format: format, Tracks: len(m.tracks)}
		return errStop
	}

	err = m.parse(bufio.NewReaderSize(f, readBufferSize))
	if info != nil {
		return info, nil
	}
	switch {
	case err == nil:
		return nil, ErrNotMatroska
	case errors.Is(err, source.ErrNoAudioTrack), errors.Is(err, ErrInvalidTrack), errors.Is(err, ErrInvalidKeyID):
		return nil, err
	case !m.tracksDone:
		return nil, fmt.Errorf("%w: %w", ErrNotMatroska, err)
	default:
		return nil, err
	}
}

// Open opens the Matroska or WebM file at path as a stream of the frames of
// its first audio track. Frames of encrypted tracks carry their CryptoInfo.
func Open(path string, opts source.Options) (source.SampleStream, error) {
	info, err := Probe(path)
	if err != nil {
		return nil, err
	}
	return source.NewQueue(path, newLoader(path, info.Format), opts.QueueOptions()...), nil
}

// newLoader returns a Loader that reparses path from its start. Frames more
// than one frame before positionUs are dropped; the queue marks the rest
// decode-only up to positionUs.
func newLoader(path string, format *media.Format) source.Loader {
	return func(ctx context.Context, positionUs int64, out source.Output) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()

		var (
			kid     media.KeyID
			pending *source.Sample
		)
		if format.DrmInitData != nil {
			kid = format.DrmInitData.KeyIDs()[0]
		}

		m := newMatroska(ctx)
		m.onTracks = func(m *matroska) error {
			if m.selected == nil {
				return source.ErrNoAudioTrack
			}
			return out.Format(format)
		}
		m.onFrame = func(data []byte, timeUs int64) error {
			// Every audio frame is a sync sample.
			s := source.Sample{Data: data, TimeUs: timeUs, Flags: media.FlagKeyFrame}
			if m.selected.encrypted {
				payload, info, encrypted, err := parseEncryptedFrame(data, kid)
				if err != nil {
					return err
				}
				s.Data = payload
				if encrypted {
					s.Flags |= media.FlagEncrypted
					s.CryptoInfo = info
				}
			}

			// Keep the frame before the seek position, Vorbis needs it to
			// prime its overlap window.
			if timeUs < positionUs {
				pending = &s
				return nil
			}
			if pending != nil {
				if err := out.Sample(*pending); err != nil {
					return err
				}
				pending = nil
			}
			return out.Sample(s)
		}

		if err := m.parse(bufio.NewReaderSize(f, readBufferSize)); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if pending != nil {
			return out.Sample(*pending)
		}
		return nil
	}
}

// Register adds the Matroska extractor to r.
func Register(r *source.Registry) {
	for _, ext := range []string{"webm", "weba", "mka", "mkv"} {
		r.Register(ext, Open)
	}
}
