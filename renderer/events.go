// SPDX-License-Identifier: EPL-2.0

package renderer

import (
	"time"

	"github.com/ik5/audrender/media"
)

// Counters are the renderer's buffer statistics. Every buffer that is dropped
// or skipped is counted.
type Counters struct {
	DecoderInitCount          int
	DecoderReleaseCount       int
	QueuedInputBufferCount    int
	SkippedInputBufferCount   int
	RenderedOutputBufferCount int
	SkippedOutputBufferCount  int
	DroppedBufferCount        int
}

// EventListener receives renderer events on the goroutine driving the
// renderer.
type EventListener interface {
	OnEnabled(c Counters)
	OnDecoderInitialized(name string, initializationDuration time.Duration)
	OnInputFormatChanged(f *media.Format)
	OnAudioSessionID(id int)
	OnUnderrun(bufferSize int, bufferSizeMs int64, elapsedSinceLastFeedMs int64)
	OnSkipSilenceEnabledChanged(enabled bool)
	OnDisabled(c Counters)
}

// BaseEventListener implements EventListener with no-ops. Embed it to handle
// a subset of events.
type BaseEventListener struct{}

func (BaseEventListener) OnEnabled(Counters)                         {}
func (BaseEventListener) OnDecoderInitialized(string, time.Duration) {}
func (BaseEventListener) OnInputFormatChanged(*media.Format)         {}
func (BaseEventListener) OnAudioSessionID(int)                       {}
func (BaseEventListener) OnUnderrun(int, int64, int64)               {}
func (BaseEventListener) OnSkipSilenceEnabledChanged(bool)           {}
func (BaseEventListener) OnDisabled(Counters)                        {}
