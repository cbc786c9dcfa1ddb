// SPDX-License-Identifier: EPL-2.0

package renderer

// Message is an out of band control message for HandleMessage.
type Message interface {
	isMessage()
}

// SetVolume sets the output gain, 1 being unity.
type SetVolume float32

// SetAudioSessionID binds the sink to an audio session.
type SetAudioSessionID int

// SetSkipSilenceEnabled toggles silence skipping in the sink.
type SetSkipSilenceEnabled bool

// SetPlaybackSpeed changes the playout speed.
type SetPlaybackSpeed float32

func (SetVolume) isMessage()             {}
func (SetAudioSessionID) isMessage()     {}
func (SetSkipSilenceEnabled) isMessage() {}
func (SetPlaybackSpeed) isMessage()      {}
