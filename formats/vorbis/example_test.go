// SPDX-License-Identifier: EPL-2.0

package vorbis_test

import (
	"fmt"

	"github.com/ik5/audrender/formats/vorbis"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/source"
)

// Example probes an Ogg Vorbis file.
func Example() {
	info, err := vorbis.Probe("testdata/test.ogg")
	if err != nil {
		fmt.Printf("Probe error: %v\n", err)
		return
	}

	fmt.Printf("%d Hz, %d channels, %d frames\n",
		info.Format.SampleRate, info.Format.ChannelCount, info.Frames)
	// Output: 44100 Hz, 1 channels, 44100 frames
}

// ExampleParseCodecPrivate splits Matroska CodecPrivate into Vorbis headers.
func ExampleParseCodecPrivate() {
	blob := vorbis.LaceHeaders([][]byte{{1, 2, 3}, {4}, {5, 6}})

	headers, err := vorbis.ParseCodecPrivate(blob)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(len(headers), headers[2])
	// Output: 3 [5 6]
}

// ExamplePacketFamily_SupportsFormat shows that packets need their headers.
func ExamplePacketFamily_SupportsFormat() {
	f := media.NewAudioFormat(media.MimeAudioVorbis, 2, 48000)

	fmt.Println(vorbis.PacketFamily{}.SupportsFormat(f))
	// Output: unsupported subtype
}

// Example_registry registers the Ogg extensions.
func Example_registry() {
	r := source.NewRegistry()
	vorbis.Register(r)

	fmt.Println(r.Extensions())
	// Output: [oga ogg]
}
