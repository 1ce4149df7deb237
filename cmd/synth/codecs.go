package main

import (
	"github.com/dudk/synth/aiff"
	"github.com/dudk/synth/clip"
	"github.com/dudk/synth/mp3"
	"github.com/dudk/synth/ogg"
	"github.com/dudk/synth/wav"
)

// codecs returns registry of all supported formats.
func codecs() *clip.Registry {
	r := clip.NewRegistry()
	r.RegisterDecoder(wav.Decoder{}, wav.Extensions...)
	r.RegisterEncoder(wav.Encoder{}, wav.Extensions...)
	r.RegisterDecoder(aiff.Decoder{}, aiff.Extensions...)
	r.RegisterEncoder(aiff.Encoder{}, aiff.Extensions...)
	r.RegisterDecoder(mp3.Decoder{}, mp3.Extensions...)
	r.RegisterEncoder(mp3.DefaultEncoder, mp3.Extensions...)
	r.RegisterDecoder(ogg.Decoder{}, ogg.Extensions...)
	return r
}
