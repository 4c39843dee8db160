package audio

import (
	"github.com/foxseedlab/roomcall/internal/audio"
	"github.com/foxseedlab/roomcall/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.ProvideValue(injector, audio.MixerFactory(NewPCMMixer))
	do.ProvideValue(injector, audio.DecoderFactory(NewDecoder))
	do.Provide(injector, func(i do.Injector) (audio.Mixer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		newMixer := do.MustInvoke[audio.MixerFactory](i)
		return newMixer(cfg.PayloadFormat().PCMFormat(), cfg.MixerMaxInputs), nil
	})
	do.Provide(injector, func(i do.Injector) (audio.Sink, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return OpenSink(cfg.OutputPath)
	})
}
