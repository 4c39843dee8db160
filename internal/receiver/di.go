package receiver

import (
	"github.com/foxseedlab/roomcall/internal/audio"
	"github.com/foxseedlab/roomcall/internal/config"
	"github.com/foxseedlab/roomcall/internal/network"
	"github.com/foxseedlab/roomcall/internal/notify"
	"github.com/foxseedlab/roomcall/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Pipeline, error) {
		cfg := do.MustInvoke[*config.Config](i)
		nw := do.MustInvoke[network.Network](i)
		mixer := do.MustInvoke[audio.Mixer](i)
		sink := do.MustInvoke[audio.Sink](i)
		newDecoder := do.MustInvoke[audio.DecoderFactory](i)
		repo := do.MustInvoke[repository.Repository](i)
		events := do.MustInvoke[notify.Notifier](i)
		return NewPipeline(cfg, nw, mixer, sink, newDecoder, repo, events), nil
	})
}
