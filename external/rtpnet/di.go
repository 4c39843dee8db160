package rtpnet

import (
	"github.com/foxseedlab/roomcall/internal/config"
	"github.com/foxseedlab/roomcall/internal/network"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (network.Network, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewUDPNetwork(cfg.MulticastInterface)
	})
}
