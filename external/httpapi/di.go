package httpapi

import (
	"github.com/foxseedlab/roomcall/internal/config"
	"github.com/foxseedlab/roomcall/internal/receiver"
	"github.com/foxseedlab/roomcall/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		pipeline := do.MustInvoke[*receiver.Pipeline](i)
		history := do.MustInvoke[repository.Repository](i)
		return NewServer(cfg.ControlAddr, NewHandler(cfg, pipeline, history).NewRouter()), nil
	})
}
