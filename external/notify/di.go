package notify

import (
	"github.com/foxseedlab/roomcall/internal/config"
	"github.com/foxseedlab/roomcall/internal/notify"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (notify.Notifier, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewHTTPNotifier(c.EventWebhookURL), nil
	})
}
