package present

import (
	"context"

	"sioux/internal/dispatch"
	logx "sioux/pkg/logx"
)

// Fanout shows each presentation on Primary and copies it to Mirrors.
// Mirror errors are logged and dropped; the primary's error is returned.
type Fanout struct {
	Primary dispatch.Presenter
	Mirrors []dispatch.Presenter
	Log     logx.Logger
}

func (f Fanout) Present(ctx context.Context, p dispatch.Presentation) error {
	mirrored := p
	mirrored.Ack = func() {}
	for _, m := range f.Mirrors {
		if m == nil {
			continue
		}
		if err := m.Present(ctx, mirrored); err != nil {
			f.Log.Warn("mirror presentation failed", logx.String("id", p.ID), logx.Err(err))
		}
	}
	primary := f.Primary
	if primary == nil {
		primary = Closer{}
	}
	return primary.Present(ctx, p)
}
