package indicator

import (
	"github.com/rbright/spymic/internal/config"
	"github.com/rbright/spymic/internal/hypr"
	"github.com/rbright/spymic/internal/session"
)

const (
	defaultTimeoutMS      = 3000
	defaultErrorTimeoutMS = 1200
)

type style struct {
	icon      hypr.Icon
	color     string
	timeoutMS int
}

func styleFor(note session.Notification, cfg config.IndicatorConfig) style {
	if note.Severity == session.SeverityError {
		timeout := cfg.ErrorTimeoutMS
		if timeout <= 0 {
			timeout = defaultErrorTimeoutMS
		}
		return style{icon: hypr.IconError, color: "rgb(f38ba8)", timeoutMS: timeout}
	}

	timeout := cfg.TimeoutMS
	if timeout <= 0 {
		timeout = defaultTimeoutMS
	}
	switch note.Event {
	case session.EventActivated:
		return style{icon: hypr.IconOK, color: "rgb(a6e3a1)", timeoutMS: timeout}
	default:
		return style{icon: hypr.IconInfo, color: hypr.DefaultColor, timeoutMS: timeout}
	}
}
