package users

import (
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// Keys of the messages carried by the flash between requests
const (
	FlashSuccess = "success_message"
	FlashError   = "error_message"
	FlashAlert   = "alert_message"

	flashLocalsKey = "flash"
)

// Flash messages keyed by kind
type Flash map[string]string

// Success returns the success message
func (f Flash) Success() string { return f[FlashSuccess] }

// Error returns the error message
func (f Flash) Error() string { return f[FlashError] }

// Alert returns the alert message
func (f Flash) Alert() string { return f[FlashAlert] }

// GetFlash returns the messages the flash middleware loaded for this
// request
func GetFlash(c router.Context) Flash {
	out := Flash{}
	var data map[string]any
	switch v := c.Locals(flashLocalsKey).(type) {
	case router.ViewContext:
		data = v
	case map[string]any:
		data = v
	case Flash:
		return v
	default:
		return out
	}

	for _, key := range []string{FlashSuccess, FlashError, FlashAlert} {
		if msg, ok := data[key].(string); ok && msg != "" {
			out[key] = msg
		}
	}
	return out
}

func flashSuccess(c router.Context, message string) router.Context {
	return flash.WithSuccess(c, router.ViewContext{FlashSuccess: message})
}

func flashError(c router.Context, message string) router.Context {
	return flash.WithError(c, router.ViewContext{FlashError: message})
}

func flashAlert(c router.Context, message string) router.Context {
	return flash.WithError(c, router.ViewContext{FlashAlert: message})
}
