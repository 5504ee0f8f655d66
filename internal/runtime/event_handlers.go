package runtime

import (
	"context"

	errspkg "github.com/drblury/cdpflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/cdpflow/internal/runtime/logging"
	"github.com/drblury/cdpflow/internal/runtime/protocol"
)

// Names of the handlers every connection installs.
const (
	HandlerProxyConnectionFailed = "proxy_connection_failed"
	HandlerNetErrors             = "net_errors"
	HandlerTargetCrashed         = "target_crashed"
	HandlerGenericError          = "generic_error"
	HandlerConsoleAPI            = "console_api"
	HandlerJavaScriptDialog      = "javascript_dialog"
)

const proxyConnectionFailedText = "net::ERR_PROXY_CONNECTION_FAILED"

// DialogHandler decides how a JavaScript dialog is answered. kind is
// "alert", "confirm", "prompt" or "beforeunload".
type DialogHandler func(kind, message string) (accept bool, promptText string)

// AcceptAllDialogs accepts every dialog with an empty prompt text.
func AcceptAllDialogs(kind, message string) (bool, string) {
	return true, ""
}

// DismissAllDialogs dismisses every dialog.
func DismissAllDialogs(kind, message string) (bool, string) {
	return false, ""
}

func (c *Connection) setDefaultEventHandlers() {
	c.handlers.Register(HandlerProxyConnectionFailed, proxyConnectionFailedHandler)
	c.handlers.Register(HandlerNetErrors, c.netErrorsHandler)
	c.handlers.Register(HandlerTargetCrashed, targetCrashedHandler)
	c.handlers.Register(HandlerGenericError, c.genericErrorHandler)
	c.handlers.Register(HandlerConsoleAPI, c.consoleAPIHandler)
	c.handlers.Register(HandlerJavaScriptDialog, c.javascriptDialogHandler)
}

func proxyConnectionFailedHandler(msg protocol.Message) error {
	if msg.Method != protocol.MethodLoadingFailed {
		return nil
	}
	if msg.StringParam("errorText") == proxyConnectionFailedText {
		return errspkg.ErrProxyConnectionFailed
	}
	return nil
}

func (c *Connection) netErrorsHandler(msg protocol.Message) error {
	if msg.Method != protocol.MethodLoadingFailed {
		return nil
	}
	errorText := msg.StringParam("errorText")
	if errorText == proxyConnectionFailedText {
		return nil
	}
	c.debug.Debug("Network request failed", loggingpkg.LogFields{
		"request_id": msg.StringParam("requestId"),
		"type":       msg.StringParam("type"),
		"error_text": errorText,
	})
	return nil
}

func targetCrashedHandler(msg protocol.Message) error {
	if msg.Method == protocol.MethodTargetCrashed {
		return errspkg.ErrTargetCrashed
	}
	return nil
}

func (c *Connection) genericErrorHandler(msg protocol.Message) error {
	if msg.Error == nil {
		return nil
	}
	fields := loggingpkg.LogFields{
		"code":    msg.Error.Code,
		"message": msg.Error.Message,
	}
	if msg.ID != nil {
		fields["id"] = *msg.ID
	}
	c.debug.Debug("Received error response", fields)
	return nil
}

func (c *Connection) consoleAPIHandler(msg protocol.Message) error {
	if msg.Method != protocol.MethodConsoleAPICalled || msg.Params == nil {
		return nil
	}
	args, _ := msg.Params["args"].([]any)
	c.console.Push(ConsoleMessage{
		Type: msg.StringParam("type"),
		Args: args,
	})
	return nil
}

// javascriptDialogHandler answers an opening dialog. The answer is sent
// without waiting: the response can only be read by this same goroutine.
func (c *Connection) javascriptDialogHandler(msg protocol.Message) error {
	if msg.Method != protocol.MethodJavaScriptDialogOpen {
		return nil
	}
	kind := msg.StringParam("type")
	text := msg.StringParam("message")
	accept, promptText := c.dialogHandler()(kind, text)

	c.debug.Debug("Answering JavaScript dialog", loggingpkg.LogFields{
		"type":   kind,
		"accept": accept,
	})
	_, err := c.Send(context.Background(), protocol.MethodHandleJavaScriptDialog, map[string]any{
		"accept":     accept,
		"promptText": promptText,
	})
	return err
}
