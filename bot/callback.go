package bot

import "strings"

// Callback data is "menu:<action>" or "menu:<action>:<arg>". Telegram caps
// it at 64 bytes.
const (
	callbackPrefix   = "menu:"
	maxCallbackBytes = 64
)

const (
	actList    = "list"
	actRefresh = "refresh"
	actNew     = "new"
	actOpen    = "open"
	actEdit    = "edit"
	actDelete  = "del"  // list row, arg = menu id
	actDDelete = "ddel" // detail screen
	actQR      = "qr"
	actDL      = "dl"
	actName    = "fname"
	actDesc    = "fdesc"
	actActive  = "factive"
	actSave    = "save"
	actCancel  = "cancel"
	actDismiss = "dismiss"
	actYes     = "yes"
	actNo      = "no"
)

func callbackData(action string, arg ...string) string {
	if len(arg) == 0 || arg[0] == "" {
		return callbackPrefix + action
	}
	return callbackPrefix + action + ":" + arg[0]
}

// fitsCallback reports whether the data can be attached to a button.
func fitsCallback(data string) bool {
	return len(data) <= maxCallbackBytes
}

func parseCallback(data string) (action, arg string, ok bool) {
	rest, found := strings.CutPrefix(data, callbackPrefix)
	if !found || rest == "" {
		return "", "", false
	}
	action, arg, _ = strings.Cut(rest, ":")
	return action, arg, action != ""
}
