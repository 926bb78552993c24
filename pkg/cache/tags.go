package cache

import (
	"strings"

	"github.com/Sternrassler/cover/pkg/mvc"
)

// Tag prefixes and the session tag prefix.
const (
	TagControllerObject = "controllerObject%"
	TagFormat           = "format%"
	TagAction           = "action%"
	TagControllerAction = "controllerAction%"
	TagSession          = "session-"
)

// ControllerTag returns the tag flushed to drop every response of a
// controller. Namespace separators are replaced by underscores.
func ControllerTag(controllerObjectName string) string {
	return TagControllerObject + normalizeController(controllerObjectName)
}

// Tags returns the invalidation tags for responses to req. The result only
// depends on request identity and session, never on response state.
func Tags(req *mvc.Request, session *mvc.Session) []string {
	controller := normalizeController(req.ControllerObjectName)
	action := req.ControllerActionName

	tags := []string{
		TagControllerObject + controller,
		TagFormat + req.Format,
		TagAction + action,
		TagControllerAction + controller + "-" + action,
	}
	if session.IsStarted() {
		tags = append(tags, TagSession+session.ID)
	}

	for _, extra := range req.CacheTags() {
		if extra == "" || contains(tags, extra) {
			continue
		}
		tags = append(tags, extra)
	}
	return tags
}

func normalizeController(name string) string {
	return strings.ReplaceAll(name, `\`, "_")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
