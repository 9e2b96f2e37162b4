package loggers

import (
	"runtime"
	"strings"
)

// callerName derives a logger name from the function that called into this
// package, in the form "pkg.Func" ("pkg.Type.Method" for methods).
func callerName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	name := fn.Name()
	// Trim the import path: "host/org/repo/pkg.Func" -> "pkg.Func".
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.ReplaceAll(name, "(*", "")
	name = strings.ReplaceAll(name, ")", "")
	return name
}
