// Package logx is a thin tag-prefixed wrapper around the standard log
// package. No repository in the retrieval pack pulls in a structured
// logging library, so plain log.Printf with a call-site tag is the
// idiomatic choice here, not a stopgap.
package logx

import "log"

// Tagged returns logging funcs that prefix every line with tag, e.g.
// "[entrance]". Mirrors the call-site tagging the original Rust hub did
// with its logmsg! macro (file:line), minus the macro machinery Go lacks.
func Tagged(tag string) (info, warn, debug func(format string, args ...any)) {
	p := "[" + tag + "] "
	info = func(format string, args ...any) { log.Printf(p+"INFO "+format, args...) }
	warn = func(format string, args ...any) { log.Printf(p+"WARN "+format, args...) }
	debug = func(format string, args ...any) { log.Printf(p+"DEBUG "+format, args...) }
	return
}
