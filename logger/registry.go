package logger

import "sync"

// named holds loggers installed with Register, keyed by component name.
var named sync.Map

// Register installs l as the logger Get returns for name.
func Register(name string, l *Logger) {
	named.Store(name, l)
}

// Get returns the logger registered for name. Unregistered names get the
// global logger tagged with name as its component, resolved on every call so
// a later Init is picked up.
func Get(name string) *Logger {
	if l, ok := named.Load(name); ok {
		return l.(*Logger)
	}
	return WithComponent(name)
}

// Reset forgets every registered logger.
func Reset() {
	named.Clear()
}
