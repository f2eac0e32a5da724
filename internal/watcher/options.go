package watcher

import (
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Options configures a Watcher.
type Options struct {
	// Extensions limits events to these file extensions (".csv"). Empty
	// accepts every file.
	Extensions []string
	// SettleDelay is how long a file must stay unchanged before it is
	// reported. Writers that stream large files trigger many events; only
	// the settled state matters.
	SettleDelay time.Duration
	// IgnorePatterns are filepath.Match patterns tested against base names.
	IgnorePatterns []string
}

func (o *Options) setDefaults() {
	if o.SettleDelay <= 0 {
		o.SettleDelay = 2 * time.Second
	}
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{"*.tmp", "*.part", "*.imported", "*.failed", "~*"}
	}
	for i, ext := range o.Extensions {
		o.Extensions[i] = strings.ToLower(ext)
	}
}

// accepts reports whether path should produce events.
func (o *Options) accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	for _, pattern := range o.IgnorePatterns {
		if matched, err := filepath.Match(pattern, base); err == nil && matched {
			return false
		}
	}
	if len(o.Extensions) == 0 {
		return true
	}
	return slices.Contains(o.Extensions, strings.ToLower(filepath.Ext(base)))
}
