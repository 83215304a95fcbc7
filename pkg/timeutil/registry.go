package timeutil

import (
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Extractor maps a string (usually a path) to a timestamp.
type Extractor func(s string) (time.Time, bool)

var (
	registryMu sync.RWMutex
	registry   = map[string]Extractor{
		"bluecoat": bluecoatExtractor,
	}
)

// Register adds or replaces a named extractor. Callers outside this
// package use it to extend the registry without modifying timeutil itself.
func Register(name string, fn Extractor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// Known reports whether name is a registered extractor.
func Known(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// Names returns the registered extractor names, for the CLI's listx
// operation.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// Extract derives a timestamp from s using the named extractor, or the
// default heuristic if name is empty. It returns ok=false (never an error)
// when no timestamp could be derived; callers skip the file.
func Extract(s string, name string) (time.Time, bool) {
	if name == "" {
		return ExtractDefault(s)
	}
	registryMu.RLock()
	fn, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	return fn(s)
}

func isFourDigitYear(tok string) bool {
	if len(tok) != 4 {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return tok >= "1970" && tok <= "2099"
}

// bluecoatExtractor locates a 4-digit year token in the directory chain,
// takes the last 10 digits of the basename stem, concatenates year + those
// digits, and parses the result as YYYYMMDDHHMMSS.
//
// Example: bluecoat/2014/01/31/blueone/SG_main__60131080000.log.gz
// -> year "2014", stem digits "...60131080000" -> last 10 "0131080000"
// -> "20140131080000" -> 2014-01-31 08:00:00.
func bluecoatExtractor(path string) (time.Time, bool) {
	var year string
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if isFourDigitYear(part) {
			year = part
			break
		}
	}
	if year == "" {
		return time.Time{}, false
	}

	base := filepath.Base(path)
	stem := base
	if idx := strings.IndexByte(stem, '.'); idx >= 0 {
		stem = stem[:idx]
	}

	var digits []byte
	for i := 0; i < len(stem); i++ {
		c := stem[i]
		if c >= '0' && c <= '9' {
			digits = append(digits, c)
		}
	}
	if len(digits) < 10 {
		return time.Time{}, false
	}
	last10 := string(digits[len(digits)-10:])

	t, err := time.ParseInLocation("20060102150405", year+last10, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ToLocal(t), true
}
