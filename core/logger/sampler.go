package logger

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

const defaultDebugSample = "1/50"

// ratioSampler lets through the first keep events of every window of
// size every. A zero ratio lets everything through.
type ratioSampler struct {
	mu    sync.Mutex
	keep  int
	every int
	seen  int
}

func (s *ratioSampler) set(keep, every int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keep <= 0 || every <= 0 {
		keep, every = 0, 0
	}
	s.keep, s.every, s.seen = min(keep, every), every, 0
}

func (s *ratioSampler) allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.every == 0 {
		return true
	}
	s.seen = s.seen%s.every + 1
	return s.seen <= s.keep
}

// parseSampleRatio reads "k/n" or "n" (short for "1/n"). "0" disables
// sampling. Anything unreadable falls back to the default ratio.
func parseSampleRatio(spec string) (keep, every int) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = defaultDebugSample
	}
	if spec == "0" {
		return 0, 0
	}
	k, n, found := strings.Cut(spec, "/")
	if !found {
		k, n = "1", spec
	}
	keep, err1 := strconv.Atoi(strings.TrimSpace(k))
	every, err2 := strconv.Atoi(strings.TrimSpace(n))
	if err1 != nil || err2 != nil || keep <= 0 || every <= 0 {
		return parseSampleRatio(defaultDebugSample)
	}
	return keep, every
}

var (
	debugSampler  ratioSampler
	traceOverride bool
)

func initDebugSampling(spec string) {
	debugSampler.set(parseSampleRatio(spec))
	traceOverride = truthy(os.Getenv("LOG_TRACE"))
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether the next high-volume debug line should
// be written. LOG_TRACE forces every line through.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.allow()
}
