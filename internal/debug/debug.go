// Package debug provides opt-in tracing for the packfile write path. It is
// a no-op unless DEBUG_LOG, DEBUG_FUNCS or DEBUG_FILES are set in the
// environment, adapted from restic's internal/debug package.
package debug

import (
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

var opts struct {
	enabled bool
	logger  *log.Logger
	funcs   map[string]bool
	files   map[string]bool
}

var _ = initDebug()

func initDebug() bool {
	initLogger()
	initTags()

	if opts.logger == nil && len(opts.funcs) == 0 && len(opts.files) == 0 {
		opts.enabled = false
		return false
	}

	opts.enabled = true
	fmt.Fprintln(os.Stderr, "debug enabled")
	return true
}

func initLogger() {
	logPath := os.Getenv("DEBUG_LOG")
	if logPath == "" {
		return
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "debug: unable to open debug log file: %v\n", err)
		os.Exit(2)
	}

	opts.logger = log.New(f, "", log.LstdFlags)
}

func initTags() {
	opts.funcs = parseFilter("DEBUG_FUNCS", padFunc)
	opts.files = parseFilter("DEBUG_FILES", padFile)
}

func parseFilter(envname string, pad func(string) string) map[string]bool {
	filter := make(map[string]bool)

	env := os.Getenv(envname)
	if env == "" {
		return filter
	}

	for _, tag := range strings.Split(env, ",") {
		t := pad(strings.TrimSpace(tag))
		val := true
		switch {
		case t == "":
			continue
		case t[0] == '-':
			val, t = false, t[1:]
		case t[0] == '+':
			val, t = true, t[1:]
		}

		if _, err := path.Match(t, ""); err != nil {
			fmt.Fprintf(os.Stderr, "debug: invalid pattern %q: %v\n", t, err)
			os.Exit(5)
		}

		filter[t] = val
	}

	return filter
}

func padFunc(s string) string {
	return s
}

func padFile(s string) string {
	if s == "all" {
		return s
	}
	if !strings.Contains(s, "/") {
		s = "*/" + s
	}
	if !strings.Contains(s, ":") {
		s += ":*"
	}
	return s
}

func getPosition() (fn, dir, file string, line int) {
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		return "", "", "", 0
	}

	dirname, filename := filepath.Base(filepath.Dir(file)), filepath.Base(file)
	f := runtime.FuncForPC(pc)

	return path.Base(f.Name()), dirname, filename, line
}

func checkFilter(filter map[string]bool, key string) bool {
	if v, ok := filter[key]; ok {
		return v
	}

	for k, v := range filter {
		if m, _ := path.Match(k, key); m {
			return v
		}
	}

	return filter["all"]
}

// Log prints a message to the debug log, if debug tracing is enabled.
func Log(f string, args ...interface{}) {
	if !opts.enabled {
		return
	}

	fn, dir, file, line := getPosition()
	if len(f) == 0 || f[len(f)-1] != '\n' {
		f += "\n"
	}

	pos := fmt.Sprintf("%s/%s:%d", dir, file, line)
	formatted := fmt.Sprintf("%s\t%s\t%s", pos, fn, f)

	if opts.logger != nil {
		opts.logger.Printf(formatted, args...)
	}

	if checkFilter(opts.files, pos) || checkFilter(opts.funcs, fn) {
		fmt.Fprintf(os.Stderr, formatted, args...)
	}
}
