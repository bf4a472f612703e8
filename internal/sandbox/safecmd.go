package sandbox

import (
	"path/filepath"
	"strings"

	"github.com/google/shlex"
)

// alwaysSafe lists binaries that never mutate state regardless of arguments.
var alwaysSafe = map[string]bool{
	"cat": true, "cd": true, "cut": true, "echo": true, "expr": true,
	"false": true, "head": true, "id": true, "ls": true, "nl": true,
	"paste": true, "pwd": true, "rev": true, "seq": true, "stat": true,
	"tail": true, "tr": true, "true": true, "uname": true, "uniq": true,
	"wc": true, "which": true, "whoami": true, "hostname": true, "date": true,
	"env": true, "printenv": true, "file": true, "type": true,
	"basename": true, "dirname": true, "realpath": true, "readlink": true,
	"grep": true, "egrep": true, "fgrep": true, "diff": true,
}

// argCheckers decide binaries whose safety depends on their arguments.
// Populated in init because safeShell recurses through IsSafeCommand.
var argCheckers map[string]func(argv []string) bool

func init() {
	argCheckers = map[string]func(argv []string) bool{
		"find":  safeFind,
		"rg":    safeRipgrep,
		"git":   safeGit,
		"cargo": safeCargo,
		"sed":   safeSed,
		"sort":  safeSort,
		"bash":  safeShell,
		"sh":    safeShell,
	}
}

var unsafeFindOptions = map[string]bool{
	"-exec": true, "-execdir": true, "-ok": true, "-okdir": true,
	"-delete": true, "-fls": true, "-fprint": true, "-fprint0": true, "-fprintf": true,
}

// Flags that take a command (or hostname program) to execute.
var unsafeRipgrepWithValue = []string{"--pre", "--hostname-bin"}

// Flags that make rg spawn decompressors.
var unsafeRipgrepFlags = map[string]bool{"--search-zip": true, "-z": true}

var safeGitSubcommands = map[string]bool{
	"branch": true, "status": true, "log": true, "diff": true, "show": true,
	"ls-files": true, "ls-tree": true, "rev-parse": true, "describe": true,
	"tag": true, "remote": true, "config": true,
}

// shellMeta are rejected outright inside bash -c scripts: redirection,
// command substitution and subshell/grouping syntax.
var shellMeta = []string{">", "<", "$(", "`", "(", "{"}

var shellSeparators = []string{"&&", "||", ";", "|"}

// IsSafeCommand reports whether argv can run without human confirmation.
// Unknown binaries are unsafe.
func IsSafeCommand(argv []string) bool {
	if len(argv) == 0 {
		return false
	}
	bin := normalizeBinary(argv[0])
	if alwaysSafe[bin] {
		return true
	}
	if check, ok := argCheckers[bin]; ok {
		return check(argv)
	}
	return false
}

// IsSafeScript classifies a script string as it would be passed to bash -c.
func IsSafeScript(script string) bool {
	for _, m := range shellMeta {
		if strings.Contains(script, m) {
			return false
		}
	}
	parts := splitScript(script)
	if len(parts) == 0 {
		return false
	}
	for _, part := range parts {
		words, err := shlex.Split(part)
		if err != nil || len(words) == 0 {
			return false
		}
		if !IsSafeCommand(words) {
			return false
		}
	}
	return true
}

func normalizeBinary(cmd string) string {
	bin := filepath.Base(cmd)
	if bin == "." || bin == string(filepath.Separator) {
		bin = cmd
	}
	if bin == "zsh" {
		return "bash"
	}
	return bin
}

func splitScript(script string) []string {
	segs := []string{script}
	for _, sep := range shellSeparators {
		var next []string
		for _, s := range segs {
			next = append(next, strings.Split(s, sep)...)
		}
		segs = next
	}
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func safeShell(argv []string) bool {
	for i, a := range argv {
		if a != "-c" && a != "-lc" {
			continue
		}
		if i+1 >= len(argv) {
			return false
		}
		return IsSafeScript(argv[i+1])
	}
	return false
}

func safeFind(argv []string) bool {
	for _, a := range argv {
		if unsafeFindOptions[a] {
			return false
		}
	}
	return true
}

func safeRipgrep(argv []string) bool {
	for _, a := range argv {
		if unsafeRipgrepFlags[a] {
			return false
		}
		for _, opt := range unsafeRipgrepWithValue {
			if a == opt || strings.HasPrefix(a, opt+"=") {
				return false
			}
		}
	}
	return true
}

func safeGit(argv []string) bool {
	return len(argv) > 1 && safeGitSubcommands[argv[1]]
}

func safeCargo(argv []string) bool {
	return len(argv) > 1 && argv[1] == "check"
}

func safeSort(argv []string) bool {
	for _, a := range argv {
		if strings.HasPrefix(a, "-o") {
			return false
		}
	}
	return true
}

// safeSed accepts only `sed -n N[,M]p [file]`.
func safeSed(argv []string) bool {
	if len(argv) < 3 || len(argv) > 4 {
		return false
	}
	if argv[1] != "-n" {
		return false
	}
	return validSedPrint(argv[2])
}

func validSedPrint(pattern string) bool {
	core, ok := strings.CutSuffix(pattern, "p")
	if !ok {
		return false
	}
	parts := strings.Split(core, ",")
	if len(parts) > 2 {
		return false
	}
	for _, p := range parts {
		if !allDigits(p) {
			return false
		}
	}
	return true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
