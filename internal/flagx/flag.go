// Package flagx helps several flag sets share one command line.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// FilterArgs keeps only the flags named in allowed, together with their
// values, and drops everything else. Names are given with a single dash
// ("-c"); on the command line both "-c" and "--c" match, in either the
// "-c value" or the "-c=value" form. Filtering stops at "--".
//
// A separate value is taken only when the next argument does not itself
// start with a dash, so boolean flags should be written as "-flag=false"
// when a value is wanted.
func FilterArgs(args []string, allowed []string) []string {
	keep := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		keep[normalize(name)] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		name, _, inline := strings.Cut(arg, "=")
		if !keep[normalize(name)] {
			continue
		}
		out = append(out, arg)
		if inline {
			continue
		}
		if next := i + 1; next < len(args) && !strings.HasPrefix(args[next], "-") {
			out = append(out, args[next])
			i = next
		}
	}
	return out
}

// normalize maps "--name" and "-name" to "name".
func normalize(flagName string) string {
	return strings.TrimLeft(flagName, "-")
}

// ConfigFile returns the value of -c / -config in args, or "" when neither
// is present. The last occurrence wins.
func ConfigFile(args []string) string {
	var path string

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "config file (JSON or YAML)")
	fs.StringVar(&path, "c", "", "config file (shorthand)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	return path
}

// ConfigFileFlag is ConfigFile applied to the process arguments.
func ConfigFileFlag() string {
	return ConfigFile(os.Args[1:])
}
