package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for REPL output.
var printlnFn = fmt.Println

const helpText = `Available commands:
  add <path>...          add files to the capsule being built
  remove <name>          drop a file
  files                  list the selected files
  passphrase [digits]    set the 12-digit passphrase (prompted when omitted)
  unlock <time|+dur>     set the unlock instant (RFC3339, or +90m style offset)
  create                 seal the capsule and export its archive
  reset                  start a new capsule
  check <id>             show lock state and countdown
  watch <id>             live countdown until the capsule unlocks
  open <archive|id> [id] unlock and extract an archive
  verify <id>            check a passphrase against a registered capsule
  list                   list registered capsules
  forget <id>            drop a capsule from the registry
  exit | quit            leave the program`

// execIface is the command surface the REPL drives. *App satisfies it.
type execIface interface {
	Add(ctx context.Context, args []string) error
	Remove(ctx context.Context, args []string) error
	Files(ctx context.Context, args []string) error
	Passphrase(ctx context.Context, args []string) error
	Unlock(ctx context.Context, args []string) error
	Create(ctx context.Context, args []string) error
	Reset(ctx context.Context, args []string) error
	Check(ctx context.Context, args []string) error
	Watch(ctx context.Context, args []string) error
	Open(ctx context.Context, args []string) error
	Verify(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Forget(ctx context.Context, args []string) error
}

// runREPL reads commands from scanner and dispatches them to a until EOF,
// "exit"/"quit" or ctx cancellation. Command errors are printed and the loop
// carries on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("cv %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help", "?":
			printlnFn(helpText)
		case "add":
			err = a.Add(ctx, args)
		case "remove", "rm":
			err = a.Remove(ctx, args)
		case "files":
			err = a.Files(ctx, args)
		case "passphrase":
			err = a.Passphrase(ctx, args)
		case "unlock":
			err = a.Unlock(ctx, args)
		case "create":
			err = a.Create(ctx, args)
		case "reset":
			err = a.Reset(ctx, args)
		case "check":
			err = a.Check(ctx, args)
		case "watch":
			err = a.Watch(ctx, args)
		case "open":
			err = a.Open(ctx, args)
		case "verify":
			err = a.Verify(ctx, args)
		case "l", "list":
			err = a.List(ctx, args)
		case "forget":
			err = a.Forget(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
