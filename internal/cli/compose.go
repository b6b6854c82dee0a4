package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/chronovault/internal/capsuleid"
	"github.com/dmitrijs2005/chronovault/internal/countdown"
	"github.com/dustin/go-humanize"
)

func (a *App) Add(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("add <path>...")
	}
	for _, p := range args {
		if err := a.session.AddPath(p); err != nil {
			return err
		}
		files := a.session.Files()
		f := files[len(files)-1]
		fmt.Fprintf(a.out, "added %s (%s, %s)\n", f.Name, humanize.Bytes(uint64(f.Size)), f.ContentType)
	}
	return nil
}

func (a *App) Remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("remove <name>")
	}
	if !a.session.Remove(args[0]) {
		return fmt.Errorf("no file named %q", args[0])
	}
	fmt.Fprintf(a.out, "removed %s\n", args[0])
	return nil
}

func (a *App) Files(ctx context.Context, args []string) error {
	files := a.session.Files()
	if len(files) == 0 {
		fmt.Fprintln(a.out, "no files selected")
		return nil
	}
	var total uint64
	for _, f := range files {
		total += uint64(f.Size)
		fmt.Fprintf(a.out, "  %-32s %10s  %s\n", f.Name, humanize.Bytes(uint64(f.Size)), f.ContentType)
	}
	fmt.Fprintf(a.out, "%d files, %s\n", len(files), humanize.Bytes(total))
	return nil
}

// Passphrase takes the passphrase as an argument or prompts for it twice.
func (a *App) Passphrase(ctx context.Context, args []string) error {
	var pass string
	switch len(args) {
	case 0:
		first, err := GetPassphrase(a.out, "Passphrase (12 digits)")
		if err != nil {
			return err
		}
		second, err := GetPassphrase(a.out, "Repeat passphrase")
		if err != nil {
			return err
		}
		if first != second {
			return fmt.Errorf("passphrases do not match")
		}
		pass = first
	case 1:
		pass = args[0]
	default:
		return usageError("passphrase [digits]")
	}
	if err := a.session.SetPassphrase(pass); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "passphrase set")
	return nil
}

// Unlock accepts an absolute instant or an offset from now such as "+36h".
func (a *App) Unlock(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("unlock <RFC3339 time | +duration>")
	}
	at, err := a.parseUnlock(args[0])
	if err != nil {
		return err
	}
	at = capsuleid.Normalize(at)
	a.session.SetUnlockAt(at)
	fmt.Fprintf(a.out, "unlocks at %s (in %s)\n", capsuleid.FormatInstant(at), countdown.Remaining(a.clock(), at))
	return nil
}

func (a *App) parseUnlock(s string) (time.Time, error) {
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		d, err := time.ParseDuration(rest)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid offset %q: %w", s, err)
		}
		return a.clock().Add(d), nil
	}
	return capsuleid.ParseInstant(s)
}

// Create seals the session and writes the archive to the export store.
func (a *App) Create(ctx context.Context, args []string) error {
	res, err := a.capsules.Create(ctx, a.session)
	if err != nil {
		return err
	}
	loc, err := a.export.Save(ctx, res.FileName, res.Archive)
	if err != nil {
		return fmt.Errorf("capsule %s created but not exported: %w", res.ID, err)
	}
	a.logger.Info(ctx, "archive exported", "capsule_id", res.ID, "location", loc)
	if res.Replaced {
		fmt.Fprintf(a.out, "warning: an earlier capsule with id %s was replaced in the registry\n", res.ID)
	}
	fmt.Fprintf(a.out, "capsule %s sealed (%d files, %s)\n", res.ID, len(res.Manifest.Files), humanize.Bytes(uint64(len(res.Archive))))
	fmt.Fprintf(a.out, "archive written to %s\n", loc)
	fmt.Fprintf(a.out, "unlocks at %s\n", capsuleid.FormatInstant(res.Manifest.UnlockAt))
	return nil
}

func (a *App) Reset(ctx context.Context, args []string) error {
	a.session.Reset()
	fmt.Fprintln(a.out, "started a new capsule")
	return nil
}
