package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"

	"github.com/dmitrijs2005/chronovault/internal/capsuleid"
	"github.com/dmitrijs2005/chronovault/internal/countdown"
	"github.com/dmitrijs2005/chronovault/internal/services"
	"github.com/dustin/go-humanize"
)

func (a *App) Check(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("check <id>")
	}
	st, err := a.capsules.CheckLockState(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %s, unlocks at %s (%s)\n", args[0], st, capsuleid.FormatInstant(st.UnlockAt),
		countdown.Remaining(a.clock(), st.UnlockAt))
	return nil
}

// Watch prints a live countdown until the capsule unlocks or the user
// interrupts it.
func (a *App) Watch(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("watch <id>")
	}
	st, err := a.capsules.CheckLockState(ctx, args[0])
	if err != nil {
		return err
	}

	wctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	err = countdown.Watch(wctx, a.interval, a.clock, st.UnlockAt, func(b countdown.Breakdown) {
		fmt.Fprintf(a.out, "\r%s  %s", args[0], b)
	})
	fmt.Fprintln(a.out)
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return nil
	}
	return err
}

// Open loads an archive from the export store and extracts it when
// unlocked. A bare capsule identifier stands for its default archive name.
func (a *App) Open(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageError("open <archive|id> [id]")
	}
	name, id := args[0], ""
	if len(args) == 2 {
		id = args[1]
	} else if capsuleid.Valid(name) {
		id, name = name, capsuleid.ExportFileName(name)
	}

	data, err := a.export.Load(ctx, name)
	if err != nil {
		return err
	}

	res, err := a.capsules.OpenCapsule(ctx, data, id, "")
	if err != nil {
		return err
	}
	if len(res.Entries) > 0 {
		fmt.Fprintf(a.out, "archive holds %d files: %s\n", len(res.Entries), strings.Join(res.Entries, ", "))
	}
	if res.NeedsPassphrase && !(res.StateKnown && res.State.Locked) {
		pass, err := GetPassphrase(a.out, "Passphrase")
		if err != nil {
			return err
		}
		if res, err = a.capsules.OpenCapsule(ctx, data, id, pass); err != nil {
			return err
		}
	}
	if res.RegistryMiss {
		fmt.Fprintln(a.out, "capsule is not registered on this device")
	}

	if res.Extraction == nil {
		if res.StateKnown {
			fmt.Fprintf(a.out, "%s: unlocks at %s (%s)\n", name, capsuleid.FormatInstant(res.State.UnlockAt),
				countdown.Remaining(a.clock(), res.State.UnlockAt))
		}
		return res.Err()
	}
	return a.saveExtraction(ctx, res)
}

func (a *App) saveExtraction(ctx context.Context, res *services.OpenResult) error {
	ex := res.Extraction
	for _, f := range ex.Files {
		loc, err := a.export.Save(ctx, path.Join(res.ID, f.Name), f.Data)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "  %-32s %10s  -> %s\n", f.Name, humanize.Bytes(uint64(f.Size)), loc)
	}
	for _, fl := range ex.Failures {
		fmt.Fprintf(a.out, "  %-32s failed: %v\n", fl.Name, fl.Err)
	}
	for _, u := range ex.Unexpected {
		fmt.Fprintf(a.out, "  ignored unexpected entry %s\n", u)
	}

	loc, err := a.export.Save(ctx, unlockedArchiveName(res.ID), ex.PlainArchive)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "extracted %d of %d files from capsule %s, bundle at %s\n",
		len(ex.Files), len(ex.Manifest.Files), res.ID, loc)
	return nil
}

func unlockedArchiveName(id string) string {
	return "chronovault-" + id + "-unlocked.zip"
}

func (a *App) Verify(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("verify <id>")
	}
	pass, err := GetPassphrase(a.out, "Passphrase")
	if err != nil {
		return err
	}
	ok, err := a.capsules.VerifyPassphrase(ctx, args[0], pass)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(a.out, "passphrase matches")
	} else {
		fmt.Fprintln(a.out, "passphrase does not match")
	}
	return nil
}

func (a *App) List(ctx context.Context, args []string) error {
	caps, err := a.capsules.List(ctx)
	if err != nil {
		return err
	}
	if len(caps) == 0 {
		fmt.Fprintln(a.out, "no capsules registered")
		return nil
	}
	now := a.clock()
	for _, c := range caps {
		key := "-"
		if c.Record.HasPassphrase() {
			key = "stored"
		}
		fmt.Fprintf(a.out, "%s  %s  %-8s %-16s %2d files  passphrase %s\n",
			c.Record.ID, capsuleid.FormatInstant(c.Record.UnlockAt), c.State,
			countdown.Remaining(now, c.Record.UnlockAt), len(c.Record.Files), key)
	}
	return nil
}

func (a *App) Forget(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("forget <id>")
	}
	if err := a.capsules.Forget(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "forgot %s\n", args[0])
	return nil
}
