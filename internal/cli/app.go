package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/chronovault/internal/archive"
	"github.com/dmitrijs2005/chronovault/internal/config"
	"github.com/dmitrijs2005/chronovault/internal/countdown"
	"github.com/dmitrijs2005/chronovault/internal/cryptox"
	"github.com/dmitrijs2005/chronovault/internal/logging"
	"github.com/dmitrijs2005/chronovault/internal/registry"
	"github.com/dmitrijs2005/chronovault/internal/repositories/kv"
	"github.com/dmitrijs2005/chronovault/internal/services"
	"github.com/dmitrijs2005/chronovault/internal/storage"
)

type App struct {
	capsules services.CapsuleService
	session  *services.Session
	export   storage.Store
	logger   logging.Logger
	clock    countdown.Clock
	interval time.Duration
	out      io.Writer
	closeFn  func() error
}

// NewApp builds the application graph described by c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stderr, c.LogLevel, c.LogFormat)

	store, err := kv.Open(ctx, c.KVOptions())
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	cipher, err := cryptox.NewCipher(c.KDFParams())
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	export, err := newExportStore(ctx, c)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open export store: %w", err)
	}

	codec := archive.NewCodec(cipher, c.Workers, logger)
	svc := services.NewCapsuleService(codec, registry.New(store), time.Now, logger,
		services.Options{StorePassphrase: c.StorePassphrase})

	logger.Debug(ctx, "application ready",
		"registry", c.RegistryBackend,
		"export", c.ExportBackend)

	return &App{
		capsules: svc,
		session:  services.NewSession(),
		export:   export,
		logger:   logger,
		clock:    time.Now,
		interval: c.CountdownInterval,
		out:      os.Stdout,
		closeFn:  store.Close,
	}, nil
}

func newExportStore(ctx context.Context, c *config.Config) (storage.Store, error) {
	if c.ExportBackend == config.ExportS3 {
		client, err := storage.NewS3Client(ctx, storage.S3Config{
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			RootUser:     c.S3RootUser,
			RootPassword: c.S3RootPassword,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(client, c.S3Bucket, ""), nil
	}
	return storage.NewLocalStore(c.ExportDir)
}

// Run starts the REPL on stdin and blocks until the user exits.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	fmt.Fprintln(a.out, "Welcome to chronovault (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(os.Stdin))
	return nil
}

func (a *App) Close() error {
	if a.closeFn == nil {
		return nil
	}
	err := a.closeFn()
	a.closeFn = nil
	return err
}

func (a *App) status() string {
	st := a.session.State()
	if st == services.Sealed {
		if last := a.session.Last(); last != nil {
			return fmt.Sprintf("(%s %s)", st, last.ID)
		}
	}
	n := len(a.session.Files())
	if n == 0 {
		return fmt.Sprintf("(%s)", st)
	}
	return fmt.Sprintf("(%s, %d files)", st, n)
}
