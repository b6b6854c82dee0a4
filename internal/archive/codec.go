package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/dmitrijs2005/chronovault/internal/common"
	"github.com/dmitrijs2005/chronovault/internal/logging"
	"github.com/dmitrijs2005/chronovault/internal/models"
	"github.com/klauspost/compress/flate"
	"golang.org/x/sync/errgroup"
)

// Cipher is the subset of cryptox.Cipher the codec needs.
type Cipher interface {
	Encrypt(plaintext []byte, passphrase string) (string, error)
	Decrypt(ciphertext string, passphrase string) ([]byte, error)
}

// Codec turns file sets into capsule archives and back.
type Codec struct {
	cipher  Cipher
	workers int
	logger  logging.Logger
}

// NewCodec returns a Codec that runs at most workers encryptions or
// decryptions at a time. A non-positive workers value means one per CPU.
func NewCodec(cipher Cipher, workers int, logger logging.Logger) *Codec {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Codec{cipher: cipher, workers: workers, logger: logger}
}

// Build encrypts every file payload and the manifest under passphrase and
// packs them into a zip archive. Entries follow manifest order and carry the
// manifest creation instant as their modification time.
func (c *Codec) Build(ctx context.Context, files []models.FileEntry, manifest models.Manifest, passphrase string) ([]byte, error) {
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if err := ValidateName(f.Name); err != nil {
			return nil, common.NewValidationError("files", err)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, common.NewValidationError("files", fmt.Errorf("%w: %q", common.ErrDuplicateFile, f.Name))
		}
		seen[f.Name] = struct{}{}
	}

	manifestJSON, err := MarshalManifest(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	hint, err := marshalUnlockHint(manifest.UnlockAt)
	if err != nil {
		return nil, fmt.Errorf("marshal unlock hint: %w", err)
	}

	sealed := make([]string, len(files))
	var sealedManifest string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ct, err := c.cipher.Encrypt(f.Data, passphrase)
			if err != nil {
				return fmt.Errorf("encrypt %q: %w", f.Name, err)
			}
			sealed[i] = ct
			return nil
		})
	}
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		ct, err := c.cipher.Encrypt(manifestJSON, passphrase)
		if err != nil {
			return fmt.Errorf("encrypt manifest: %w", err)
		}
		sealedManifest = ct
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := newZipWriter(&buf)

	for i, f := range files {
		if err := writeEntry(zw, EntryName(f.Name), manifest.CreatedAt, []byte(sealed[i])); err != nil {
			return nil, err
		}
	}
	if err := writeEntry(zw, common.MetadataEntryName, manifest.CreatedAt, []byte(sealedManifest)); err != nil {
		return nil, err
	}
	if err := writeEntry(zw, common.UnlockHintEntryName, manifest.CreatedAt, hint); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	c.logger.Debug(ctx, "archive built", "files", len(files), "bytes", buf.Len())
	return buf.Bytes(), nil
}

// DecryptEntry decrypts the archive entry belonging to the capsule file
// name. Failures are *common.EntryError values wrapping ErrEntryNotFound,
// ErrCorruptArchive or ErrDecryptionFailure.
func (c *Codec) DecryptEntry(a *Archive, name, passphrase string) ([]byte, error) {
	return c.decryptRaw(a, EntryName(name), passphrase)
}

// DecryptManifest decrypts and decodes the archive manifest.
func (c *Codec) DecryptManifest(a *Archive, passphrase string) (models.Manifest, error) {
	plain, err := c.decryptRaw(a, common.MetadataEntryName, passphrase)
	if err != nil {
		return models.Manifest{}, err
	}
	return UnmarshalManifest(plain)
}

func (c *Codec) decryptRaw(a *Archive, entry, passphrase string) ([]byte, error) {
	raw, err := a.read(entry)
	if err != nil {
		return nil, &common.EntryError{Entry: entry, Err: err}
	}
	plain, err := c.cipher.Decrypt(string(raw), passphrase)
	if err != nil {
		return nil, &common.EntryError{Entry: entry, Err: err}
	}
	return plain, nil
}

// Extract decrypts every file listed in manifest. Each entry succeeds or
// fails on its own; only context cancellation or a failure to assemble the
// plain archive aborts the whole extraction.
func (c *Codec) Extract(ctx context.Context, a *Archive, manifest models.Manifest, passphrase string) (*models.ExtractionResult, error) {
	type outcome struct {
		data []byte
		err  error
	}
	outcomes := make([]outcome, len(manifest.Files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, f := range manifest.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := c.DecryptEntry(a, f.Name, passphrase)
			outcomes[i] = outcome{data: data, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &models.ExtractionResult{Manifest: manifest}
	for i, f := range manifest.Files {
		o := outcomes[i]
		if o.err != nil {
			c.logger.Warn(ctx, "entry extraction failed", "file", f.Name, "error", o.err)
			res.Failures = append(res.Failures, models.EntryFailure{Name: f.Name, Err: o.err})
			continue
		}
		res.Files = append(res.Files, models.ExtractedFile{
			Name:        f.Name,
			Size:        int64(len(o.data)),
			ContentType: f.ContentType,
			Data:        o.data,
		})
	}

	res.Unexpected = a.unexpected(manifest)
	if len(res.Unexpected) > 0 {
		c.logger.Warn(ctx, "archive holds entries missing from manifest", "entries", res.Unexpected)
	}

	plain, err := BuildPlain(res.Files, manifest.CreatedAt)
	if err != nil {
		return nil, err
	}
	res.PlainArchive = plain
	return res, nil
}

// BuildPlain packs already decrypted files into an ordinary zip archive.
func BuildPlain(files []models.ExtractedFile, modified time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := newZipWriter(&buf)
	for _, f := range files {
		if err := writeEntry(zw, f.Name, modified, f.Data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close plain archive: %w", err)
	}
	return buf.Bytes(), nil
}

func newZipWriter(w io.Writer) *zip.Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	return zw
}

func writeEntry(zw *zip.Writer, name string, modified time.Time, data []byte) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
	if !modified.IsZero() {
		hdr.Modified = modified.UTC()
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("create entry %q: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write entry %q: %w", name, err)
	}
	return nil
}
