package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/chronovault/internal/archive"
	"github.com/dmitrijs2005/chronovault/internal/capsuleid"
	"github.com/dmitrijs2005/chronovault/internal/common"
	"github.com/dmitrijs2005/chronovault/internal/cryptox"
	"github.com/dmitrijs2005/chronovault/internal/models"
	"github.com/dmitrijs2005/chronovault/internal/registry"
	"github.com/dmitrijs2005/chronovault/internal/repositories/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pass = "123456789012"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc   CapsuleService
	clock *fakeClock
	reg   *registry.Registry
	codec *archive.Codec
}

func newFixture(t *testing.T, storePassphrase bool) *fixture {
	t.Helper()
	c, err := cryptox.NewCipher(cryptox.KDFParams{Time: 1, MemoryKiB: 64, Threads: 1})
	require.NoError(t, err)
	codec := archive.NewCodec(c, 4, nil)
	reg := registry.New(kv.NewMemoryStore())
	clock := &fakeClock{now: time.Date(2030, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc := NewCapsuleService(codec, reg, clock.Now, nil, Options{StorePassphrase: storePassphrase})
	return &fixture{svc: svc, clock: clock, reg: reg, codec: codec}
}

// withRegistry returns a service sharing f's codec and clock but backed by a
// fresh, empty registry, as on another device.
func (f *fixture) withRegistry() CapsuleService {
	return NewCapsuleService(f.codec, registry.New(kv.NewMemoryStore()), f.clock.Now, nil, Options{StorePassphrase: true})
}

func sampleFiles() []models.FileEntry {
	bin := make([]byte, 4096)
	for i := range bin {
		bin[i] = byte(255 - i%256)
	}
	return []models.FileEntry{
		{Name: "a.txt", Size: 11, ContentType: "text/plain", Data: []byte("hello world")},
		{Name: "b.bin", Size: 4096, ContentType: "application/octet-stream", Data: bin},
	}
}

func rewriteArchive(t *testing.T, data []byte, drop []string, add map[string][]byte) []byte {
	t.Helper()
	skip := make(map[string]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		if !skip[f.Name] {
			require.NoError(t, zw.Copy(f))
		}
	}
	for name, content := range add {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestCreateAndOpen_ScenarioTextAndBinary(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	files := sampleFiles()
	unlock := f.clock.Now().Add(time.Hour)

	res, err := f.svc.CreateCapsule(ctx, files, pass, unlock)
	require.NoError(t, err)
	require.Equal(t, capsuleid.Derive(pass, unlock), res.ID)
	require.True(t, capsuleid.Valid(res.ID))
	require.Equal(t, "chronovault-"+res.ID+".zip", res.FileName)
	require.False(t, res.Replaced)
	require.Equal(t, []string{"a.txt", "b.bin"}, res.Manifest.FileNames())
	require.NotEmpty(t, res.Archive)

	state, err := f.svc.CheckLockState(ctx, res.ID)
	require.NoError(t, err)
	require.True(t, state.Locked)
	require.Equal(t, time.Hour, state.Remaining)

	opened, err := f.svc.OpenCapsule(ctx, res.Archive, res.ID, pass)
	require.NoError(t, err)
	require.True(t, opened.State.Locked)
	require.Nil(t, opened.Extraction)
	require.Equal(t, LockedView, opened.Lifecycle())
	require.ErrorIs(t, opened.Err(), common.ErrLocked)

	f.clock.Advance(time.Hour)

	state, err = f.svc.CheckLockState(ctx, res.ID)
	require.NoError(t, err)
	require.False(t, state.Locked, "unlock instant itself counts as unlocked")

	opened, err = f.svc.OpenCapsule(ctx, res.Archive, res.ID, pass)
	require.NoError(t, err)
	require.NoError(t, opened.Err())
	require.Equal(t, Extracted, opened.Lifecycle())
	require.False(t, opened.RegistryMiss)
	require.True(t, opened.Extraction.Complete())
	require.Len(t, opened.Extraction.Files, 2)
	for i, ef := range opened.Extraction.Files {
		assert.Equal(t, files[i].Name, ef.Name)
		assert.Equal(t, files[i].Data, ef.Data)
		assert.Equal(t, files[i].ContentType, ef.ContentType)
	}
	require.Equal(t, int64(11), opened.Extraction.Files[0].Size)
	require.Equal(t, int64(4096), opened.Extraction.Files[1].Size)
	require.NotEmpty(t, opened.Extraction.PlainArchive)
}

func TestCheckLockState_MonotonicUntilUnlock(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	res, err := f.svc.CreateCapsule(ctx, sampleFiles(), pass, f.clock.Now().Add(10*time.Minute))
	require.NoError(t, err)

	prev := time.Duration(1<<63 - 1)
	for i := 0; i < 10; i++ {
		st, err := f.svc.CheckLockState(ctx, res.ID)
		require.NoError(t, err)
		require.True(t, st.Locked)
		require.Less(t, st.Remaining, prev)
		prev = st.Remaining
		f.clock.Advance(time.Minute)
	}
	st, err := f.svc.CheckLockState(ctx, res.ID)
	require.NoError(t, err)
	require.False(t, st.Locked)
}

func TestOpenCapsule_UsesStoredPassphrase(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	res, err := f.svc.CreateCapsule(ctx, sampleFiles(), pass, f.clock.Now().Add(time.Minute))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	opened, err := f.svc.OpenCapsule(ctx, res.Archive, res.ID, "")
	require.NoError(t, err)
	require.False(t, opened.NeedsPassphrase)
	require.NotNil(t, opened.Extraction)
	require.Len(t, opened.Extraction.Files, 2)
}

func TestOpenCapsule_NeedsPassphraseWhenNotStored(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	res, err := f.svc.CreateCapsule(ctx, sampleFiles(), pass, f.clock.Now().Add(time.Minute))
	require.NoError(t, err)

	opened, err := f.svc.OpenCapsule(ctx, res.Archive, res.ID, "")
	require.NoError(t, err)
	require.True(t, opened.NeedsPassphrase)
	require.False(t, opened.RegistryMiss)
	require.True(t, opened.StateKnown)
	require.True(t, opened.State.Locked)
	require.Nil(t, opened.Extraction)
	require.Equal(t, []string{"a.txt", "b.bin"}, opened.Entries)
}

func TestOpenCapsule_RegistryMissFallsBackToHintAndManifest(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	res, err := f.svc.CreateCapsule(ctx, sampleFiles(), pass, f.clock.Now().Add(time.Minute))
	require.NoError(t, err)

	other := f.withRegistry()

	opened, err := other.OpenCapsule(ctx, res.Archive, res.ID, "")
	require.NoError(t, err)
	require.True(t, opened.RegistryMiss)
	require.True(t, opened.NeedsPassphrase)
	require.True(t, opened.StateKnown)
	require.True(t, opened.State.Locked)

	f.clock.Advance(time.Minute)
	opened, err = other.OpenCapsule(ctx, res.Archive, res.ID, pass)
	require.NoError(t, err)
	require.True(t, opened.RegistryMiss)
	require.Len(t, opened.Extraction.Files, 2)

	_, err = other.CheckLockState(ctx, res.ID)
	require.ErrorIs(t, err, common.ErrRegistryMiss)
	require.True(t, IsRegistryMiss(err))
}

func TestOpenCapsule_WithoutHintUsesManifest(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	res, err := f.svc.CreateCapsule(ctx, sampleFiles(), pass, f.clock.Now().Add(time.Minute))
	require.NoError(t, err)
	data := rewriteArchive(t, res.Archive, []string{common.UnlockHintEntryName}, nil)
	other := f.withRegistry()

	opened, err := other.OpenCapsule(ctx, data, "", "")
	require.NoError(t, err)
	require.True(t, opened.NeedsPassphrase)
	require.False(t, opened.StateKnown)
	require.Equal(t, Sealed, opened.Lifecycle())

	opened, err = other.OpenCapsule(ctx, data, "", pass)
	require.NoError(t, err)
	require.True(t, opened.StateKnown)
	require.True(t, opened.State.Locked)
	require.Nil(t, opened.Extraction)
}

func TestOpenCapsule_DerivesIDWhenAbsent(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	res, err := f.svc.CreateCapsule(ctx, sampleFiles(), pass, f.clock.Now().Add(time.Minute))
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)

	opened, err := f.svc.OpenCapsule(ctx, res.Archive, "", pass)
	require.NoError(t, err)
	require.Equal(t, res.ID, opened.ID)
	require.False(t, opened.RegistryMiss)
	require.NotNil(t, opened.Extraction)
}

func TestOpenCapsule_WrongPassphrase(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	res, err := f.svc.CreateCapsule(ctx, sampleFiles(), pass, f.clock.Now().Add(time.Minute))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	_, err = f.svc.OpenCapsule(ctx, res.Archive, res.ID, "210987654321")
	require.ErrorIs(t, err, common.ErrDecryptionFailure)
}

func TestOpenCapsule_RejectsMalformedPassphrase(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	res, err := f.svc.CreateCapsule(ctx, sampleFiles(), pass, f.clock.Now().Add(time.Minute))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	for _, p := range []string{"abc", "12345", "12345678901a", "1234567890123"} {
		opened, err := f.svc.OpenCapsule(ctx, res.Archive, res.ID, p)
		require.ErrorIs(t, err, common.ErrInvalidPassphraseFormat, p)
		require.ErrorIs(t, err, common.ErrValidation, p)
		require.Nil(t, opened)
	}

	// rejected before the archive is parsed
	_, err = f.svc.OpenCapsule(ctx, []byte("not a zip"), res.ID, "abc")
	require.ErrorIs(t, err, common.ErrInvalidPassphraseFormat)
}

func TestOpenCapsule_MissingEntryReportedPerFile(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	files := append(sampleFiles(), models.FileEntry{Name: "c.txt", Data: []byte("third")})
	res, err := f.svc.CreateCapsule(ctx, files, pass, f.clock.Now().Add(time.Minute))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	data := rewriteArchive(t, res.Archive, []string{"b.bin.encrypted"}, nil)
	opened, err := f.svc.OpenCapsule(ctx, data, res.ID, pass)
	require.NoError(t, err)
	require.Len(t, opened.Extraction.Files, 2)
	require.Len(t, opened.Extraction.Failures, 1)
	require.Equal(t, "b.bin", opened.Extraction.Failures[0].Name)
	require.ErrorIs(t, opened.Extraction.Failures[0].Err, common.ErrEntryNotFound)
}

func TestOpenCapsule_TamperedHintIsCorruption(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	res, err := f.svc.CreateCapsule(ctx, sampleFiles(), pass, f.clock.Now().Add(24*time.Hour))
	require.NoError(t, err)

	early := []byte(`{"unlockDate":"2000-01-01T00:00:00.000Z"}`)
	data := rewriteArchive(t, res.Archive, []string{common.UnlockHintEntryName},
		map[string][]byte{common.UnlockHintEntryName: early})

	_, err = f.withRegistry().OpenCapsule(ctx, data, "", pass)
	require.ErrorIs(t, err, common.ErrCorruptArchive)
}

func TestOpenCapsule_RejectsGarbageAndBadID(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.OpenCapsule(ctx, []byte("nope"), "", pass)
	require.ErrorIs(t, err, common.ErrCorruptArchive)

	_, err = f.svc.OpenCapsule(ctx, nil, "XYZ", pass)
	require.ErrorIs(t, err, common.ErrInvalidCapsuleID)
}

type countingCodec struct {
	ArchiveCodec
	builds int
}

func (c *countingCodec) Build(context.Context, []models.FileEntry, models.Manifest, string) ([]byte, error) {
	c.builds++
	return []byte("zip"), nil
}

func TestCreateCapsule_ValidationBeforeCrypto(t *testing.T) {
	now := time.Date(2030, 3, 1, 10, 0, 0, 0, time.UTC)
	codec := &countingCodec{}
	svc := NewCapsuleService(codec, registry.New(kv.NewMemoryStore()), func() time.Time { return now }, nil, Options{})
	ctx := context.Background()
	one := []models.FileEntry{{Name: "a.txt", Data: []byte("x")}}

	tests := []struct {
		name       string
		files      []models.FileEntry
		passphrase string
		unlock     time.Time
		want       error
	}{
		{"no files", nil, pass, now.Add(time.Hour), common.ErrNoFiles},
		{"short passphrase", one, "12345", now.Add(time.Hour), common.ErrInvalidPassphraseFormat},
		{"letters", one, "12345678901a", now.Add(time.Hour), common.ErrInvalidPassphraseFormat},
		{"unicode digits", one, "١٢٣٤٥٦٧٨٩٠١٢", now.Add(time.Hour), common.ErrInvalidPassphraseFormat},
		{"unlock now", one, pass, now, common.ErrUnlockNotInFuture},
		{"unlock in sub-ms future", one, pass, now.Add(time.Microsecond), common.ErrUnlockNotInFuture},
		{"unlock past", one, pass, now.Add(-time.Hour), common.ErrUnlockNotInFuture},
		{"unlock zero", one, pass, time.Time{}, common.ErrUnlockNotInFuture},
		{"bad name", []models.FileEntry{{Name: "x/y"}}, pass, now.Add(time.Hour), common.ErrInvalidFileName},
		{"duplicate", []models.FileEntry{{Name: "a"}, {Name: "a"}}, pass, now.Add(time.Hour), common.ErrDuplicateFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateCapsule(ctx, tt.files, tt.passphrase, tt.unlock)
			require.ErrorIs(t, err, common.ErrValidation)
			require.ErrorIs(t, err, tt.want)
		})
	}
	require.Zero(t, codec.builds)
}

func TestCreateCapsule_IdentifierCollisionReplacesRecord(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	unlock := f.clock.Now().Add(time.Hour)

	first, err := f.svc.CreateCapsule(ctx, sampleFiles(), pass, unlock)
	require.NoError(t, err)
	second, err := f.svc.CreateCapsule(ctx, []models.FileEntry{{Name: "other.txt", Data: []byte("x")}}, pass, unlock)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.True(t, second.Replaced)

	rec, found, err := f.reg.Get(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []string{"other.txt"}, rec.Files)
}

func TestCreateCapsule_StorePassphraseOption(t *testing.T) {
	ctx := context.Background()
	for _, store := range []bool{true, false} {
		f := newFixture(t, store)
		res, err := f.svc.CreateCapsule(ctx, sampleFiles(), pass, f.clock.Now().Add(time.Hour))
		require.NoError(t, err)
		rec, _, err := f.reg.Get(ctx, res.ID)
		require.NoError(t, err)
		require.Equal(t, store, rec.HasPassphrase())
	}
}

type brokenRegistry struct{ Registry }

func (brokenRegistry) Put(context.Context, models.Record) (bool, error) {
	return false, errors.New("disk full")
}

func TestCreateCapsule_RegistryFailure(t *testing.T) {
	f := newFixture(t, false)
	svc := NewCapsuleService(f.codec, brokenRegistry{}, f.clock.Now, nil, Options{})

	_, err := svc.CreateCapsule(context.Background(), sampleFiles(), pass, f.clock.Now().Add(time.Hour))
	require.ErrorContains(t, err, "register capsule: disk full")
}

func TestVerifyPassphrase(t *testing.T) {
	for _, store := range []bool{true, false} {
		f := newFixture(t, store)
		ctx := context.Background()
		res, err := f.svc.CreateCapsule(ctx, sampleFiles(), pass, f.clock.Now().Add(time.Hour))
		require.NoError(t, err)

		ok, err := f.svc.VerifyPassphrase(ctx, res.ID, pass)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = f.svc.VerifyPassphrase(ctx, res.ID, "000000000000")
		require.NoError(t, err)
		require.False(t, ok)

		_, err = f.svc.VerifyPassphrase(ctx, res.ID, "abc")
		require.ErrorIs(t, err, common.ErrInvalidPassphraseFormat)

		_, err = f.svc.VerifyPassphrase(ctx, "0000000000000000", pass)
		require.ErrorIs(t, err, common.ErrRegistryMiss)
	}
}

func TestForgetAndList(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	soon, err := f.svc.CreateCapsule(ctx, sampleFiles(), pass, f.clock.Now().Add(time.Minute))
	require.NoError(t, err)
	later, err := f.svc.CreateCapsule(ctx, sampleFiles(), "999999999999", f.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, soon.ID, list[0].Record.ID)
	require.False(t, list[0].State.Locked)
	require.Equal(t, later.ID, list[1].Record.ID)
	require.True(t, list[1].State.Locked)

	require.NoError(t, f.svc.Forget(ctx, soon.ID))
	_, err = f.svc.CheckLockState(ctx, soon.ID)
	require.ErrorIs(t, err, common.ErrRegistryMiss)

	require.ErrorIs(t, f.svc.Forget(ctx, "bad"), common.ErrInvalidCapsuleID)
}

func TestCreate_FromSessionSeals(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	s := NewSession()
	require.NoError(t, s.AddFile("a.txt", []byte("hello world"), ""))
	require.NoError(t, s.SetPassphrase(pass))
	s.SetUnlockAt(f.clock.Now().Add(time.Hour))

	res, err := f.svc.Create(ctx, s)
	require.NoError(t, err)
	require.Equal(t, Sealed, s.State())
	require.Same(t, res, s.Last())

	require.NoError(t, s.AddFile("b.txt", []byte("more"), ""))
	require.Equal(t, Building, s.State())
}

func TestCreateCapsule_CanceledContext(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.CreateCapsule(ctx, sampleFiles(), pass, f.clock.Now().Add(time.Hour))
	require.ErrorIs(t, err, context.Canceled)
}
