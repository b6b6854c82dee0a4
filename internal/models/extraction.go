package models

// ExtractedFile is one successfully decrypted capsule file.
type ExtractedFile struct {
	Name        string
	Size        int64
	ContentType string
	Data        []byte
}

// EntryFailure records why a single manifest file could not be extracted.
type EntryFailure struct {
	Name string
	Err  error
}

// ExtractionResult is the outcome of decrypting an unlocked capsule.
// Failures do not prevent the remaining files from being returned.
type ExtractionResult struct {
	Manifest Manifest
	Files    []ExtractedFile
	Failures []EntryFailure
	// Unexpected lists archive entries the manifest does not account for.
	Unexpected []string
	// PlainArchive is a zip of every successfully decrypted file.
	PlainArchive []byte
}

// Complete reports whether every manifest file was extracted.
func (r *ExtractionResult) Complete() bool {
	return len(r.Failures) == 0 && len(r.Files) == len(r.Manifest.Files)
}
