package apperr

import "errors"

var (
	ErrTargetDirMissing   = errors.New("target directory not found")
	ErrIndexMissing       = errors.New("index file not found")
	ErrInvalidUTF8        = errors.New("content is not valid UTF-8")
	ErrSelfFeedingReplace = errors.New("replace string contains find string")
	ErrJournalDisabled    = errors.New("journal is disabled")
)
