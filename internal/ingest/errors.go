package ingest

import "errors"

var (
	// ErrAlreadyExists means the submitted record is already stored.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrEpicLinksNotSupported rejects direct Epic store submissions. Epic
	// giveaways only arrive through the scheduled promotion feed.
	ErrEpicLinksNotSupported = errors.New("epic games links are not supported yet")
)
