package core

import "errors"

var (
	// ErrInvalidTransition is returned for moderation moves other than
	// pending to approved or rejected.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotEditable is returned when a crop or caption edit targets a meme
	// that has already been moderated.
	ErrNotEditable = errors.New("meme is no longer editable")
	// ErrNotPublished is returned when liking a meme that is not approved.
	ErrNotPublished = errors.New("meme is not published")
	// ErrTooLarge is returned for uploads above the configured limit.
	ErrTooLarge = errors.New("upload too large")
	// ErrInvalidImage is returned when an upload cannot be normalized.
	ErrInvalidImage = errors.New("invalid image")
	// ErrUnknownImageKind is returned for an image rendition that does not exist.
	ErrUnknownImageKind = errors.New("unknown image kind")
)
