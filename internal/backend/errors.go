package backend

import (
	"errors"
	"net/http"

	"github.com/jo-hoe/cinememe/internal/backend/database"
	"github.com/jo-hoe/cinememe/internal/backend/session"
	"github.com/jo-hoe/cinememe/internal/core"
	"github.com/jo-hoe/cinememe/internal/editor"
)

// HTTPStatus maps service errors to response codes.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrConflict),
		errors.Is(err, editor.ErrNoGesture),
		errors.Is(err, editor.ErrReadOnly),
		errors.Is(err, core.ErrNotEditable),
		errors.Is(err, core.ErrNotPublished),
		errors.Is(err, core.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, editor.ErrNoImage),
		errors.Is(err, editor.ErrNoRaster),
		errors.Is(err, core.ErrInvalidImage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, editor.ErrUnknownMode),
		errors.Is(err, editor.ErrUnknownCaption),
		errors.Is(err, database.ErrUnknownColumn),
		errors.Is(err, core.ErrUnknownImageKind):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// UserMessage is the short text shown for an error. Internal failures are
// not spelled out.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return "meme not found"
	case errors.Is(err, session.ErrNotFound):
		return "no crop in progress, open the crop editor first"
	case errors.Is(err, session.ErrConflict):
		return "the crop was changed elsewhere, try again"
	case errors.Is(err, editor.ErrNoImage):
		return "image not available"
	case errors.Is(err, editor.ErrNoRaster):
		return "could not process the image"
	}
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}
