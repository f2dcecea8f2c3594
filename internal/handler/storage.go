package handler

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"

	apperrors "github.com/handoff/handoff-server/internal/errors"
	"github.com/handoff/handoff-server/internal/storage"
)

type ObjectOpener interface {
	Open(ctx context.Context, path string) (*os.File, error)
}

type ObjectVerifier interface {
	Verify(token string) (*storage.ObjectClaims, error)
}

// ObjectHandler serves stored payloads to holders of a signed download URL.
// The URL is the only credential: no session or portal token is needed.
type ObjectHandler struct {
	store    ObjectOpener
	verifier ObjectVerifier
}

func NewObjectHandler(store ObjectOpener, verifier ObjectVerifier) *ObjectHandler {
	return &ObjectHandler{store: store, verifier: verifier}
}

// GET /storage/object?token=
func (h *ObjectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := h.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		respond(w, r, apperrors.New(apperrors.ErrCodeInvalidToken, "Invalid or expired download link"))
		return
	}

	f, err := h.store.Open(r.Context(), claims.Path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond(w, r, apperrors.NotFound("File"))
			return
		}
		respond(w, r, apperrors.Storage(err))
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		respond(w, r, apperrors.Storage(err))
		return
	}

	name := claims.Name
	if name == "" {
		name = "download"
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Cache-Control", "private, no-store")

	log.Debug().Str("jti", claims.ID).Msg("serving signed object")
	http.ServeContent(w, r, name, stat.ModTime(), f)
}
