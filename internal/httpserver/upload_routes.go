package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/sarthak03dot/Chat-App/internal/blob"
	"github.com/sarthak03dot/Chat-App/internal/domain"
)

const multipartMemory = 8 << 20

// handleUpload expects multipart/form-data with a file field named "file"
// and answers with the URL to put in a message's attachment.
func handleUpload(store *blob.LocalStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			writeError(w, log, domain.Invalid("failed to parse multipart form"))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, log, domain.Invalid("missing file"))
			return
		}
		defer file.Close()

		url, err := store.Store(r.Context(), header.Filename, file)
		switch {
		case errors.Is(err, blob.ErrNoExtension):
			writeError(w, log, domain.Invalid("%v", err))
			return
		case errors.Is(err, blob.ErrTooLarge):
			writeError(w, log, domain.Invalid("%v: limit is %s", err, humanize.IBytes(uint64(store.MaxSize()))))
			return
		case err != nil:
			writeError(w, log, domain.StoreFailure("store upload", err))
			return
		}

		log.Info("upload_stored", "user", CurrentUser(r).ID, "url", url, "size", humanize.IBytes(uint64(header.Size)))
		writeJSON(w, http.StatusCreated, map[string]string{
			"url":      url,
			"filename": header.Filename,
		})
	}
}

func handleServeUpload(store *blob.LocalStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := store.Path(chi.URLParam(r, "filename"))
		if err != nil {
			http.Error(w, "invalid filename", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, path)
	}
}
