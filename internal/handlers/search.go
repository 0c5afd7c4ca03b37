package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/queuejam/backend/internal/models"
	"github.com/queuejam/backend/internal/services"
)

// SearchHandler serves catalog track searches.
type SearchHandler struct {
	catalog *services.SpotifyService
	timeout time.Duration
}

// NewSearchHandler creates a SearchHandler. Every upstream call is bounded
// by the given timeout so a stalled catalog cannot hang search requests.
func NewSearchHandler(catalog *services.SpotifyService, timeout time.Duration) *SearchHandler {
	return &SearchHandler{catalog: catalog, timeout: timeout}
}

// Search looks up tracks matching the query and returns them as an array,
// possibly empty.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'query' is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	tracks, err := h.catalog.Search(ctx, query)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "search failed", err)
		return
	}

	results := make([]models.TrackResult, len(tracks))
	for i, track := range tracks {
		artists := make([]string, len(track.Artists))
		for j, artist := range track.Artists {
			artists[j] = artist.Name
		}

		var albumArt string
		if len(track.Album.Images) > 0 {
			albumArt = track.Album.Images[0].URL
		}

		results[i] = models.TrackResult{
			ID:          track.ID,
			Title:       track.Name,
			URI:         track.URI,
			DurationMS:  track.DurationMS,
			AlbumName:   track.Album.Name,
			AlbumArtURL: albumArt,
			Artists:     artists,
		}
	}

	writeJSON(w, http.StatusOK, results)
}
