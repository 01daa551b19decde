package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"causelist-backend/lib/portal"
	"causelist-backend/lib/timezone"
)

type HandlerOptions struct {
	// OutputDir is served under /outputs/.
	OutputDir string
	Catalog   Catalog
}

type runForm struct {
	State    string `json:"state"`
	District string `json:"district"`
	Complex  string `json:"complex"`
	Date     string `json:"date"`
}

func writeJson(w http.ResponseWriter, status int, value any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(value)
	if err != nil {
		slog.Warn("failed to write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJson(w, status, map[string]string{"error": message})
}

func parseRunForm(w http.ResponseWriter, r *http.Request) (portal.LookupRequest, error) {
	var form runForm
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("content-type"))
	if mediaType == "application/json" {
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&form)
		if err != nil {
			return portal.LookupRequest{}, fmt.Errorf("invalid json body: %w", err)
		}
	} else {
		err := r.ParseForm()
		if err != nil {
			return portal.LookupRequest{}, err
		}
		form = runForm{
			State:    r.PostForm.Get("state"),
			District: r.PostForm.Get("district"),
			Complex:  r.PostForm.Get("complex"),
			Date:     r.PostForm.Get("date"),
		}
	}

	req := portal.LookupRequest{
		State:       strings.TrimSpace(form.State),
		District:    strings.TrimSpace(form.District),
		Complex:     strings.TrimSpace(form.Complex),
		Date:        timezone.Today(),
		DownloadPdf: true,
	}
	if form.Date != "" {
		date, err := timezone.ParseDate(strings.TrimSpace(form.Date))
		if err != nil {
			return portal.LookupRequest{}, err
		}
		req.Date = date
	}
	return req, req.Validate()
}

// Handler serves the job API.
func (s *Service) Handler(opts HandlerOptions) http.Handler {
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog
	}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /run", func(w http.ResponseWriter, r *http.Request) {
		req, err := parseRunForm(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		job, err := s.Submit(r.Context(), req)
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to submit job", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to submit job")
			return
		}
		w.Header().Set("location", "/api/status/"+job.Id)
		writeJson(w, http.StatusAccepted, job)
	})

	mux.HandleFunc("GET /api/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		job, err := s.Get(r.Context(), r.PathValue("id"))
		if errors.Is(err, ErrJobNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to get job", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to get job")
			return
		}
		writeJson(w, http.StatusOK, job)
	})

	mux.HandleFunc("POST /api/cancel/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		err := s.Cancel(r.Context(), id)
		switch {
		case errors.Is(err, ErrJobNotFound):
			writeError(w, http.StatusNotFound, err.Error())
			return
		case errors.Is(err, ErrJobFinished):
			writeError(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			slog.ErrorContext(r.Context(), "failed to cancel job", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to cancel job")
			return
		}
		job, err := s.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to get job")
			return
		}
		writeJson(w, http.StatusAccepted, job)
	})

	mux.HandleFunc("GET /api/jobs", func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = parsed
		}
		jobs, err := s.List(r.Context(), limit)
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to list jobs", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to list jobs")
			return
		}
		writeJson(w, http.StatusOK, jobs)
	})

	mux.HandleFunc("GET /api/options", func(w http.ResponseWriter, r *http.Request) {
		writeJson(w, http.StatusOK, map[string]any{
			"catalog":  opts.Catalog,
			"today":    timezone.Today(),
			"tomorrow": timezone.Tomorrow(),
		})
	})

	mux.HandleFunc("GET /outputs/{path...}", func(w http.ResponseWriter, r *http.Request) {
		serveOutput(w, r, opts.OutputDir, r.PathValue("path"))
	})

	return mux
}

func serveOutput(w http.ResponseWriter, r *http.Request, dir, name string) {
	name = filepath.FromSlash(name)
	if dir == "" || !filepath.IsLocal(name) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer root.Close()

	file, err := root.Open(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	w.Header().Set("content-disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": info.Name(),
	}))
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}
