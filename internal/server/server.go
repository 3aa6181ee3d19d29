package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MalithGihan/pdfview/internal/engine"
	"github.com/MalithGihan/pdfview/internal/source"
	"github.com/MalithGihan/pdfview/internal/store"
	"github.com/MalithGihan/pdfview/internal/validate"
	"github.com/MalithGihan/pdfview/internal/viewer"
)

const maxBodyBytes = 1 << 20

type Options struct {
	// DocumentsRoot is served under /pdfs/; empty disables static documents.
	DocumentsRoot   string
	DefaultDocument source.Location
	// SettleTimeout bounds how long a surface request waits for a render.
	SettleTimeout time.Duration
	DPI           float64
	// Sources, when set, vets client-supplied locations before a viewer is
	// mounted, so disallowed hosts are refused without being contacted.
	Sources source.Checker
	Logger  *zap.Logger
}

type Server struct {
	rt      *engine.Runtime
	viewers *store.Viewers
	opts    Options
	log     *zap.Logger
}

func New(rt *engine.Runtime, viewers *store.Viewers, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = 30 * time.Second
	}
	return &Server{rt: rt, viewers: viewers, opts: opts, log: opts.Logger.Named("http")}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/view?file="+url.QueryEscape(string(s.opts.DefaultDocument)), http.StatusFound)
	})

	// Host page: one viewer container per page load.
	r.Get("/view", s.view)
	r.Get("/view/surface.png", s.viewSurface)

	r.Route("/viewers", func(r chi.Router) {
		r.Post("/", s.createViewer)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getViewer)
			r.Put("/", s.remountViewer)
			r.Delete("/", s.deleteViewer)
			r.Get("/surface.png", s.viewerSurface)
		})
	})

	if s.opts.DocumentsRoot != "" {
		r.Handle("/pdfs/*", http.FileServer(http.Dir(s.opts.DocumentsRoot)))
	}
	return r
}

func (s *Server) newViewer() *viewer.Viewer {
	return viewer.New(s.rt, viewer.WithLogger(s.opts.Logger), viewer.WithDPI(s.opts.DPI))
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":                 true,
		"service":            "pdfview",
		"engine_initialized": s.rt.Initializations() > 0,
		"viewers":            s.viewers.Len(),
	})
}

func (s *Server) locationParam(r *http.Request) source.Location {
	if f := r.URL.Query().Get("file"); f != "" {
		return source.Location(f)
	}
	return s.opts.DefaultDocument
}

func (s *Server) checkLocation(loc source.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	if s.opts.Sources != nil {
		return s.opts.Sources.Check(loc)
	}
	return nil
}

func (s *Server) view(w http.ResponseWriter, r *http.Request) {
	loc := s.locationParam(r)
	if err := s.checkLocation(loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := hostPage.Execute(w, hostPageData{
		Location: string(loc),
		Surface:  "/view/surface.png?file=" + url.QueryEscape(string(loc)),
	}); err != nil {
		s.log.Error("rendering host page", zap.Error(err))
	}
}

// viewSurface mounts a viewer for the duration of the request.
func (s *Server) viewSurface(w http.ResponseWriter, r *http.Request) {
	loc := s.locationParam(r)
	if err := s.checkLocation(loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	v := s.newViewer()
	defer v.Unmount()
	if err := v.Mount(loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeSurface(w, r, v)
}

func (s *Server) createViewer(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeMount(w, r)
	if !ok {
		return
	}
	v := s.newViewer()
	if err := v.Mount(source.Location(req.Location)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := s.viewers.Add(v)
	writeJSON(w, http.StatusCreated, snapshotResponse(id, v.Snapshot()))
}

func (s *Server) getViewer(w http.ResponseWriter, r *http.Request) {
	id, v, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse(id, v.Snapshot()))
}

func (s *Server) remountViewer(w http.ResponseWriter, r *http.Request) {
	id, v, ok := s.lookup(w, r)
	if !ok {
		return
	}
	req, ok := s.decodeMount(w, r)
	if !ok {
		return
	}
	if err := v.Mount(source.Location(req.Location)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse(id, v.Snapshot()))
}

func (s *Server) deleteViewer(w http.ResponseWriter, r *http.Request) {
	if err := s.viewers.Remove(chi.URLParam(r, "id")); err != nil {
		http.Error(w, "viewer not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) viewerSurface(w http.ResponseWriter, r *http.Request) {
	_, v, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeSurface(w, r, v)
}

// writeSurface waits for the viewer to settle and writes page 1 as PNG. A
// viewer with nothing to show answers 204: the viewport stays empty.
func (s *Server) writeSurface(w http.ResponseWriter, r *http.Request, v *viewer.Viewer) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.SettleTimeout)
	defer cancel()
	snap, _ := v.Wait(ctx)
	if snap.State != viewer.Rendered || snap.Surface.Empty() {
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writePNG(w, snap.Surface.Image, s.log)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (string, *viewer.Viewer, bool) {
	id := chi.URLParam(r, "id")
	v, err := s.viewers.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "viewer not found", http.StatusNotFound)
		return id, nil, false
	}
	return id, v, true
}

// decodeMount reads a mount body and vets its location. It writes the error
// response itself.
func (s *Server) decodeMount(w http.ResponseWriter, r *http.Request) (validate.MountRequest, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return validate.MountRequest{}, false
	}
	req, err := validate.DecodeMount(body)
	if err == nil {
		err = s.checkLocation(source.Location(req.Location))
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return validate.MountRequest{}, false
	}
	return req, true
}

type viewerResponse struct {
	ID       string       `json:"id"`
	Location string       `json:"location,omitempty"`
	State    viewer.State `json:"state"`
	Error    string       `json:"error,omitempty"`
	Page     int          `json:"page,omitempty"`
	Width    int          `json:"width,omitempty"`
	Height   int          `json:"height,omitempty"`
}

func snapshotResponse(id string, snap viewer.Snapshot) viewerResponse {
	out := viewerResponse{ID: id, Location: string(snap.Location), State: snap.State}
	if snap.Err != nil {
		out.Error = snap.Err.Error()
	}
	if !snap.Surface.Empty() {
		b := snap.Surface.Image.Bounds()
		out.Page, out.Width, out.Height = snap.Surface.Page, b.Dx(), b.Dy()
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writePNG(w http.ResponseWriter, img image.Image, log *zap.Logger) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		log.Warn("writing surface", zap.Error(err))
	}
}
