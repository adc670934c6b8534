package frontend

import (
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/cinememe/internal/backend"
	"github.com/jo-hoe/cinememe/internal/backend/database"
	"github.com/jo-hoe/cinememe/internal/core"
	"github.com/jo-hoe/cinememe/internal/editor"
)

const (
	MainPageName       = "index.html"
	editorPageName     = "editor.html"
	moderationPageName = "moderation.html"
	feedFragmentName   = "feed-list"
	likeFragmentName   = "like-button"
	pendingFragment    = "pending-list"
)

type FrontendService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig
	renderer    *Template
}

func NewFrontendService(config *core.ServiceConfig, coreService *core.CoreService) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		config:      config,
		renderer:    newTemplate(),
	}
}

// memeView is what the templates see of a meme. Positions are percentages
// of the rendered image.
type memeView struct {
	ID         string
	Title      string
	TopText    string
	BottomText string
	Status     string
	Likes      int64
	Region     editor.CropRegion
	Overlays   editor.Overlays
	Created    string
	Editable   bool
	First      bool
	Last       bool
	Timestamp  string
}

type feedView struct {
	Memes    []memeView
	Since    string
	Page     int
	NextPage int
	PrevPage int
	HasNext  bool
	HasPrev  bool
	Total    int64
}

type editorView struct {
	Meme memeView
}

// rootRedirectHandler redirects root path to index.html
func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	return ctx.Redirect(http.StatusMovedPermanently, "/"+MainPageName)
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = service.renderer

	e.GET("/", service.rootRedirectHandler) // Redirect root to index.html
	e.GET("/"+MainPageName, service.indexHandler)
	e.GET("/editor/:id", service.editorHandler)
	e.GET("/moderation", service.moderationHandler)

	e.POST("/htmx/uploadMeme", service.htmxUploadMemeHandler)
	e.GET("/htmx/feed", service.htmxFeedHandler)
	e.GET("/htmx/pending", service.htmxPendingHandler)
	e.POST("/htmx/meme/:id/like", service.htmxLikeHandler)
	e.POST("/htmx/meme/:id/move", service.htmxMoveHandler)
	e.POST("/htmx/meme/:id/status", service.htmxStatusHandler)
	e.DELETE("/htmx/meme/:id", service.htmxDeleteHandler)

	// Favicon (SVG) route
	e.GET("/icon.svg", service.iconHandler)
}

func (service *FrontendService) indexHandler(ctx echo.Context) error {
	view, err := service.buildFeedView(ctx)
	if err != nil {
		return service.htmxError(ctx, "indexHandler", err)
	}
	return ctx.Render(http.StatusOK, MainPageName, view)
}

func (service *FrontendService) editorHandler(ctx echo.Context) error {
	meme, err := service.coreService.GetMeme(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return service.htmxError(ctx, "editorHandler", err)
	}
	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, editorPageName, editorView{Meme: service.toView(meme)})
}

func (service *FrontendService) moderationHandler(ctx echo.Context) error {
	memes, err := service.pendingViews(ctx)
	if err != nil {
		return service.htmxError(ctx, "moderationHandler", err)
	}
	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, moderationPageName, memes)
}

// htmxUploadMemeHandler stores the upload and sends the browser on to the
// editor of the new meme.
func (service *FrontendService) htmxUploadMemeHandler(ctx echo.Context) error {
	file, err := ctx.FormFile("image")
	if err != nil {
		slog.Error("htmxUploadMemeHandler: failed to get uploaded file",
			"status", http.StatusBadRequest, "error", err)
		return ctx.String(http.StatusBadRequest, "Failed to get uploaded file")
	}
	if limit := service.config.Editor.MaxUploadBytes; limit > 0 && file.Size > limit {
		slog.Warn("htmxUploadMemeHandler: upload too large", "size", file.Size, "limit", limit)
		return ctx.String(http.StatusRequestEntityTooLarge, "File is too large")
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("htmxUploadMemeHandler: failed to open uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.String(http.StatusInternalServerError, "Failed to open uploaded file")
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("htmxUploadMemeHandler: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	image, err := io.ReadAll(src)
	if err != nil {
		slog.Error("htmxUploadMemeHandler: failed to read uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.String(http.StatusInternalServerError, "Failed to read uploaded file")
	}

	title := strings.TrimSpace(ctx.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	}
	meme, err := service.coreService.AddMeme(ctx.Request().Context(), title, image)
	if err != nil {
		return service.htmxError(ctx, "htmxUploadMemeHandler", err)
	}

	ctx.Response().Header().Set("HX-Redirect", "/editor/"+meme.ID)
	return ctx.HTML(http.StatusOK, fmt.Sprintf(`<div id="upload-result">Uploaded file: %s</div>`, html.EscapeString(file.Filename)))
}

func (service *FrontendService) htmxFeedHandler(ctx echo.Context) error {
	view, err := service.buildFeedView(ctx)
	if err != nil {
		return service.htmxError(ctx, "htmxFeedHandler", err)
	}
	// Prevent caching so the latest memes are always shown
	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, feedFragmentName, view)
}

func (service *FrontendService) htmxPendingHandler(ctx echo.Context) error {
	memes, err := service.pendingViews(ctx)
	if err != nil {
		return service.htmxError(ctx, "htmxPendingHandler", err)
	}
	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, pendingFragment, memes)
}

func (service *FrontendService) htmxLikeHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	likes, err := service.coreService.Like(ctx.Request().Context(), id)
	if err != nil {
		return service.htmxError(ctx, "htmxLikeHandler", err)
	}
	return ctx.Render(http.StatusOK, likeFragmentName, memeView{ID: id, Likes: likes})
}

func (service *FrontendService) htmxMoveHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	direction, err := core.ParseDirection(ctx.QueryParam("dir"))
	if err != nil {
		slog.Warn("htmxMoveHandler: invalid params", "id", id, "dir", ctx.QueryParam("dir"))
		return ctx.String(http.StatusBadRequest, "Invalid parameters")
	}
	if err := service.coreService.MoveMeme(ctx.Request().Context(), id, direction); err != nil {
		return service.htmxError(ctx, "htmxMoveHandler", err)
	}
	return service.htmxFeedHandler(ctx)
}

func (service *FrontendService) htmxStatusHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	status, err := database.ParseStatus(ctx.FormValue("status"))
	if err != nil {
		slog.Warn("htmxStatusHandler: invalid status", "id", id, "status", ctx.FormValue("status"))
		return ctx.String(http.StatusBadRequest, "Invalid status")
	}
	if err := service.coreService.Moderate(ctx.Request().Context(), id, status); err != nil {
		return service.htmxError(ctx, "htmxStatusHandler", err)
	}
	return service.htmxPendingHandler(ctx)
}

func (service *FrontendService) htmxDeleteHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := service.coreService.DeleteMeme(ctx.Request().Context(), id); err != nil {
		return service.htmxError(ctx, "htmxDeleteHandler", err)
	}
	if ctx.QueryParam("from") == "pending" {
		return service.htmxPendingHandler(ctx)
	}
	return service.htmxFeedHandler(ctx)
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}

func (service *FrontendService) buildFeedView(ctx echo.Context) (*feedView, error) {
	query, err := backend.ParseFeedQuery(ctx)
	if err != nil {
		return nil, err
	}
	page, err := service.coreService.ListFeed(ctx.Request().Context(), query)
	if err != nil {
		return nil, err
	}
	view := &feedView{
		Since:    ctx.FormValue("since"),
		Page:     page.Page,
		NextPage: page.Page + 1,
		PrevPage: page.Page - 1,
		HasNext:  page.HasNext,
		HasPrev:  page.Page > 1,
		Total:    page.Total,
	}
	for i, m := range page.Memes {
		v := service.toView(m)
		v.First = i == 0 && page.Page <= 1
		v.Last = i == len(page.Memes)-1 && !page.HasNext
		view.Memes = append(view.Memes, v)
	}
	return view, nil
}

func (service *FrontendService) pendingViews(ctx echo.Context) ([]memeView, error) {
	memes, err := service.coreService.ListPending(ctx.Request().Context())
	if err != nil {
		return nil, err
	}
	views := make([]memeView, 0, len(memes))
	for _, m := range memes {
		views = append(views, service.toView(m))
	}
	return views, nil
}

func (service *FrontendService) toView(m *database.Meme) memeView {
	region, err := m.Region()
	if err != nil {
		region = editor.FullRegion()
	}
	overlays, err := m.OverlayPositions()
	if err != nil {
		overlays = editor.DefaultOverlays()
	}
	return memeView{
		ID:         m.ID,
		Title:      m.Title,
		TopText:    m.TopText,
		BottomText: m.BottomText,
		Status:     string(m.Status),
		Likes:      m.Likes,
		Region:     region,
		Overlays:   overlays,
		Created:    service.formatCreated(m.Created()),
		Editable:   m.Status == database.StatusPending,
		Timestamp:  service.timestampNanoStr(),
	}
}

// htmxError answers with a short text and the status code matching err.
func (service *FrontendService) htmxError(ctx echo.Context, handler string, err error) error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}
	status := backend.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error(handler+": request failed", "status", status, "id", ctx.Param("id"), "error", err)
	} else {
		slog.Warn(handler+": request rejected", "status", status, "id", ctx.Param("id"), "error", err)
	}
	return ctx.String(status, backend.UserMessage(err))
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

func (service *FrontendService) timestampNanoStr() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

func (service *FrontendService) formatCreated(t time.Time) string {
	if !t.IsZero() && t.Unix() > 0 {
		return t.Format("2006-01-02")
	}
	return "unknown"
}

// formatPercent trims trailing zeros so regions render as 12.5% or 40%.
func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}
