package backend

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/cinememe/internal/backend/database"
	"github.com/jo-hoe/cinememe/internal/backend/session"
	"github.com/jo-hoe/cinememe/internal/common"
	"github.com/jo-hoe/cinememe/internal/core"
	"github.com/jo-hoe/cinememe/internal/editor"
)

type APIService struct {
	config      *core.ServiceConfig
	coreService *core.CoreService
	metrics     *common.Metrics
}

func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService, metrics *common.Metrics) *APIService {
	return &APIService{
		config:      config,
		coreService: coreService,
		metrics:     metrics,
	}
}

type MemeResponse struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	TopText    string            `json:"topText"`
	BottomText string            `json:"bottomText"`
	Status     string            `json:"status"`
	Likes      int64             `json:"likes"`
	CropRegion editor.CropRegion `json:"cropRegion"`
	Overlays   editor.Overlays   `json:"overlays"`
	CreatedAt  time.Time         `json:"createdAt"`
	ImageURL   string            `json:"imageUrl"`
	ThumbURL   string            `json:"thumbnailUrl"`
}

type CropSessionResponse struct {
	MemeID        string            `json:"memeId"`
	Region        editor.CropRegion `json:"region"`
	Original      editor.CropRegion `json:"original"`
	Active        bool              `json:"active"`
	NaturalWidth  int               `json:"naturalWidth"`
	NaturalHeight int               `json:"naturalHeight"`
}

type RegionResponse struct {
	Region editor.CropRegion `json:"region"`
}

type FeedResponse struct {
	Memes   []MemeResponse `json:"memes"`
	Page    int            `json:"page"`
	Size    int            `json:"size"`
	Total   int64          `json:"total"`
	HasNext bool           `json:"hasNext"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type beginDragRequest struct {
	Mode string     `json:"mode" validate:"required"`
	X    float64    `json:"x"`
	Y    float64    `json:"y"`
	Box  editor.Box `json:"box"`
}

type pointRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type dragRequest struct {
	X   float64    `json:"x"`
	Y   float64    `json:"y"`
	Box editor.Box `json:"box"`
}

type submitRequest struct {
	TopText    string `json:"topText" validate:"max=200"`
	BottomText string `json:"bottomText" validate:"max=200"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type moveRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	// Set probe route
	e.GET("/probe", s.probeHandler)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	api := e.Group("/api")
	api.POST("/memes", s.uploadHandler)
	api.GET("/memes/:id", s.getMemeHandler)
	api.DELETE("/memes/:id", s.deleteHandler)
	api.GET("/memes/:id/image", s.imageHandler)
	api.GET("/memes/:id/thumbnail", s.thumbnailHandler)

	api.POST("/memes/:id/crop", s.openCropHandler)
	api.GET("/memes/:id/crop", s.getCropHandler)
	api.DELETE("/memes/:id/crop", s.cancelCropHandler)
	api.POST("/memes/:id/crop/begin", s.beginDragHandler)
	api.POST("/memes/:id/crop/move", s.moveDragHandler)
	api.POST("/memes/:id/crop/end", s.endDragHandler)
	api.POST("/memes/:id/crop/confirm", s.confirmCropHandler)
	api.GET("/memes/:id/crop/ws", s.cropStreamHandler)

	api.PUT("/memes/:id/overlays/:caption", s.overlayHandler)
	api.POST("/memes/:id/overlays/:caption/drag", s.overlayDragHandler)
	api.POST("/memes/:id/submit", s.submitHandler)
	api.POST("/memes/:id/status", s.statusHandler)
	api.POST("/memes/:id/like", s.likeHandler)
	api.POST("/memes/:id/move", s.moveHandler)

	api.GET("/feed", s.feedHandler)
	api.GET("/pending", s.pendingHandler)
}

func (s *APIService) probeHandler(c echo.Context) error {
	if !s.coreService.Ready(c.Request().Context()) {
		return c.String(http.StatusServiceUnavailable, "database unavailable")
	}
	return c.String(http.StatusOK, "ok")
}

func (s *APIService) uploadHandler(c echo.Context) error {
	data, err := readUpload(c, "image", s.config.Editor.MaxUploadBytes)
	if err != nil {
		return err
	}
	meme, err := s.coreService.AddMeme(c.Request().Context(), strings.TrimSpace(c.FormValue("title")), data)
	if err != nil {
		return s.fail(c, "upload", err)
	}
	return c.JSON(http.StatusCreated, toMemeResponse(meme))
}

func (s *APIService) getMemeHandler(c echo.Context) error {
	meme, err := s.coreService.GetMeme(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, "get meme", err)
	}
	return c.JSON(http.StatusOK, toMemeResponse(meme))
}

func (s *APIService) deleteHandler(c echo.Context) error {
	if err := s.coreService.DeleteMeme(c.Request().Context(), c.Param("id")); err != nil {
		return s.fail(c, "delete", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// imageHandler serves one rendition. With download=true the response is an
// attachment named after the meme title.
func (s *APIService) imageHandler(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	data, err := s.coreService.Image(ctx, id, core.ImageKind(c.QueryParam("kind")))
	if err != nil {
		return s.fail(c, "image", err)
	}
	contentType := http.DetectContentType(data)
	if c.QueryParam("download") == "true" {
		meme, err := s.coreService.GetMeme(ctx, id)
		if err != nil {
			return s.fail(c, "image", err)
		}
		c.Response().Header().Set(echo.HeaderContentDisposition,
			fmt.Sprintf("attachment; filename=%q", downloadName(meme.Title, id, contentType)))
	}
	c.Response().Header().Set("Cache-Control", "no-cache")
	return c.Blob(http.StatusOK, contentType, data)
}

func (s *APIService) thumbnailHandler(c echo.Context) error {
	data, err := s.coreService.Thumbnail(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, "thumbnail", err)
	}
	return c.Blob(http.StatusOK, http.DetectContentType(data), data)
}

func (s *APIService) openCropHandler(c echo.Context) error {
	cropSession, err := s.coreService.OpenCrop(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, "open crop", err)
	}
	return c.JSON(http.StatusOK, toCropSessionResponse(cropSession))
}

func (s *APIService) getCropHandler(c echo.Context) error {
	cropSession, err := s.coreService.CropSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, "get crop", err)
	}
	return c.JSON(http.StatusOK, toCropSessionResponse(cropSession))
}

func (s *APIService) cancelCropHandler(c echo.Context) error {
	region, err := s.coreService.CancelCrop(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, "cancel crop", err)
	}
	return c.JSON(http.StatusOK, RegionResponse{Region: region})
}

func (s *APIService) beginDragHandler(c echo.Context) error {
	var req beginDragRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	mode, err := editor.ParseDragMode(req.Mode)
	if err != nil {
		return s.fail(c, "begin drag", err)
	}
	region, err := s.coreService.BeginCropDrag(c.Request().Context(), c.Param("id"), mode, editor.Point{X: req.X, Y: req.Y}, req.Box)
	if err != nil {
		return s.fail(c, "begin drag", err)
	}
	return c.JSON(http.StatusOK, RegionResponse{Region: region})
}

func (s *APIService) moveDragHandler(c echo.Context) error {
	var req pointRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	region, err := s.coreService.MoveCropDrag(c.Request().Context(), c.Param("id"), editor.Point{X: req.X, Y: req.Y})
	if err != nil {
		return s.fail(c, "move drag", err)
	}
	return c.JSON(http.StatusOK, RegionResponse{Region: region})
}

func (s *APIService) endDragHandler(c echo.Context) error {
	region, err := s.coreService.EndCropDrag(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, "end drag", err)
	}
	return c.JSON(http.StatusOK, RegionResponse{Region: region})
}

func (s *APIService) confirmCropHandler(c echo.Context) error {
	meme, err := s.coreService.ConfirmCrop(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, "confirm crop", err)
	}
	return c.JSON(http.StatusOK, toMemeResponse(meme))
}

func (s *APIService) overlayHandler(c echo.Context) error {
	caption, err := editor.ParseCaption(c.Param("caption"))
	if err != nil {
		return s.fail(c, "overlay", err)
	}
	var req pointRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	overlays, err := s.coreService.SetOverlayPosition(c.Request().Context(), c.Param("id"), caption, editor.OverlayPosition{X: req.X, Y: req.Y})
	if err != nil {
		return s.fail(c, "overlay", err)
	}
	return c.JSON(http.StatusOK, overlays)
}

// overlayDragHandler places a caption at a pointer position given in client
// pixels together with the bounding box of the rendered image.
func (s *APIService) overlayDragHandler(c echo.Context) error {
	caption, err := editor.ParseCaption(c.Param("caption"))
	if err != nil {
		return s.fail(c, "overlay drag", err)
	}
	var req dragRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	overlays, err := s.coreService.DragOverlay(c.Request().Context(), c.Param("id"), caption, editor.Point{X: req.X, Y: req.Y}, req.Box)
	if err != nil {
		return s.fail(c, "overlay drag", err)
	}
	return c.JSON(http.StatusOK, overlays)
}

func (s *APIService) submitHandler(c echo.Context) error {
	var req submitRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	meme, err := s.coreService.SubmitMeme(c.Request().Context(), c.Param("id"), req.TopText, req.BottomText)
	if err != nil {
		return s.fail(c, "submit", err)
	}
	return c.JSON(http.StatusOK, toMemeResponse(meme))
}

func (s *APIService) statusHandler(c echo.Context) error {
	var req statusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	status, err := database.ParseStatus(req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.coreService.Moderate(c.Request().Context(), c.Param("id"), status); err != nil {
		return s.fail(c, "moderate", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIService) likeHandler(c echo.Context) error {
	likes, err := s.coreService.Like(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, "like", err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"likes": likes})
}

func (s *APIService) moveHandler(c echo.Context) error {
	var req moveRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	direction, err := core.ParseDirection(req.Direction)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.coreService.MoveMeme(c.Request().Context(), c.Param("id"), direction); err != nil {
		return s.fail(c, "move", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIService) feedHandler(c echo.Context) error {
	query, err := ParseFeedQuery(c)
	if err != nil {
		return err
	}
	page, err := s.coreService.ListFeed(c.Request().Context(), query)
	if err != nil {
		return s.fail(c, "feed", err)
	}
	resp := FeedResponse{
		Memes:   make([]MemeResponse, 0, len(page.Memes)),
		Page:    page.Page,
		Size:    page.Size,
		Total:   page.Total,
		HasNext: page.HasNext,
	}
	for _, m := range page.Memes {
		resp.Memes = append(resp.Memes, toMemeResponse(m))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *APIService) pendingHandler(c echo.Context) error {
	memes, err := s.coreService.ListPending(c.Request().Context())
	if err != nil {
		return s.fail(c, "pending", err)
	}
	resp := make([]MemeResponse, 0, len(memes))
	for _, m := range memes {
		resp = append(resp, toMemeResponse(m))
	}
	return c.JSON(http.StatusOK, resp)
}

// ParseFeedQuery reads since (a duration such as 24h or 7d), page and size
// from the query string or a submitted form.
func ParseFeedQuery(c echo.Context) (core.FeedQuery, error) {
	var query core.FeedQuery
	if err := echo.FormFieldBinder(c).
		Int("page", &query.Page).
		Int("size", &query.Size).
		BindError(); err != nil {
		return query, echo.NewHTTPError(http.StatusBadRequest, "invalid paging parameters")
	}
	if since := c.FormValue("since"); since != "" && since != "all" {
		d, err := parseSince(since)
		if err != nil {
			return query, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		query.Since = d
	}
	return query, nil
}

// parseSince extends time.ParseDuration with a day unit.
func parseSince(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid since: %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid since: %q", s)
	}
	return d, nil
}

func (s *APIService) fail(c echo.Context, action string, err error) error {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("api request failed", "action", action, "id", c.Param("id"), "error", err)
	} else {
		slog.Debug("api request rejected", "action", action, "id", c.Param("id"), "status", status, "error", err)
	}
	return c.JSON(status, ErrorResponse{Error: UserMessage(err)})
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "received malformed request body")
	}
	return c.Validate(req)
}

// readUpload reads a multipart file field, refusing files above limit.
func readUpload(c echo.Context, field string, limit int64) ([]byte, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("missing file field %q", field))
	}
	if limit > 0 && fileHeader.Size > limit {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "upload too large")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "could not read upload")
	}
	defer func() {
		_ = file.Close()
	}()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "could not read upload")
	}
	return data, nil
}

func toMemeResponse(m *database.Meme) MemeResponse {
	region, err := m.Region()
	if err != nil {
		slog.Warn("stored crop region unreadable", "id", m.ID, "error", err)
		region = editor.FullRegion()
	}
	overlays, err := m.OverlayPositions()
	if err != nil {
		slog.Warn("stored overlays unreadable", "id", m.ID, "error", err)
		overlays = editor.DefaultOverlays()
	}
	return MemeResponse{
		ID:         m.ID,
		Title:      m.Title,
		TopText:    m.TopText,
		BottomText: m.BottomText,
		Status:     string(m.Status),
		Likes:      m.Likes,
		CropRegion: region,
		Overlays:   overlays,
		CreatedAt:  m.Created(),
		ImageURL:   path.Join("/api/memes", m.ID, "image"),
		ThumbURL:   path.Join("/api/memes", m.ID, "thumbnail"),
	}
}

func toCropSessionResponse(s *session.Session) CropSessionResponse {
	e := editor.RestoreCropEditor(s.Editor)
	return CropSessionResponse{
		MemeID:        s.MemeID,
		Region:        e.Region(),
		Original:      e.Original(),
		Active:        e.Active(),
		NaturalWidth:  s.NaturalWidth,
		NaturalHeight: s.NaturalHeight,
	}
}

// downloadName builds a file name such as "heres-johnny.png" from a title.
func downloadName(title, id, contentType string) string {
	base := slug.Make(title)
	if base == "" {
		base = "meme-" + id
	}
	ext := ".png"
	if contentType == "image/jpeg" {
		ext = ".jpg"
	}
	return base + ext
}
