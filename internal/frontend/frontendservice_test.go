package frontend

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jo-hoe/cinememe/internal/backend/database"
	"github.com/jo-hoe/cinememe/internal/common"
	"github.com/jo-hoe/cinememe/internal/core"
)

func newTestFrontend(t *testing.T) (*echo.Echo, *core.CoreService) {
	t.Helper()
	config := core.DefaultConfig()
	reg := prometheus.NewRegistry()
	coreService, err := core.NewCoreService(context.Background(), config, common.NewMetricsWith(reg, reg))
	if err != nil {
		t.Fatalf("failed to create core service: %v", err)
	}
	t.Cleanup(func() { _ = coreService.Close() })

	e := echo.New()
	NewFrontendService(config, coreService).SetRoutes(e)
	return e, coreService
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 32))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func addMeme(t *testing.T, svc *core.CoreService, title string) *database.Meme {
	t.Helper()
	meme, err := svc.AddMeme(context.Background(), title, pngBytes(t))
	if err != nil {
		t.Fatalf("failed to add meme: %v", err)
	}
	return meme
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRootRedirect(t *testing.T) {
	e, _ := newTestFrontend(t)
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("expected 301, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/"+MainPageName {
		t.Fatalf("unexpected redirect target %q", loc)
	}
}

func TestIndexShowsOnlyApprovedMemes(t *testing.T) {
	e, svc := newTestFrontend(t)
	ctx := context.Background()
	approved := addMeme(t, svc, "The <Shining>")
	addMeme(t, svc, "Still pending")
	if err := svc.Moderate(ctx, approved.ID, database.StatusApproved); err != nil {
		t.Fatalf("failed to approve: %v", err)
	}

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/"+MainPageName, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "The &lt;Shining&gt;") {
		t.Fatalf("expected escaped approved title in feed")
	}
	if strings.Contains(body, "Still pending") {
		t.Fatalf("pending meme must not appear in the feed")
	}
}

func TestFeedFragmentRejectsBadSince(t *testing.T) {
	e, _ := newTestFrontend(t)
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/htmx/feed?since=soon", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestEditorPage(t *testing.T) {
	e, svc := newTestFrontend(t)
	meme := addMeme(t, svc, "Jaws")

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/editor/"+meme.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"left:0%;top:0%;width:100%;height:100%",
		"left:50%;top:10%",
		"left:50%;top:90%",
		`id="crop-open"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("editor page is missing %q", want)
		}
	}

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/editor/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown meme, got %d", rec.Code)
	}
}

func TestEditorPageReadOnlyAfterModeration(t *testing.T) {
	e, svc := newTestFrontend(t)
	meme := addMeme(t, svc, "Alien")
	if err := svc.Moderate(context.Background(), meme.ID, database.StatusRejected); err != nil {
		t.Fatalf("failed to reject: %v", err)
	}
	body := serve(e, httptest.NewRequest(http.MethodGet, "/editor/"+meme.ID, nil)).Body.String()
	if strings.Contains(body, `id="crop-open"`) {
		t.Fatalf("moderated meme must not offer cropping")
	}
	if !strings.Contains(body, "can no longer be edited") {
		t.Fatalf("expected read-only notice")
	}
}

func TestUploadRedirectsToEditor(t *testing.T) {
	e, svc := newTestFrontend(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "casablanca.png")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(pngBytes(t)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/htmx/uploadMeme", &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())

	rec := serve(e, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	redirect := rec.Header().Get("HX-Redirect")
	if !strings.HasPrefix(redirect, "/editor/") {
		t.Fatalf("expected editor redirect, got %q", redirect)
	}
	meme, err := svc.GetMeme(context.Background(), strings.TrimPrefix(redirect, "/editor/"))
	if err != nil {
		t.Fatalf("uploaded meme not stored: %v", err)
	}
	if meme.Title != "casablanca" {
		t.Fatalf("expected title from file name, got %q", meme.Title)
	}
}

func TestModerationFlow(t *testing.T) {
	e, svc := newTestFrontend(t)
	meme := addMeme(t, svc, "Psycho")

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/moderation", nil))
	if !strings.Contains(rec.Body.String(), "Psycho") {
		t.Fatalf("expected pending meme on moderation page")
	}

	form := url.Values{"status": {"approved"}}
	req := httptest.NewRequest(http.MethodPost, "/htmx/meme/"+meme.ID+"/status", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec = serve(e, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Nothing to review") {
		t.Fatalf("expected empty pending list after approval")
	}

	rec = serve(e, httptest.NewRequest(http.MethodPost, "/htmx/meme/"+meme.ID+"/like", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "&#9829; 1") {
		t.Fatalf("unexpected like response %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/htmx/meme/"+meme.ID+"/status", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	if rec = serve(e, req); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second moderation, got %d", rec.Code)
	}
}

func TestMoveAndDelete(t *testing.T) {
	e, svc := newTestFrontend(t)
	ctx := context.Background()
	older := addMeme(t, svc, "Vertigo")
	newer := addMeme(t, svc, "Rear Window")
	for _, id := range []string{older.ID, newer.ID} {
		if err := svc.Moderate(ctx, id, database.StatusApproved); err != nil {
			t.Fatalf("failed to approve: %v", err)
		}
	}

	rec := serve(e, httptest.NewRequest(http.MethodPost, "/htmx/meme/"+older.ID+"/move?dir=up", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if strings.Index(body, "Vertigo") > strings.Index(body, "Rear Window") {
		t.Fatalf("expected moved meme first")
	}

	rec = serve(e, httptest.NewRequest(http.MethodPost, "/htmx/meme/"+older.ID+"/move?dir=sideways", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = serve(e, httptest.NewRequest(http.MethodDelete, "/htmx/meme/"+older.ID, nil))
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "Vertigo") {
		t.Fatalf("expected deleted meme gone from feed, got %d", rec.Code)
	}
}

func TestIcon(t *testing.T) {
	e, _ := newTestFrontend(t)
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/icon.svg", nil))
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentType) != "image/svg+xml" {
		t.Fatalf("unexpected icon response %d %q", rec.Code, rec.Header().Get(echo.HeaderContentType))
	}
}

func TestFormatPercent(t *testing.T) {
	for in, want := range map[float64]string{0: "0%", 12.5: "12.5%", 100: "100%"} {
		if got := formatPercent(in); got != want {
			t.Fatalf("formatPercent(%v) = %q, want %q", in, got, want)
		}
	}
}
