package backend

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/cinememe/internal/backend/database"
	"github.com/jo-hoe/cinememe/internal/editor"
)

const (
	cropStreamWriteWait = 10 * time.Second
	cropStreamReadLimit = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// CropMessage is one pointer event sent by the crop editor over the stream.
type CropMessage struct {
	Type string     `json:"type"`
	Mode string     `json:"mode,omitempty"`
	X    float64    `json:"x"`
	Y    float64    `json:"y"`
	Box  editor.Box `json:"box"`
}

// CropReply answers every CropMessage with the region the client should
// render, or an error text.
type CropReply struct {
	Type   string             `json:"type"`
	Region *editor.CropRegion `json:"region,omitempty"`
	Error  string             `json:"error,omitempty"`
	Status int                `json:"status,omitempty"`
}

// cropStreamHandler carries begin, move and end events for a single meme
// over one connection so that pointer moves do not cost a request each.
func (s *APIService) cropStreamHandler(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()
	if _, err := s.coreService.CropSession(ctx, id); err != nil {
		return s.fail(c, "crop stream", err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("crop stream upgrade failed", "id", id, "error", err)
		return nil
	}
	defer func() {
		_ = conn.Close()
	}()
	conn.SetReadLimit(cropStreamReadLimit)
	slog.Debug("crop stream opened", "id", id)

	for {
		var msg CropMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("crop stream closed unexpectedly", "id", id, "error", err)
			}
			return nil
		}

		reply := s.handleCropMessage(c, id, msg)
		_ = conn.SetWriteDeadline(time.Now().Add(cropStreamWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			slog.Warn("crop stream write failed", "id", id, "error", err)
			return nil
		}
		if msg.Type == "confirm" || msg.Type == "cancel" {
			if reply.Error == "" {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, msg.Type))
				return nil
			}
		}
	}
}

func (s *APIService) handleCropMessage(c echo.Context, id string, msg CropMessage) CropReply {
	ctx := c.Request().Context()
	var (
		region editor.CropRegion
		err    error
	)
	switch msg.Type {
	case "begin":
		var mode editor.DragMode
		mode, err = editor.ParseDragMode(msg.Mode)
		if err == nil {
			region, err = s.coreService.BeginCropDrag(ctx, id, mode, editor.Point{X: msg.X, Y: msg.Y}, msg.Box)
		}
	case "move":
		region, err = s.coreService.MoveCropDrag(ctx, id, editor.Point{X: msg.X, Y: msg.Y})
	case "end":
		region, err = s.coreService.EndCropDrag(ctx, id)
	case "cancel":
		region, err = s.coreService.CancelCrop(ctx, id)
	case "confirm":
		var meme *database.Meme
		meme, err = s.coreService.ConfirmCrop(ctx, id)
		if err == nil {
			region, err = meme.Region()
		}
	default:
		return CropReply{Type: msg.Type, Error: "unknown message type", Status: http.StatusBadRequest}
	}

	if err != nil {
		return CropReply{Type: msg.Type, Error: UserMessage(err), Status: HTTPStatus(err)}
	}
	return CropReply{Type: msg.Type, Region: &region}
}
