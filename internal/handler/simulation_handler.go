package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"metabolic-model-be/internal/dto"
	"metabolic-model-be/internal/pkg/logger"
	"metabolic-model-be/internal/pkg/serverutils"
	"metabolic-model-be/internal/service"
	internalWS "metabolic-model-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// closeFrame ends a session.
var closeFrame = []byte("close")

type SimulationHandler struct {
	models service.IModelService
	hub    *internalWS.Hub
	auth   *serverutils.Authenticator
	logger logger.ILogger
}

func NewSimulationHandler(models service.IModelService, hub *internalWS.Hub, auth *serverutils.Authenticator, log logger.ILogger) *SimulationHandler {
	return &SimulationHandler{
		models: models,
		hub:    hub,
		auth:   auth,
		logger: log,
	}
}

func (h *SimulationHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/models/:model_id", h.ServeWs)
}

// ServeWs opens a simulation session on the model and upgrades the
// connection. Browsers can pass the token as the "token" query parameter.
func (h *SimulationHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	caller := serverutils.CallerFrom(c)
	if token := c.Query("token"); token != "" {
		parsed, err := h.auth.Parse(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}
		caller = parsed
	}

	modelID := c.Params("model_id")
	session, err := h.models.OpenSession(c.UserContext(), modelID, caller)
	if err != nil {
		return err
	}

	sessionID := uuid.New()
	err = websocket.New(func(conn *websocket.Conn) {
		defer session.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		h.logger.Info("SimulationHandler", "Starting WebSocket session", map[string]interface{}{
			"session_id": sessionID.String(),
			"model_id":   modelID,
		})
		internalWS.ServeWs(h.hub, conn, sessionID, modelID, h.frameHandler(ctx, session), h.logger)
		h.logger.Info("SimulationHandler", "WebSocket session ended", map[string]interface{}{"session_id": sessionID.String()})
	})(c)
	if err != nil {
		session.Close()
	}
	return err
}

func (h *SimulationHandler) frameHandler(ctx context.Context, session *service.Session) internalWS.FrameHandler {
	return func(frame []byte) ([]byte, bool) {
		if bytes.Equal(bytes.TrimSpace(frame), closeFrame) {
			return nil, true
		}
		return h.answer(ctx, session, frame), false
	}
}

// answer never fails the session: bad frames get an error reply.
func (h *SimulationHandler) answer(ctx context.Context, session *service.Session, frame []byte) []byte {
	var msg dto.ModelMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		h.logger.Warn("SimulationHandler", "Malformed frame", map[string]interface{}{"model_id": session.ModelID(), "error": err.Error()})
		return errorFrame("Malformed message: " + err.Error())
	}
	if err := serverutils.ValidateRequest(msg); err != nil {
		return errorFrame(err.Error())
	}

	out, err := session.Handle(ctx, &msg)
	if err != nil {
		var failed *service.ModificationFailedError
		if errors.As(err, &failed) {
			return mustMarshal(map[string]interface{}{"error": "Modification failed", "errors": failed.Errors})
		}
		if serverutils.StatusFor(err) == fiber.StatusInternalServerError {
			h.logger.Error("SimulationHandler", "Failed to answer message", map[string]interface{}{"model_id": session.ModelID(), "error": err.Error()})
			return errorFrame("Internal server error")
		}
		return errorFrame(err.Error())
	}

	reply, err := json.Marshal(out)
	if err != nil {
		h.logger.Error("SimulationHandler", "Failed to encode reply", map[string]interface{}{"error": err.Error()})
		return errorFrame("Internal server error")
	}
	return reply
}

func errorFrame(message string) []byte {
	return mustMarshal(map[string]interface{}{"error": message})
}

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
