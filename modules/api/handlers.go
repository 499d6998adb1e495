package api

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/realtime-chat/modules/auth"
	"github.com/example/realtime-chat/modules/dispatch"
)

const defaultHistoryLimit = 50

// healthHandler handles GET /health.
func (m *Module) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":            "api",
			"connected_clients": m.hub.ClientCount(),
		},
	})
}

// requireUser resolves the caller's identity from the bearer token or
// token query parameter. REST uses the same gate as the socket.
func (m *Module) requireUser(c *fiber.Ctx) (*auth.AuthorizedConnection, *ErrorResponse) {
	token := c.Query("token")
	if header := c.Get("Authorization"); header != "" {
		token = strings.TrimPrefix(header, "Bearer ")
	}

	authorized, rejection := m.gate.Admit(token, "")
	if rejection != nil {
		return nil, &ErrorResponse{
			Error:   string(rejection.Reason),
			Message: "Authentication required",
		}
	}
	return authorized, nil
}

// getMessages handles GET /api/v1/conversations/:id/messages.
func (m *Module) getMessages(c *fiber.Ctx) error {
	authorized, authErr := m.requireUser(c)
	if authErr != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(authErr)
	}

	conversationID := c.Params("id")
	limit := defaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	resp, err := m.dispatch.History(c.UserContext(), dispatch.HistoryRequest{
		ConversationID: conversationID,
		UserID:         authorized.User.ID,
		Limit:          limit,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "history_failed",
			Message: "Failed to load messages",
		})
	}
	if !resp.OK {
		return c.Status(statusForCode(resp.Error)).JSON(ErrorResponse{
			Error:   resp.Error,
			Message: "Cannot read conversation",
		})
	}

	return c.JSON(MessageListResponse{
		ConversationID: conversationID,
		Messages:       resp.Messages,
	})
}

// createGroup handles POST /api/v1/groups.
func (m *Module) createGroup(c *fiber.Ctx) error {
	authorized, authErr := m.requireUser(c)
	if authErr != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(authErr)
	}

	var req CreateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	resp, err := m.dispatch.CreateGroup(c.UserContext(), dispatch.CreateGroupRequest{
		Name:           req.Name,
		AdminID:        authorized.User.ID,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "create_failed",
			Message: "Failed to create group",
		})
	}
	if !resp.OK {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   resp.Error,
			Message: "Cannot create group",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(resp.Conversation)
}

// getPresence handles GET /api/v1/presence/:user_id.
func (m *Module) getPresence(c *fiber.Ctx) error {
	if _, authErr := m.requireUser(c); authErr != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(authErr)
	}

	userID := c.Params("user_id")
	online := m.presence.Registry().IsOnline(userID)
	resp := PresenceResponse{UserID: userID, Online: online}
	if !online {
		resp.LastSeen = m.presence.LastSeen(c.UserContext(), userID)
	}
	return c.JSON(resp)
}

// statusForCode maps dispatch error codes to HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case dispatch.CodeConversationNotFound:
		return fiber.StatusNotFound
	case dispatch.CodeNotParticipant:
		return fiber.StatusForbidden
	case dispatch.CodeStoreUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusBadRequest
	}
}
