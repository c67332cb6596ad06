package handler

import (
	"errors"
	"net/http"

	"github.com/capitalize-ai/artifact-chat/internal/middleware"
	"github.com/capitalize-ai/artifact-chat/internal/model"
	"github.com/capitalize-ai/artifact-chat/internal/service"
)

// MessageHandler handles the send-message endpoint.
type MessageHandler struct {
	turns     *service.TurnService
	maxMemory int64
}

// NewMessageHandler creates a new message handler. maxMemory bounds the
// multipart bytes held in memory before spilling to temp files.
func NewMessageHandler(turns *service.TurnService, maxMemory int64) *MessageHandler {
	return &MessageHandler{
		turns:     turns,
		maxMemory: maxMemory,
	}
}

// Send handles POST /api/chat/message
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	req := &model.SendMessageRequest{
		ConversationID: r.FormValue("conversation_id"),
		Content:        r.FormValue("message"),
	}
	if err := middleware.ValidateConversationID(req.ConversationID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["files"] {
			file, err := readFilePart(fh)
			if err != nil {
				writeError(w, http.StatusBadRequest, "failed to read uploaded file")
				return
			}
			req.Files = append(req.Files, file)
		}
	}

	conv, err := h.turns.Send(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, &model.SendMessageResponse{Conversation: conv})
}
