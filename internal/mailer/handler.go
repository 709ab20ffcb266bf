package mailer

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/courteous/edge-consult-backend/internal/httpx"
)

// Handler holds the contact-form and subscription HTTP handlers. Both
// notify the site owner's inbox.
type Handler struct {
	mail     Sender
	ownerTo  string
	validate *validator.Validate
}

func NewHandler(mail Sender, ownerTo string) *Handler {
	return &Handler{
		mail:     mail,
		ownerTo:  ownerTo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type subscribeRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message"`
}

// Subscribe handles POST /subscribe.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	body := fmt.Sprintf(`
		<h3>New Subscriber</h3>
		<ul>
			<li><strong>Name:</strong> %s</li>
			<li><strong>Email:</strong> %s</li>
		</ul>`,
		html.EscapeString(req.Name), html.EscapeString(req.Email))

	h.send(w, r, "New Newsletter Subscription", body)
}

// Contact handles POST /contact.
func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	body := fmt.Sprintf(`
		<h3>Contact Details</h3>
		<ul>
			<li><strong>Name:</strong> %s</li>
			<li><strong>Email:</strong> %s</li>
		</ul>
		<h3>Message</h3>
		<p>%s</p>`,
		html.EscapeString(req.Name), html.EscapeString(req.Email), html.EscapeString(req.Message))

	h.send(w, r, "New Message from Contact Form", body)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (subscribeRequest, bool) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Invalid request body.")
		return req, false
	}
	if err := h.validate.Struct(&req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Please enter a valid email address.")
		return req, false
	}
	return req, true
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request, subject, body string) {
	if err := h.mail.Send(r.Context(), h.ownerTo, subject, body); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("send notification mail")
		httpx.Message(w, http.StatusInternalServerError, "Server error. Failed to send message.")
		return
	}
	httpx.Message(w, http.StatusOK, "Message sent successfully!")
}
