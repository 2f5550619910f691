package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"blgu-assess-go/internal/service"
	"blgu-assess-go/pkg/log"
	"blgu-assess-go/pkg/token"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// AssessmentHandler serves checklist evaluation over REST and a live
// websocket that re-evaluates as the assessor fills the form.
type AssessmentHandler struct {
	assessments service.AssessmentService
	userService service.UserService
	jwtManager  *token.JWTManager
	debounce    time.Duration
}

func NewAssessmentHandler(assessments service.AssessmentService, userService service.UserService, jwtManager *token.JWTManager, debounce time.Duration) *AssessmentHandler {
	return &AssessmentHandler{
		assessments: assessments,
		userService: userService,
		jwtManager:  jwtManager,
		debounce:    debounce,
	}
}

// Evaluate returns the suggested verdict without recording anything.
func (h *AssessmentHandler) Evaluate(c *gin.Context) {
	var req service.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Evaluate: Invalid request payload, error: %v", err)
		respond(c, http.StatusBadRequest, "invalid request payload", nil)
		return
	}
	res, err := h.assessments.Evaluate(c.Request.Context(), req)
	if err != nil {
		fail(c, "Evaluate", err)
		return
	}
	success(c, res)
}

// SubmitVerdict evaluates and queues the verdict for recording. The response
// is 202 since the record is written by the verdict consumer.
func (h *AssessmentHandler) SubmitVerdict(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "invalid request payload", nil)
		return
	}
	res, eventID, err := h.assessments.SubmitVerdict(c.Request.Context(), c.Param("assessmentId"), req, user)
	if err != nil {
		fail(c, "SubmitVerdict", err)
		return
	}
	respond(c, http.StatusAccepted, "verdict queued", gin.H{"eventId": eventID, "result": res})
}

// ListVerdicts returns the recorded verdicts of an assessment, or only the
// latest per indicator with ?latest=true.
func (h *AssessmentHandler) ListVerdicts(c *gin.Context) {
	assessmentID := c.Param("assessmentId")
	if c.Query("latest") == "true" {
		latest, err := h.assessments.LatestVerdicts(c.Request.Context(), assessmentID)
		if err != nil {
			fail(c, "LatestVerdicts", err)
			return
		}
		success(c, latest)
		return
	}
	records, err := h.assessments.ListVerdicts(c.Request.Context(), assessmentID)
	if err != nil {
		fail(c, "ListVerdicts", err)
		return
	}
	success(c, records)
}

// liveMessage is what the live websocket sends back.
type liveMessage struct {
	Type      string                    `json:"type"`
	Data      *service.EvaluationResult `json:"data,omitempty"`
	Message   string                    `json:"message,omitempty"`
	Timestamp int64                     `json:"timestamp"`
}

// Live upgrades to a websocket authenticated by the :token path parameter.
// Each text frame is an EvaluateRequest; frames arriving within the debounce
// window collapse into one evaluation of the most recent.
func (h *AssessmentHandler) Live(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyKind(tokenString, token.KindAccess)
	if err != nil || h.userService.IsTokenRevoked(c.Request.Context(), tokenString) {
		respond(c, http.StatusUnauthorized, "invalid token", nil)
		return
	}
	if _, err := h.userService.GetProfile(claims.Username); err != nil {
		respond(c, http.StatusUnauthorized, "user not found", nil)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", err)
		return
	}
	defer conn.Close()
	log.Infof("live evaluation connected, user: %s", claims.Username)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	frames := readFrames(ctx, conn)

	timer := time.NewTimer(time.Hour)
	stopTimer(timer)
	var pending *service.EvaluateRequest

	for {
		select {
		case frame, open := <-frames:
			if !open {
				return
			}
			var req service.EvaluateRequest
			if err := json.Unmarshal(frame, &req); err != nil {
				if !writeLive(conn, liveMessage{Type: "error", Message: "invalid evaluation request"}) {
					return
				}
				continue
			}
			pending = &req
			if h.debounce <= 0 {
				if !h.evaluateLive(ctx, conn, pending) {
					return
				}
				pending = nil
				continue
			}
			stopTimer(timer)
			timer.Reset(h.debounce)
		case <-timer.C:
			if pending == nil {
				continue
			}
			if !h.evaluateLive(ctx, conn, pending) {
				return
			}
			pending = nil
		}
	}
}

func (h *AssessmentHandler) evaluateLive(ctx context.Context, conn *websocket.Conn, req *service.EvaluateRequest) bool {
	res, err := h.assessments.Evaluate(ctx, *req)
	if err != nil {
		msg := err.Error()
		if statusOf(err) == http.StatusInternalServerError {
			log.Errorf("live evaluation failed: %v", err)
			msg = "evaluation failed"
		}
		return writeLive(conn, liveMessage{Type: "error", Message: msg})
	}
	return writeLive(conn, liveMessage{Type: "result", Data: res})
}

// readFrames pumps incoming text frames into a channel that is closed when
// the peer goes away or ctx ends.
func readFrames(ctx context.Context, conn *websocket.Conn) <-chan []byte {
	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Warnf("live evaluation read ended: %v", err)
				return
			}
			select {
			case out <- message:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func writeLive(conn *websocket.Conn, msg liveMessage) bool {
	msg.Timestamp = time.Now().UnixMilli()
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error("marshal live message", err)
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("live evaluation write failed: %v", err)
		return false
	}
	return true
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
