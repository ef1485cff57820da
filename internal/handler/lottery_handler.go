package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"facilityops/lottery/internal/lottery"
	"facilityops/lottery/internal/model"
	"facilityops/lottery/internal/service"
	"facilityops/lottery/pkg/response"
)

type LotteryHandler struct {
	lotteryService service.LotteryService
	notifier       service.Notifier
	logger         *zap.Logger
}

func NewLotteryHandler(lotteryService service.LotteryService, notifier service.Notifier, logger *zap.Logger) *LotteryHandler {
	return &LotteryHandler{
		lotteryService: lotteryService,
		notifier:       notifier,
		logger:         logger.Named("http"),
	}
}

type AddSourceRequest struct {
	Pool     model.PoolType       `json:"pool" binding:"required"`
	Type     model.InvitationType `json:"type" binding:"required"`
	Quantity int                  `json:"quantity"`
}

type SetTargetRequest struct {
	Type    model.TargetType `json:"type" binding:"required"`
	ID      string           `json:"id"`
	TeamIDs []string         `json:"team_ids"`
}

type SetMethodRequest struct {
	Method model.Method `json:"method" binding:"required"`
}

func (h *LotteryHandler) fail(c *gin.Context, err error) {
	writeError(c, h.logger, h.notifier, err)
}

// sessionCall runs one session operation for the acting user on the path scope.
func (h *LotteryHandler) sessionCall(c *gin.Context, op func(ctx context.Context, scope model.Scope, userID string) (*service.SessionView, error)) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}
	scope, ok := scopeFromPath(c)
	if !ok {
		return
	}
	view, err := op(c.Request.Context(), scope, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, view)
}

// GetSession returns the caller's draft and run queue.
func (h *LotteryHandler) GetSession(c *gin.Context) {
	h.sessionCall(c, h.lotteryService.Session)
}

func (h *LotteryHandler) AddSource(c *gin.Context) {
	var req AddSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	h.sessionCall(c, func(ctx context.Context, scope model.Scope, userID string) (*service.SessionView, error) {
		return h.lotteryService.AddSource(ctx, scope, userID, req.Pool, req.Type, req.Quantity)
	})
}

func (h *LotteryHandler) RemoveSource(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	h.sessionCall(c, func(ctx context.Context, scope model.Scope, userID string) (*service.SessionView, error) {
		return h.lotteryService.RemoveSource(ctx, scope, userID, id)
	})
}

func (h *LotteryHandler) SetTarget(c *gin.Context) {
	var req SetTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	target := model.TargetSpec{Type: req.Type, ID: req.ID, TeamIDs: req.TeamIDs}
	h.sessionCall(c, func(ctx context.Context, scope model.Scope, userID string) (*service.SessionView, error) {
		return h.lotteryService.SetTarget(ctx, scope, userID, target)
	})
}

func (h *LotteryHandler) SetMethod(c *gin.Context) {
	var req SetMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	h.sessionCall(c, func(ctx context.Context, scope model.Scope, userID string) (*service.SessionView, error) {
		return h.lotteryService.SetMethod(ctx, scope, userID, req.Method)
	})
}

// QueueRule moves the draft onto the run queue.
func (h *LotteryHandler) QueueRule(c *gin.Context) {
	h.sessionCall(c, h.lotteryService.QueueRule)
}

func (h *LotteryHandler) DeleteRule(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	h.sessionCall(c, func(ctx context.Context, scope model.Scope, userID string) (*service.SessionView, error) {
		return h.lotteryService.DeleteRule(ctx, scope, userID, id)
	})
}

func (h *LotteryHandler) ResetDraft(c *gin.Context) {
	h.sessionCall(c, h.lotteryService.ResetDraft)
}

func (h *LotteryHandler) DiscardRun(c *gin.Context) {
	h.sessionCall(c, h.lotteryService.DiscardRun)
}

// GetPool returns the available invitations of the scope.
func (h *LotteryHandler) GetPool(c *gin.Context) {
	scope, ok := scopeFromPath(c)
	if !ok {
		return
	}
	view, err := h.lotteryService.Pool(c.Request.Context(), scope)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, view)
}

func (h *LotteryHandler) GetHistory(c *gin.Context) {
	scope, ok := scopeFromPath(c)
	if !ok {
		return
	}
	list, err := h.lotteryService.History(c.Request.Context(), scope)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

// StreamPool pushes a "pool" event now and after every change.
func (h *LotteryHandler) StreamPool(c *gin.Context) {
	scope, ok := scopeFromPath(c)
	if !ok {
		return
	}
	s := newEventStream(c)
	err := h.lotteryService.WatchPool(c.Request.Context(), scope, func(v lottery.PoolView) error {
		s.send("pool", v)
		return nil
	})
	h.finishStream(c, s, err)
}

// StreamHistory pushes a "history" event now and after every change.
func (h *LotteryHandler) StreamHistory(c *gin.Context) {
	scope, ok := scopeFromPath(c)
	if !ok {
		return
	}
	s := newEventStream(c)
	err := h.lotteryService.WatchHistory(c.Request.Context(), scope, func(list []model.LotteryPackage) error {
		s.send("history", list)
		return nil
	})
	h.finishStream(c, s, err)
}

// Run executes the caller's queue and streams the reveal. The final event is
// "session" with the completed queue, "cancelled" or "error".
func (h *LotteryHandler) Run(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}
	scope, ok := scopeFromPath(c)
	if !ok {
		return
	}

	s := newEventStream(c)
	view, err := h.lotteryService.Run(c.Request.Context(), scope, userID, func(ev lottery.Event) {
		s.send(string(ev.Type), ev)
	})
	if errors.Is(err, context.Canceled) {
		s.send("cancelled", gin.H{"message": "run cancelled"})
		return
	}
	if err != nil {
		h.finishStream(c, s, err)
		return
	}
	s.send("session", view)
}

func (h *LotteryHandler) Confirm(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}
	scope, ok := scopeFromPath(c)
	if !ok {
		return
	}
	pkg, err := h.lotteryService.Confirm(c.Request.Context(), scope, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessMessage(c, "lottery confirmed", pkg)
}

func (h *LotteryHandler) CancelPackage(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}
	scope, ok := scopeFromPath(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "package_id")
	if !ok {
		return
	}
	pkg, err := h.lotteryService.CancelPackage(c.Request.Context(), scope, userID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessMessage(c, "lottery package cancelled", pkg)
}

// finishStream reports err on the stream, or as a plain response when nothing
// was streamed yet.
func (h *LotteryHandler) finishStream(c *gin.Context, s *eventStream, err error) {
	if err == nil || c.Request.Context().Err() != nil {
		return
	}
	if !s.started {
		h.fail(c, err)
		return
	}
	if errorStatus(err) == 0 {
		h.logger.Error("stream failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		s.send("error", gin.H{"message": "internal server error"})
		return
	}
	s.send("error", gin.H{"message": err.Error()})
}

// eventStream writes server-sent events, setting the stream headers on the
// first event.
type eventStream struct {
	c       *gin.Context
	started bool
}

func newEventStream(c *gin.Context) *eventStream {
	return &eventStream{c: c}
}

func (s *eventStream) send(name string, data interface{}) {
	if !s.started {
		h := s.c.Writer.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.started = true
	}
	s.c.SSEvent(name, data)
	s.c.Writer.Flush()
}
