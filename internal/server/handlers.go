package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/examiz/internal/grading"
	"github.com/abhisek/examiz/internal/questiongen"
	"github.com/abhisek/examiz/internal/remote"
	"github.com/abhisek/examiz/internal/session"
	"github.com/abhisek/examiz/internal/spacedrep"
	"github.com/abhisek/examiz/internal/store"
)

// maxPriorQuestions bounds the bank texts sent to the generator for
// deduplication.
const maxPriorQuestions = 50

// fail writes an error response. 5xx causes are logged and hidden.
func (s *Server) fail(c *gin.Context, status int, err error) {
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", "op", c.FullPath(), "err", err)
		msg = http.StatusText(status)
	}
	c.JSON(status, remote.ErrorResponse{Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, spacedrep.ErrNotQueued):
		return http.StatusNotFound
	case errors.Is(err, grading.ErrEmptyAnswer), errors.Is(err, grading.ErrInvalidQuality):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrMalformedState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, questiongen.ErrNoValidQuestions):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func questionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, remote.ErrorResponse{Error: "invalid question id"})
		return 0, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (s *Server) getSession(c *gin.Context) {
	st, err := s.store.Sessions().Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, session.ErrMalformedState) {
			s.logger.Warn("stored session is malformed", "session_key", c.Param("key"), "err", err)
		}
		s.fail(c, statusFor(err), err)
		return
	}
	if st == nil {
		c.JSON(http.StatusOK, remote.SessionResponse{Exists: false})
		return
	}
	updated := st.UpdatedAt
	c.JSON(http.StatusOK, remote.SessionResponse{
		Exists:       true,
		Topic:        st.Topic,
		Questions:    st.Questions,
		Results:      st.Results,
		CurrentIndex: st.CurrentIndex,
		UpdatedAt:    &updated,
	})
}

func (s *Server) putSession(c *gin.Context) {
	var snap session.Snapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		c.JSON(http.StatusBadRequest, remote.ErrorResponse{Error: err.Error()})
		return
	}
	if len(snap.Questions) == 0 {
		c.JSON(http.StatusBadRequest, remote.ErrorResponse{Error: session.ErrEmptySession.Error()})
		return
	}
	stamp, err := s.store.Sessions().Put(c.Request.Context(), c.Param("key"), snap)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, remote.PutSessionResponse{UpdatedAt: stamp})
}

func (s *Server) deleteSession(c *gin.Context) {
	if err := s.store.Sessions().Delete(c.Request.Context(), c.Param("key")); err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) submit(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	var req remote.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, remote.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := s.grading.Submit(c.Request.Context(), id, req.SelectedAnswer, req.Quality)
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) review(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	var req remote.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, remote.ErrorResponse{Error: err.Error()})
		return
	}
	rs, err := s.grading.Review(c.Request.Context(), id, req.Quality)
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, remote.ReviewResponse{
		QuestionID:   rs.QuestionID,
		IntervalDays: rs.IntervalDays,
		EaseFactor:   rs.EaseFactor,
		NextReviewAt: rs.NextReviewAt,
	})
}

func (s *Server) toggleFavorite(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	fav, err := s.store.Questions().ToggleFavorite(c.Request.Context(), id)
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, remote.FavoriteResponse{IsFavorite: fav})
}

func (s *Server) deleteQuestion(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	if err := s.store.Questions().Delete(c.Request.Context(), id); err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) finish(c *gin.Context) {
	var req remote.FinishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, remote.ErrorResponse{Error: err.Error()})
		return
	}
	log, err := s.grading.Finish(c.Request.Context(), req.Topic, req.SessionData)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, remote.FinishResponse{ID: log.ID, Answered: log.Answered, Correct: log.Correct})
}

func (s *Server) generate(c *gin.Context) {
	if s.generator == nil {
		c.JSON(http.StatusServiceUnavailable, remote.ErrorResponse{Error: "question generation is not configured"})
		return
	}
	var req remote.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, remote.ErrorResponse{Error: err.Error()})
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		c.JSON(http.StatusBadRequest, remote.ErrorResponse{Error: "topic is required"})
		return
	}

	res, err := generateInto(c.Request.Context(), s.generator, s.store.Questions(), req.Topic, req.NumQuestions)
	if err != nil {
		s.logger.Warn("generation failed", "op", "generate", "topic", req.Topic, "err", err)
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		c.JSON(status, remote.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) study(c *gin.Context) {
	qs, err := s.grading.Study(c.Request.Context(), intQuery(c, "reviews"), intQuery(c, "new"))
	s.questions(c, qs, err)
}

func (s *Server) gapTest(c *gin.Context) {
	qs, err := s.grading.GapTest(c.Request.Context(), intQuery(c, "limit"))
	s.questions(c, qs, err)
}

func (s *Server) wrongReview(c *gin.Context) {
	qs, err := s.grading.WrongReview(c.Request.Context(), intQuery(c, "limit"))
	s.questions(c, qs, err)
}

func (s *Server) questions(c *gin.Context, qs []session.Question, err error) {
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	if qs == nil {
		qs = []session.Question{}
	}
	c.JSON(http.StatusOK, remote.QuestionsResponse{Questions: qs})
}

func (s *Server) wrongQuestions(c *gin.Context) {
	items, err := s.grading.WrongQuestions(c.Request.Context(), intQuery(c, "limit"))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	out := make([]remote.WrongQuestion, len(items))
	for i, it := range items {
		out[i] = remote.WrongQuestion{
			Question:     it.Question,
			ReviewCount:  it.Review.ReviewCount,
			IntervalDays: it.Review.IntervalDays,
			NextReviewAt: it.Review.NextReviewAt,
			Status:       string(it.Status),
		}
	}
	c.JSON(http.StatusOK, remote.WrongQuestionsResponse{Items: out})
}

func (s *Server) sessionLogs(c *gin.Context) {
	logs, err := s.store.History().Logs(c.Request.Context(), intQuery(c, "limit"))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	out := make([]remote.SessionLog, len(logs))
	for i, l := range logs {
		out[i] = remote.SessionLog{
			ID:         l.ID,
			Topic:      l.Topic,
			Answered:   l.Answered,
			Correct:    l.Correct,
			FinishedAt: l.FinishedAt,
		}
	}
	c.JSON(http.StatusOK, remote.SessionLogsResponse{Sessions: out})
}
