package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ccp-p/classroom-timeline/internal/controller"
	"github.com/ccp-p/classroom-timeline/pkg/store"
	"github.com/ccp-p/classroom-timeline/pkg/utils"
)

// apiServer 教师面板的JSON接口
type apiServer struct {
	engine *controller.Engine
}

func newAPIServer(engine *controller.Engine) *apiServer {
	return &apiServer{engine: engine}
}

// ServeHTTP 实现 http.Handler 接口
func (s *apiServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	utils.Debug("接收到 API 请求: %s %s", r.Method, r.URL.Path)

	// 移除 /api/ 前缀，方便匹配
	trimmedPath := strings.TrimPrefix(r.URL.Path, "/api/")

	switch {
	case trimmedPath == "anchors" && r.Method == http.MethodPost:
		s.handleCreateAnchor(w, r)
	case trimmedPath == "anchors/resolve" && r.Method == http.MethodPost:
		s.handleResolveAnchor(w, r)
	case trimmedPath == "anchors/cancel" && r.Method == http.MethodPost:
		s.handleCancelAnchor(w, r)
	case trimmedPath == "hotspots" && r.Method == http.MethodGet:
		s.handleHotspots(w, r)
	case trimmedPath == "ground" && r.Method == http.MethodPost:
		s.handleGround(w, r)
	case trimmedPath == "answer" && r.Method == http.MethodPost:
		s.handleAnswer(w, r)
	case trimmedPath == "segments" && r.Method == http.MethodGet:
		s.handleSegments(w, r)
	default:
		http.NotFound(w, r)
		utils.Debug("未找到 API 处理器: %s", r.URL.Path)
	}
}

type createAnchorRequest struct {
	SessionID   string `json:"session_id"`
	StudentID   string `json:"student_id"`
	TimestampMs int64  `json:"timestamp_ms"`
	Type        string `json:"type"`
}

type anchorActionRequest struct {
	SessionID string `json:"session_id"`
	AnchorID  string `json:"anchor_id"`
}

type groundRequest struct {
	SessionID    string `json:"session_id"`
	ResponseText string `json:"response_text"`
}

func (s *apiServer) handleCreateAnchor(w http.ResponseWriter, r *http.Request) {
	var req createAnchorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败")
		return
	}
	if req.SessionID == "" || req.StudentID == "" {
		writeError(w, http.StatusBadRequest, "session_id和student_id不能为空")
		return
	}

	anchor, err := s.engine.Store.CreateAnchor(req.SessionID, req.StudentID, req.TimestampMs, req.Type)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, anchor)
}

func (s *apiServer) handleResolveAnchor(w http.ResponseWriter, r *http.Request) {
	var req anchorActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败")
		return
	}

	if err := s.engine.Store.ResolveAnchor(req.SessionID, req.AnchorID, time.Now()); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (s *apiServer) handleCancelAnchor(w http.ResponseWriter, r *http.Request) {
	var req anchorActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败")
		return
	}

	if err := s.engine.Store.CancelAnchor(req.SessionID, req.AnchorID, time.Now()); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *apiServer) handleHotspots(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "缺少session_id参数")
		return
	}

	hotspots, err := s.engine.ComputeHotspots(sessionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"hotspots":   hotspots,
	})
}

func (s *apiServer) handleGround(w http.ResponseWriter, r *http.Request) {
	var req groundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败")
		return
	}

	citations, err := s.engine.GroundCitations(req.SessionID, req.ResponseText)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": req.SessionID,
		"citations":  citations,
	})
}

type answerRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

func (s *apiServer) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question不能为空")
		return
	}

	answer, err := s.engine.AnswerQuestion(r.Context(), req.SessionID, req.Question)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

func (s *apiServer) handleSegments(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "缺少session_id参数")
		return
	}

	segments, err := s.engine.Store.GetSegments(sessionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"segments":   segments,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		utils.Error("写入响应失败: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeStoreError 把存储层错误映射为合适的HTTP状态码
func writeStoreError(w http.ResponseWriter, err error) {
	var transitionErr *store.AnchorTransitionError

	switch {
	case errors.Is(err, store.ErrSessionNotFound), errors.Is(err, store.ErrAnchorNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &transitionErr):
		// 被拒绝的状态流转（如超过宽限期的撤销）
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
