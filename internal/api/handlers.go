package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/JustJay7/uyap-extractor/internal/cache"
	"github.com/JustJay7/uyap-extractor/internal/config"
	"github.com/JustJay7/uyap-extractor/internal/database"
	"github.com/JustJay7/uyap-extractor/internal/extractor"
	"github.com/JustJay7/uyap-extractor/internal/persistence"
	"github.com/JustJay7/uyap-extractor/internal/session"
	"github.com/JustJay7/uyap-extractor/internal/sorgu"
	"github.com/JustJay7/uyap-extractor/pkg/logger"
)

// Deps are the components the handlers drive.
type Deps struct {
	DB         *gorm.DB
	Store      *persistence.Store
	Cache      cache.Cache
	Sessions   *session.Manager
	Dispatcher *session.Dispatcher
	Extractor  *extractor.Extractor
	Registry   *sorgu.Registry
	Logger     *logger.Logger
	Config     *config.Config
}

// Handlers holds all HTTP handlers
type Handlers struct {
	Deps
}

// NewHandlers creates a new handlers instance
func NewHandlers(deps Deps) *Handlers {
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	return &Handlers{Deps: deps}
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

func (r sessionRequest) key() string {
	if r.SessionID == "" {
		return session.DefaultKey
	}
	return r.SessionID
}

type queryRequest struct {
	sessionRequest
	CaseNumber string   `json:"case_number" binding:"required"`
	Types      []string `json:"sorgu_tipleri"`
}

type batchRequest struct {
	sessionRequest
	CaseNumbers []string `json:"case_numbers" binding:"required,min=1"`
	Types       []string `json:"sorgu_tipleri"`
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"message": message,
	})
}

// bindOptional binds a JSON body when there is one.
func bindOptional(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, http.StatusBadRequest, "Geçersiz istek: "+err.Error())
		return false
	}
	return true
}

// claim returns the live session for key, reserved for the caller.
func (h *Handlers) claim(c *gin.Context, key string) (*session.Handle, func(), bool) {
	handle, err := h.Sessions.Get(key)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, session.ErrSessionDead) {
			status = http.StatusGone
		}
		fail(c, status, session.UserMessage(err))
		return nil, nil, false
	}
	release, ok := handle.TryUse()
	if !ok {
		fail(c, http.StatusConflict, session.UserMessage(session.ErrSessionBusy))
		return nil, nil, false
	}
	return handle, release, true
}

func (h *Handlers) runContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.Config.RunTimeout)
}

// enabledTypes turns the requested type codes into a set; none means all.
func (h *Handlers) enabledTypes(codes []string) (map[sorgu.Type]bool, error) {
	enabled := make(map[sorgu.Type]bool)
	if len(codes) == 0 {
		for _, t := range h.Registry.Types() {
			enabled[t] = true
		}
		return enabled, nil
	}
	for _, code := range codes {
		t, err := sorgu.ParseType(code)
		if err != nil {
			return nil, err
		}
		enabled[t] = true
	}
	return enabled, nil
}

// invalidate drops cached reads after a run wrote to the database.
func (h *Handlers) invalidate() {
	cases := h.Cache.DeletePrefix(cache.CasePrefix)
	results := h.Cache.DeletePrefix(cache.ResultPrefix)
	h.Logger.Debug("Cache invalidated", "cases", cases, "results", results)
}

func (h *Handlers) logRun(ctx context.Context, operation, caseNumber string, results int, err error) {
	entry := database.QueryLog{
		Operation:  operation,
		CaseNumber: caseNumber,
		Success:    err == nil,
		Results:    results,
		QueryTime:  time.Now(),
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	h.Store.LogRun(context.WithoutCancel(ctx), entry)
}

// Login starts a browser session and waits for the manual e-signature login
func (h *Handlers) Login(c *gin.Context) {
	var req sessionRequest
	if !bindOptional(c, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.Config.LoginTimeout)
	defer cancel()

	handle, err := h.Sessions.Acquire(ctx, req.key())
	if err != nil {
		h.Logger.Error("Failed to start session", "session", req.key(), "error", err)
		fail(c, http.StatusInternalServerError, "Tarayıcı başlatılamadı: "+err.Error())
		return
	}
	if handle.LoggedIn() {
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"session_id": handle.Key,
			"message":    "UYAP oturumu zaten açık",
		})
		return
	}

	release, ok := handle.TryUse()
	if !ok {
		fail(c, http.StatusConflict, session.UserMessage(session.ErrSessionBusy))
		return
	}
	defer release()

	locators := session.DefaultLocators()
	if err := session.Login(ctx, handle, h.Config.LoginURL, locators.Menu, h.Config.LoginTimeout); err != nil {
		h.Logger.Warn("Login not completed", "session", handle.Key, "error", err)
		fail(c, http.StatusUnauthorized, "UYAP girişi tamamlanamadı: "+err.Error())
		return
	}

	h.Logger.Info("Logged in", "session", handle.Key)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"session_id": handle.Key,
		"message":    "UYAP girişi tamamlandı",
	})
}

// Logout closes a session and its browser
func (h *Handlers) Logout(c *gin.Context) {
	var req sessionRequest
	if !bindOptional(c, &req) {
		return
	}

	if err := h.Sessions.Release(req.key()); err != nil {
		fail(c, http.StatusNotFound, session.UserMessage(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Oturum kapatıldı",
	})
}

// Status lists the live sessions
func (h *Handlers) Status(c *gin.Context) {
	sessions := h.Sessions.Status()
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// SearchFiles reads the portal's case list
func (h *Handlers) SearchFiles(c *gin.Context) {
	var req sessionRequest
	if !bindOptional(c, &req) {
		return
	}
	handle, release, ok := h.claim(c, req.key())
	if !ok {
		return
	}
	defer release()

	ctx, cancel := h.runContext(c)
	defer cancel()

	files, err := h.Extractor.SearchFiles(ctx, handle.Controller())
	h.logRun(ctx, "search-files", "", len(files), err)
	if err != nil {
		h.Logger.Error("Case list failed", "session", handle.Key, "error", err)
		fail(c, http.StatusInternalServerError, "Dosya listesi okunamadı: "+err.Error())
		return
	}

	if files == nil {
		files = []database.File{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"files":   files,
		"count":   len(files),
	})
}

// ExtractData reads every listed case with its details and persists them
func (h *Handlers) ExtractData(c *gin.Context) {
	var req sessionRequest
	if !bindOptional(c, &req) {
		return
	}
	handle, release, ok := h.claim(c, req.key())
	if !ok {
		return
	}
	defer release()

	ctx, cancel := h.runContext(c)
	defer cancel()

	ex, err := h.Extractor.ExtractData(ctx, handle.Controller())
	if err != nil {
		h.logRun(ctx, "extract-data", "", 0, err)
		h.Logger.Error("Case extraction failed", "session", handle.Key, "error", err)
		fail(c, http.StatusInternalServerError, "Dosya verileri çekilemedi: "+err.Error())
		return
	}
	h.logRun(ctx, "extract-data", "", ex.Files, nil)
	h.invalidate()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    ex,
	})
}

// Query runs the selected query types for every party of one case
func (h *Handlers) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Geçersiz istek: "+err.Error())
		return
	}
	enabled, err := h.enabledTypes(req.Types)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if _, _, err := session.ParseCaseNumber(req.CaseNumber); err != nil {
		fail(c, http.StatusBadRequest, "Geçersiz dosya numarası: "+req.CaseNumber)
		return
	}

	handle, release, ok := h.claim(c, req.key())
	if !ok {
		return
	}
	defer release()

	ctx, cancel := h.runContext(c)
	defer cancel()

	report, err := h.Dispatcher.PerformQuery(ctx, handle, req.CaseNumber, enabled)
	if err != nil {
		h.logRun(ctx, "query", req.CaseNumber, 0, err)
		h.Logger.Error("Query run failed", "case", req.CaseNumber, "error", err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	h.logRun(ctx, "query", report.CaseNumber, report.Results(), nil)
	h.invalidate()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    report,
	})
}

// TriggerSorgulama runs the selected query types for several cases in turn
func (h *Handlers) TriggerSorgulama(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Geçersiz istek: "+err.Error())
		return
	}
	enabled, err := h.enabledTypes(req.Types)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	handle, release, ok := h.claim(c, req.key())
	if !ok {
		return
	}
	defer release()

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.Config.RunTimeout*time.Duration(len(req.CaseNumbers)))
	defer cancel()

	reports, failures := h.Dispatcher.PerformBatch(ctx, handle, req.CaseNumbers, enabled)
	for _, r := range reports {
		h.logRun(ctx, "trigger-sorgulama", r.CaseNumber, r.Results(), nil)
	}
	errs := make(map[string]string, len(failures))
	for cn, err := range failures {
		h.logRun(ctx, "trigger-sorgulama", cn, 0, err)
		errs[cn] = err.Error()
	}
	if len(reports) > 0 {
		h.invalidate()
	}
	if reports == nil {
		reports = []*session.Report{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  len(failures) == 0,
		"data":     reports,
		"failures": errs,
		"message":  fmt.Sprintf("%d/%d dosya sorgulandı", len(reports), len(req.CaseNumbers)),
	})
}

// ListCases returns stored cases, newest first
func (h *Handlers) ListCases(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	type casePage struct {
		Files []database.File
		Total int64
	}
	key := cache.CaseListKey(page, limit)
	if cached, found := cache.GetAs[casePage](h.Cache, key); found {
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"data":       cached.Files,
			"pagination": gin.H{"page": page, "limit": limit, "total": cached.Total},
			"fromCache":  true,
		})
		return
	}

	files, total, err := h.Store.ListCases(c.Request.Context(), page, limit)
	if err != nil {
		h.Logger.Error("Failed to list cases", "error", err)
		fail(c, http.StatusInternalServerError, "Dosyalar okunamadı")
		return
	}
	if files == nil {
		files = []database.File{}
	}
	h.Cache.Set(key, casePage{Files: files, Total: total})

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       files,
		"pagination": gin.H{"page": page, "limit": limit, "total": total},
		"fromCache":  false,
	})
}

// GetCase returns one case with its details and debtors
func (h *Handlers) GetCase(c *gin.Context) {
	id := c.Param("id")
	key := cache.CaseKey(id)
	if cached, found := cache.GetAs[*database.File](h.Cache, key); found {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": cached, "fromCache": true})
		return
	}

	file, err := h.Store.GetCase(c.Request.Context(), id)
	if errors.Is(err, persistence.ErrNotFound) {
		fail(c, http.StatusNotFound, "Dosya bulunamadı")
		return
	}
	if err != nil {
		h.Logger.Error("Failed to load case", "file_id", id, "error", err)
		fail(c, http.StatusInternalServerError, "Dosya okunamadı")
		return
	}
	h.Cache.Set(key, file)

	c.JSON(http.StatusOK, gin.H{"success": true, "data": file, "fromCache": false})
}

// DebtorResults returns every stored query result of a debtor
func (h *Handlers) DebtorResults(c *gin.Context) {
	id := c.Param("id")
	key := cache.ResultKey(id, "")
	if cached, found := cache.GetAs[[]persistence.StoredResult](h.Cache, key); found {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": cached, "fromCache": true})
		return
	}

	results, err := h.Store.QueryResults(c.Request.Context(), id)
	if err != nil {
		h.Logger.Error("Failed to load query results", "borclu_id", id, "error", err)
		fail(c, http.StatusInternalServerError, "Sorgu sonuçları okunamadı")
		return
	}
	h.Cache.Set(key, results)

	c.JSON(http.StatusOK, gin.H{"success": true, "data": results, "fromCache": false})
}

// DebtorResult returns the stored result of one query type for a debtor
func (h *Handlers) DebtorResult(c *gin.Context) {
	id := c.Param("id")
	t, err := sorgu.ParseType(c.Param("tip"))
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	key := cache.ResultKey(id, string(t))
	if cached, found := cache.GetAs[*persistence.StoredResult](h.Cache, key); found {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": cached, "fromCache": true})
		return
	}

	result, err := h.Store.QueryResult(c.Request.Context(), id, string(t))
	if errors.Is(err, persistence.ErrNotFound) {
		fail(c, http.StatusNotFound, "Sorgu sonucu bulunamadı")
		return
	}
	if err != nil {
		h.Logger.Error("Failed to load query result", "borclu_id", id, "sorgu_tipi", t, "error", err)
		fail(c, http.StatusInternalServerError, "Sorgu sonucu okunamadı")
		return
	}
	h.Cache.Set(key, result)

	c.JSON(http.StatusOK, gin.H{"success": true, "data": result, "fromCache": false})
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	var count int64
	dbHealthy := h.DB.Model(&database.QueryLog{}).Count(&count).Error == nil

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": dbHealthy,
		"sessions": len(h.Sessions.Status()),
		"cache":    h.Cache.Stats(),
		"time":     time.Now().Unix(),
	})
}

// CacheStats returns cache statistics
func (h *Handlers) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   h.Cache.Stats(),
	})
}

// QueryTypes lists the registered query types in run order
func (h *Handlers) QueryTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    h.Registry.Types(),
	})
}
