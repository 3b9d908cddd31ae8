package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/analysis"
	"github.com/KaramelBytes/tabstep-cli/internal/cleaning"
	"github.com/KaramelBytes/tabstep-cli/internal/ml"
	"github.com/KaramelBytes/tabstep-cli/internal/session"
	"github.com/KaramelBytes/tabstep-cli/internal/table"
	"github.com/KaramelBytes/tabstep-cli/internal/upload"
	"github.com/KaramelBytes/tabstep-cli/internal/validate"
)

// maxUpload bounds request bodies carrying files or scripts.
const maxUpload = 64 << 20

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// StepView is one action log entry as listed by the API.
type StepView struct {
	Step    action.Entry `json:"step"`
	Summary string       `json:"summary"`
}

func view(e action.Entry) StepView { return StepView{Step: e, Summary: action.Describe(e.Action)} }

// statusFor maps a session error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	var confirm *session.ConfirmationError
	var invalid *validate.Error
	switch {
	case errors.As(err, &confirm):
		return http.StatusConflict, "CONFIRMATION_REQUIRED"
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "NO_DATA"
	case errors.Is(err, session.ErrStepNotFound):
		return http.StatusNotFound, "STEP_NOT_FOUND"
	case errors.As(err, &invalid):
		return http.StatusBadRequest, "VALIDATION_FAILED"
	case errors.Is(err, upload.ErrUnsupported):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT"
	case errors.Is(err, upload.ErrEmpty):
		return http.StatusBadRequest, "EMPTY_FILE"
	case errors.Is(err, cleaning.ErrUnknownOperation):
		return http.StatusBadRequest, "UNKNOWN_OPERATION"
	case errors.Is(err, cleaning.ErrColumnNotFound), errors.Is(err, cleaning.ErrDuplicateColumn),
		errors.Is(err, cleaning.ErrEmptyTable):
		return http.StatusBadRequest, "CLEANING_FAILED"
	case errors.Is(err, table.ErrDuplicateColumn):
		return http.StatusBadRequest, "VALIDATION_FAILED"
	case errors.Is(err, action.ErrUnknownChart), errors.Is(err, action.ErrUnknownTask),
		errors.Is(err, action.ErrMissingField), errors.Is(err, action.ErrInvalidSetting),
		errors.Is(err, ml.ErrUnknownTask):
		return http.StatusBadRequest, "INVALID_ACTION"
	case errors.Is(err, ml.ErrTooFewSamples), errors.Is(err, session.ErrNoActions):
		return http.StatusUnprocessableEntity, "UNPROCESSABLE"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func (s *Server) fail(c *gin.Context, err error) {
	code, errCode := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: errCode}
	var confirm *session.ConfirmationError
	if errors.As(err, &confirm) {
		resp.Details = "resend with \"confirm\": true to apply"
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "request_id", c.GetString("request_id"), "path", c.FullPath(), "error", err)
	} else {
		s.logger.Warn("request rejected", "request_id", c.GetString("request_id"), "path", c.FullPath(), "error", err)
	}
	c.JSON(code, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "INVALID_REQUEST"})
}

func stepID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 0 {
		badRequest(c, fmt.Sprintf("invalid step id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data_loaded": s.sess.Store().Exists()})
}

func (s *Server) handleSteps(c *gin.Context) {
	entries := s.sess.Steps()
	out := make([]StepView, 0, len(entries))
	for _, e := range entries {
		out = append(out, view(e))
	}
	c.JSON(http.StatusOK, gin.H{"steps": out})
}

func (s *Server) handleStep(c *gin.Context) {
	id, ok := stepID(c)
	if !ok {
		return
	}
	e, err := s.sess.Step(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view(e))
}

func (s *Server) handleToggleStep(c *gin.Context) {
	id, ok := stepID(c)
	if !ok {
		return
	}
	e, err := s.sess.ToggleStep(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view(e))
}

func (s *Server) handleDeleteStep(c *gin.Context) {
	id, ok := stepID(c)
	if !ok {
		return
	}
	if err := s.sess.DeleteStep(id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// fileRequest is the JSON alternative to a multipart upload. Contents is a
// base64 data URI.
type fileRequest struct {
	Filename string `json:"filename" binding:"required"`
	Contents string `json:"contents" binding:"required"`
}

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUpload)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		name, data, err := formFile(c)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := s.sess.Upload(name, data)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}
	var req fileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "expected multipart field \"file\" or JSON {filename, contents}")
		return
	}
	res, err := s.sess.UploadDataURI(req.Contents, req.Filename)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func formFile(c *gin.Context) (string, []byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("missing multipart field \"file\": %w", err)
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, err
	}
	return fh.Filename, data, nil
}

func (s *Server) handleClean(c *gin.Context) {
	var req session.CleanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	res, err := s.sess.Clean(req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handlePreview(c *gin.Context) {
	var req session.CleanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	p, err := s.sess.Preview(req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleUndo(c *gin.Context) {
	res, ok, err := s.sess.Undo()
	s.stepped(c, res, ok, err, "Nothing to undo.")
}

func (s *Server) handleRedo(c *gin.Context) {
	res, ok, err := s.sess.Redo()
	s.stepped(c, res, ok, err, "Nothing to redo.")
}

func (s *Server) stepped(c *gin.Context, res *session.StepResult, ok bool, err error, empty string) {
	if err != nil {
		s.fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"applied": false, "message": empty})
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": true, "result": res})
}

func (s *Server) handleChart(c *gin.Context) {
	var req action.Chart
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	e, err := s.sess.RecordChart(req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view(e))
}

func (s *Server) handleML(c *gin.Context) {
	var req action.ML
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	res, e, err := s.sess.RunML(req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": view(e), "result": res})
}

func (s *Server) handleExport(c *gin.Context) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.exportName))
	c.Data(http.StatusOK, "text/x-python; charset=utf-8", []byte(s.sess.Export()))
}

// importRequest is the JSON alternative to a multipart script upload.
type importRequest struct {
	Filename string `json:"filename"`
	Script   string `json:"script" binding:"required"`
}

func (s *Server) handleImport(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUpload)
	var name, text string
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		n, data, err := formFile(c)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		name, text = n, string(data)
	} else {
		var req importRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "expected multipart field \"file\" or JSON {filename, script}")
			return
		}
		name, text = req.Filename, req.Script
	}
	rep, err := s.sess.Import(text, name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": rep.Message(), "report": rep})
}

// TableView is the working table as rows of strings, nulls rendered empty.
type TableView struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Total   int        `json:"total_rows,omitempty"`
}

func (s *Server) handleTable(c *gin.Context) {
	limit := -1
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}
	f, err := s.sess.Table()
	if err != nil {
		s.fail(c, err)
		return
	}
	out := TableView{Columns: f.Names(), Total: f.NumRows()}
	if limit >= 0 {
		f = f.Head(limit)
	}
	out.Rows = f.Records()
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSaveTable(c *gin.Context) {
	var req TableView
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	res, err := s.sess.SaveTable(req.Columns, req.Rows)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Changes have been saved.", "result": res})
}

// CellEdit is the body of PATCH /v1/table/cell. Row is zero-based.
type CellEdit struct {
	Row    *int   `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

func (s *Server) handleEditCell(c *gin.Context) {
	var req CellEdit
	if err := c.ShouldBindJSON(&req); err != nil || req.Row == nil || req.Column == "" {
		badRequest(c, "row and column are required")
		return
	}
	res, err := s.sess.Edit(*req.Row, req.Column, req.Value)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleColumns(c *gin.Context) {
	cols, err := s.sess.Columns()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": cols})
}

func (s *Server) handleSummary(c *gin.Context) {
	opt := analysis.DefaultOptions()
	if g := c.Query("group_by"); g != "" {
		for _, name := range strings.Split(g, ",") {
			if name = strings.TrimSpace(name); name != "" {
				opt.GroupBy = append(opt.GroupBy, name)
			}
		}
	}
	if v := c.Query("sample_rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, fmt.Sprintf("invalid sample_rows %q", v))
			return
		}
		opt.SampleRows = n
	}
	rep, err := s.sess.Summary(opt)
	if err != nil {
		s.fail(c, err)
		return
	}
	if c.Query("format") == "markdown" {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(rep.Markdown()))
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) handleHistory(c *gin.Context) {
	h := s.sess.History()
	c.JSON(http.StatusOK, gin.H{"records": h.Log(), "redo_depth": h.RedoDepth()})
}
