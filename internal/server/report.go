package server

import (
	"bytes"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/inspection-risk/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	a, days, ok := s.analyzer(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	opts := report.Options{Days: days, WatchlistSize: s.opts.WatchlistSize}
	if err := report.Write(&buf, a, opts); err != nil {
		zap.L().Error("build report", zap.Int("days", days), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "report generation failed")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename(days)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		zap.L().Warn("write report", zap.Error(err))
	}
}
