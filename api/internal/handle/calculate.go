package handle

import (
	"encoding/json"
	"errors"
	"net/http"

	"mathcanvas/api/internal/calc"
)

type CalculateRequest struct {
	Image      string         `json:"image"`
	DictOfVars calc.Variables `json:"dict_of_vars"`
	LLMName    string         `json:"llm_name,omitempty"`
}

type CalculateResponse struct {
	Msg      string     `json:"msg"`
	Data     calc.Batch `json:"data"`
	Image    string     `json:"image"`
	Degraded bool       `json:"degraded,omitempty"`
}

func (h *Handle) Calculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "POST only"})
		return
	}

	var req CalculateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad json", Details: err.Error()})
		return
	}

	engine, err := h.engs.GetEngine(req.LLMName)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := calc.New(engine, loggerFrom(r.Context(), h.log), h.journal).Run(r.Context(), calc.Request{
		Image:     req.Image,
		Variables: req.DictOfVars,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CalculateResponse{
		Msg:      "Data received successfully",
		Data:     resp.Records,
		Image:    resp.Image,
		Degraded: resp.Degraded,
	})
}

func (h *Handle) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
