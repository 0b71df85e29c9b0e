package handle

import (
	"encoding/json"
	"io"
	"net/http"
)

type TextRequest struct {
	LLMName string `json:"llm_name"`
	Text    string `json:"text"`
}

func (h *Handle) TranslateText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req TextRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}

	svc, err := h.service(req.LLMName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	writeResult(w, svc.TranslateText(ctx, req.Text))
}
