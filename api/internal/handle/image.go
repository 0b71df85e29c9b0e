package handle

import (
	"errors"
	"net/http"

	"sanskrit-reader/api/internal/logger"
	"sanskrit-reader/api/internal/translate"
)

const (
	imageField = "image"
	// multipart parts above this spill to temp files
	multipartMemory = 8 << 20
	// room for form boundaries and the llm_name field on top of the image cap
	multipartOverhead = 1 << 20
)

func (h *Handle) TranslateImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	if h.maxImageBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+multipartOverhead)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			logger.Warnf("image upload rejected: %v", err)
			writeResult(w, translate.Result{Error: translate.MsgImageFailed, Kind: translate.KindValidation})
		case errors.Is(err, http.ErrNotMultipart):
			writeResult(w, translate.Result{Error: translate.MsgNoImage, Kind: translate.KindValidation})
		default:
			writeError(w, http.StatusBadRequest, "bad multipart form")
		}
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	svc, err := h.service(r.FormValue("llm_name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var img *translate.ImageFile
	file, hdr, err := r.FormFile(imageField)
	switch {
	case err == nil:
		defer file.Close()
		img = &translate.ImageFile{
			Filename:    hdr.Filename,
			ContentType: hdr.Header.Get("Content-Type"),
			Size:        hdr.Size,
			Body:        file,
		}
	case errors.Is(err, http.ErrMissingFile):
	default:
		writeError(w, http.StatusBadRequest, "bad image field")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	writeResult(w, svc.TranslateImage(ctx, img))
}
