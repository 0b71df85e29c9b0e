package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sanskrit-reader/api/internal/logger"
	"sanskrit-reader/api/internal/translate"
	"sanskrit-reader/api/internal/util"
)

// acceptPhoto translates a single photo right away. Album pages are collected
// per MediaGroupID and translated together once the album is complete.
func (r *Router) acceptPhoto(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	ph := msg.Photo[len(msg.Photo)-1] // largest size
	imgBytes, err := r.download(ctx, ph.FileID)
	if err != nil {
		logger.Errorf("telegram download photo chat=%d: %v", cid, err)
		r.send(cid, "⚠️ "+translate.MsgImageFailed)
		return
	}

	if msg.MediaGroupID == "" {
		r.send(cid, "⏳ Photo received, translating...")
		r.translatePages(ctx, cid, fmt.Sprintf("photo-%d", msg.MessageID), [][]byte{imgBytes})
		return
	}

	key := "grp:" + msg.MediaGroupID
	bi, _ := batches.LoadOrStore(key, &photoBatch{
		ChatID: cid, Key: key, MediaGroupID: msg.MediaGroupID, images: make([][]byte, 0, 4),
	})
	b := bi.(*photoBatch)

	b.mu.Lock()
	b.images = append(b.images, imgBytes)
	first := len(b.images) == 1
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(debounce, func() { r.processBatch(ctx, key) })
	b.mu.Unlock()

	if first {
		r.send(cid, "⏳ Album received, translating...")
	}
}

func (r *Router) processBatch(ctx context.Context, key string) {
	bi, ok := batches.LoadAndDelete(key)
	if !ok {
		return
	}
	b := bi.(*photoBatch)

	b.mu.Lock()
	images := append([][]byte(nil), b.images...)
	b.mu.Unlock()

	r.translatePages(ctx, b.ChatID, "album-"+b.MediaGroupID, images)
}

// translatePages sends one image to the model; several pages are stitched first.
func (r *Router) translatePages(ctx context.Context, chatID int64, name string, pages [][]byte) {
	if len(pages) == 0 {
		return
	}
	data := pages[0]
	if len(pages) > 1 {
		merged, err := stitchPages(pages, maxPixels)
		if err != nil {
			logger.Errorf("telegram stitch %d pages chat=%d: %v", len(pages), chatID, err)
			r.send(chatID, "⚠️ "+translate.MsgImageFailed)
			return
		}
		data = merged
	}

	mctx, cancel := r.modelCtx(ctx)
	defer cancel()
	r.reply(chatID, r.service(chatID).TranslateImage(mctx, &translate.ImageFile{
		Filename:    name,
		ContentType: util.PickMIME("", "", data),
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	}))
}

// acceptDocument handles images sent "as file", which keep their original format.
func (r *Router) acceptDocument(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	doc := msg.Document
	if doc.MimeType != "" && !util.IsImageMIME(doc.MimeType) {
		r.send(cid, "⚠️ "+translate.MsgInvalidImageType)
		return
	}
	if r.MaxImageBytes > 0 && int64(doc.FileSize) > r.MaxImageBytes {
		r.send(cid, "⚠️ "+translate.MsgImageFailed)
		return
	}

	data, err := r.download(ctx, doc.FileID)
	if err != nil {
		logger.Errorf("telegram download document chat=%d: %v", cid, err)
		r.send(cid, "⚠️ "+translate.MsgImageFailed)
		return
	}
	r.send(cid, "⏳ Translating...")

	mctx, cancel := r.modelCtx(ctx)
	defer cancel()
	r.reply(cid, r.service(cid).TranslateImage(mctx, &translate.ImageFile{
		Filename:    doc.FileName,
		ContentType: util.PickMIME(doc.MimeType, "", data),
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	}))
}

// stitchPages lays album pages out top to bottom, centred on a white sheet,
// shrinks the sheet to at most budget pixels and encodes it as JPEG.
func stitchPages(pages [][]byte, budget int) ([]byte, error) {
	imgs := make([]image.Image, len(pages))
	var sheet image.Rectangle
	for i, p := range pages {
		img, err := decodePage(p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		imgs[i] = img
		sheet.Max.X = max(sheet.Max.X, img.Bounds().Dx())
		sheet.Max.Y += img.Bounds().Dy()
	}
	if sheet.Empty() {
		return nil, errors.New("album has no pixels")
	}

	scale := 1.0
	if px := sheet.Dx() * sheet.Dy(); budget > 0 && px > budget {
		scale = math.Sqrt(float64(budget) / float64(px))
	}
	out := image.NewRGBA(image.Rect(0, 0, scaled(sheet.Dx(), scale), scaled(sheet.Dy(), scale)))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)

	top := 0
	for _, img := range imgs {
		w, h := img.Bounds().Dx(), img.Bounds().Dy()
		left := (sheet.Dx() - w) / 2
		pastePage(out, img, image.Rect(left, top, left+w, top+h), scale)
		top += h
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func scaled(n int, s float64) int {
	return max(int(float64(n)*s+0.5), 1)
}

// pastePage draws img into slot, given in unscaled sheet coordinates.
// Scaled pages are sampled nearest-neighbour and flattened onto white.
func pastePage(dst *image.RGBA, img image.Image, slot image.Rectangle, s float64) {
	if s == 1 {
		draw.Draw(dst, slot, img, img.Bounds().Min, draw.Over)
		return
	}
	target := image.Rect(
		int(float64(slot.Min.X)*s), int(float64(slot.Min.Y)*s),
		int(float64(slot.Max.X)*s), int(float64(slot.Max.Y)*s),
	).Intersect(dst.Bounds())

	src := img.Bounds()
	for y := target.Min.Y; y < target.Max.Y; y++ {
		sy := src.Min.Y + clamp(int(float64(y)/s)-slot.Min.Y, src.Dy())
		for x := target.Min.X; x < target.Max.X; x++ {
			sx := src.Min.X + clamp(int(float64(x)/s)-slot.Min.X, src.Dx())
			c := color.RGBAModel.Convert(img.At(sx, sy)).(color.RGBA)
			if c.A < 0xff {
				// premultiplied: onto white is an add
				w := 0xff - c.A
				c = color.RGBA{R: c.R + w, G: c.G + w, B: c.B + w, A: 0xff}
			}
			dst.SetRGBA(x, y, c)
		}
	}
}

func clamp(v, n int) int {
	return min(max(v, 0), n-1)
}

func decodePage(b []byte) (image.Image, error) {
	switch util.SniffMimeHTTP(b) {
	case "image/jpeg":
		return jpeg.Decode(bytes.NewReader(b))
	case "image/png":
		return png.Decode(bytes.NewReader(b))
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	return img, err
}

func (r *Router) download(ctx context.Context, fileID string) ([]byte, error) {
	link, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		// the file URL embeds the bot token
		var ue *url.Error
		if errors.As(err, &ue) {
			return nil, fmt.Errorf("download: %w", ue.Err)
		}
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download status %d", resp.StatusCode)
	}
	body := io.Reader(resp.Body)
	if r.MaxImageBytes > 0 {
		// one extra byte lets translate see the overflow
		body = io.LimitReader(resp.Body, r.MaxImageBytes+1)
	}
	return io.ReadAll(body)
}

func (r *Router) httpClient() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}
