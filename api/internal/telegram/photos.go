package telegram

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mathcanvas/api/internal/calc"
	"mathcanvas/api/internal/util"
)

func (r *Router) acceptPhoto(ctx context.Context, msg tgbotapi.Message) {
	cid := msg.Chat.ID
	ph := msg.Photo[len(msg.Photo)-1]
	url, err := r.Bot.GetFileDirectURL(ph.FileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	imgBytes, err := download(ctx, url)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	text, err := r.solve(ctx, cid, imgBytes)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	r.send(cid, text)
}

// solve runs the pipeline on one picture with the chat's variables and folds
// the resulting assignments back into them.
func (r *Router) solve(ctx context.Context, chatID int64, imgBytes []byte) (string, error) {
	imgBytes, mime, err := fitImage(imgBytes, maxPixels)
	if err != nil {
		return "", fmt.Errorf("%w: %w", calc.ErrInvalidImage, err)
	}
	eng, err := r.Engines.GetEngine(r.engineFor(chatID))
	if err != nil {
		return "", err
	}
	log := r.Log.With(zap.Int64("chat_id", chatID))
	resp, err := calc.New(eng, log, r.Journal).Run(ctx, calc.Request{
		Image:     util.MakeDataURL(mime, base64.StdEncoding.EncodeToString(imgBytes)),
		Variables: r.Vars.Snapshot(chatID),
	})
	if err != nil {
		return "", err
	}
	r.Vars.Merge(chatID, resp.Records.Assignments())
	return formatRecords(resp.Records, resp.Degraded), nil
}

// fitImage re-encodes pictures above limit pixels as a smaller JPEG.
// Smaller pictures pass through untouched.
func fitImage(b []byte, limit int) ([]byte, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return nil, "", err
	}
	total := cfg.Width * cfg.Height
	if total <= limit {
		return b, util.PickMIME("", "", b), nil
	}
	img, err := tryDecodeStrict(b)
	if err != nil {
		return nil, "", err
	}
	scale := math.Sqrt(float64(limit) / float64(total))
	newW := max(int(float64(cfg.Width)*scale), 1)
	newH := max(int(float64(cfg.Height)*scale), 1)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, scaleDownNN(img, newW, newH), &jpeg.Options{Quality: 90}); err != nil {
		return nil, "", err
	}
	return out.Bytes(), "image/jpeg", nil
}

func tryDecodeStrict(b []byte) (image.Image, error) {
	switch util.SniffMimeHTTP(b) {
	case "image/jpeg":
		return jpeg.Decode(bytes.NewReader(b))
	case "image/png":
		return png.Decode(bytes.NewReader(b))
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	return img, err
}

func scaleDownNN(src image.Image, newW, newH int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	sb := src.Bounds()
	srcW := sb.Dx()
	srcH := sb.Dy()
	for y := 0; y < newH; y++ {
		sy := sb.Min.Y + (y*srcH)/newH
		for x := 0; x < newW; x++ {
			sx := sb.Min.X + (x*srcW)/newW
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

func download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
