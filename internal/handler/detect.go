package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"firewatch/internal/dto"
	"firewatch/internal/logger"
	"firewatch/internal/service/ai"
	"firewatch/internal/service/alert"
	"firewatch/internal/service/stream"
)

// maxUploadSize bounds POST /detect bodies.
const maxUploadSize = 32 << 20

// AlertDispatcher reacts to detections from the single-image path.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, dets []ai.Detection) alert.Report
}

// DetectHandler serves POST /detect. The image comes as the multipart field
// "file" or as the raw body. Fire and smoke detections are dispatched before
// the response is written; dispatch results never change the response.
func DetectHandler(logger *logger.Logger, detector ai.Detector, dispatcher AlertDispatcher,
	observers ...stream.Observer) http.HandlerFunc {
	overlay := ai.NewOverlayRenderer()

	return func(w http.ResponseWriter, r *http.Request) {
		data, err := readUpload(w, r)
		if err != nil {
			logger.Warning("Invalid detect upload from %s: %v", r.RemoteAddr, err)
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		dets := []ai.Detection{}
		frame, err := ai.DecodeImage(data)
		if err != nil {
			logger.Warning("Undecodable image uploaded (%d bytes): %v", len(data), err)
			writeJSON(w, http.StatusOK, dto.DetectResponse{Detections: dets})
			return
		}
		defer frame.Close()

		if found := detector.Detect(frame); found != nil {
			dets = found
		}

		alerts := alertDetections(dets)
		if len(alerts) > 0 {
			jpeg, err := overlay.RenderJPEG(frame, nil, alerts)
			if err != nil {
				logger.Warning("Error rendering detect overlay: %v", err)
			}
			ev := dto.AlertEvent{
				Type:       "alert",
				Time:       time.Now().UTC(),
				Origin:     "detect",
				Source:     "upload",
				FrameSize:  [2]int{frame.Cols(), frame.Rows()},
				Detections: alerts,
				Frame:      jpeg,
			}
			for _, o := range observers {
				o(ev)
			}

			dispatcher.Dispatch(context.WithoutCancel(r.Context()), dets)
		}

		writeJSON(w, http.StatusOK, dto.DetectResponse{Detections: dets})
	}
}

func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("missing file field")
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty body")
	}
	return data, nil
}

func alertDetections(dets []ai.Detection) []ai.Detection {
	var out []ai.Detection
	for _, d := range dets {
		if ai.IsAlertClass(d.Label) {
			out = append(out, d)
		}
	}
	return out
}
