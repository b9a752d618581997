package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/logrotd/pkg/appcontext"
	"github.com/yurykabanov/logrotd/pkg/domain"
)

type RotationRepository interface {
	FindLatestPerPolicy(context.Context) ([]domain.Rotation, error)
}

type RotationMetricHandler struct {
	logger logrus.FieldLogger
	repo   RotationRepository
}

func NewRotationMetricHandler(logger logrus.FieldLogger, repo RotationRepository) *RotationMetricHandler {
	return &RotationMetricHandler{
		logger: logger,
		repo:   repo,
	}
}

type rotationMetricResponse struct {
	PolicyName     string `json:"policy_name"`
	Path           string `json:"path"`
	GenerationPath string `json:"generation_path,omitempty"`
	SizeBytes      int64  `json:"size_bytes"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
	LastRotatedAt  int64  `json:"last_rotated_at_mtime"`
	LastDuration   int64  `json:"last_duration_ms"`
}

func (h *RotationMetricHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	logger := appcontext.LoggerFromContext(h.logger, ctx)

	rotations, err := h.repo.FindLatestPerPolicy(ctx)
	if err != nil {
		logger.WithError(err).Error("Unable to query latest rotations")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var result []rotationMetricResponse

	for _, rotation := range rotations {
		result = append(result, rotationMetricResponse{
			PolicyName:     rotation.Policy,
			Path:           rotation.Path,
			GenerationPath: rotation.GenerationPath,
			SizeBytes:      rotation.SizeBytes,
			Success:        rotation.Status == domain.RotationStatusSuccess,
			Error:          rotation.Error,
			LastRotatedAt:  rotation.CreatedAt.UnixNano() / 1e6,
			LastDuration:   rotation.DurationMs,
		})
	}

	enc := json.NewEncoder(w)
	err = enc.Encode(result)
	if err != nil {
		logger.WithError(err).Error("Unable to encode response")
		w.WriteHeader(http.StatusInternalServerError)
	}
}
