package metricsfx

import (
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/logrotd/pkg/http/handler"
)

func LatestRotationMetricHandler(
	logger *logrus.Logger,
	repository handler.RotationRepository,
) *handler.RotationMetricHandler {
	return handler.NewRotationMetricHandler(logger, repository)
}

func RegisterLatestRotationMetricHandler(router *mux.Router, h *handler.RotationMetricHandler) {
	router.Handle("/metrics/rotations", h)
}
